package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dealscout/config"
	"dealscout/fetch"
	"dealscout/metrics"
	"dealscout/models"
	"dealscout/services"
)

// Scraper-level retry budget per detail page, on top of the HTTP-level
// retries inside the fetch layer.
const detailAttempts = 3

// pageFetcher is the rate-limited fetch layer.
type pageFetcher interface {
	FetchPage(ctx context.Context, platform, pageURL string) (*fetch.Result, error)
}

// listingReconciler folds parsed observations into the canonical store.
type listingReconciler interface {
	ProcessListing(ctx context.Context, raw *models.RawListing) (*services.ProcessResult, error)
}

// runStore persists ScrapeRun rows in the canonical store.
type runStore interface {
	CreateScrapeRun(ctx context.Context, run *models.ScrapeRun) error
	UpdateScrapeRun(ctx context.Context, run *models.ScrapeRun) error
}

// opsSink mirrors run state into the local ops store for the control surface.
// A nil sink disables mirroring.
type opsSink interface {
	MirrorRun(run *models.ScrapeRun) error
	Log(runID *int64, level models.LogLevel, source, message string) error
	UpdatePlatformStats(platform string) error
}

// Runner drives the search -> detail -> paginate loop for every registered
// platform. Within one platform run everything is sequential (detail fetches
// ride the platform's rate limiter one at a time); different platforms run
// concurrently from RunAll.
type Runner struct {
	platforms map[string]*config.PlatformConfig
	registry  *Registry
	fetcher   pageFetcher
	recon     listingReconciler
	runs      runStore
	ops       opsSink

	paused  atomic.Bool
	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewRunner(platforms map[string]*config.PlatformConfig, registry *Registry, fetcher pageFetcher, recon listingReconciler, runs runStore, ops opsSink) *Runner {
	return &Runner{
		platforms: platforms,
		registry:  registry,
		fetcher:   fetcher,
		recon:     recon,
		runs:      runs,
		ops:       ops,
		sleepFn:   sleepBackoff,
	}
}

func (r *Runner) Pause()  { r.paused.Store(true); log.Println("Scraper paused") }
func (r *Runner) Resume() { r.paused.Store(false); log.Println("Scraper resumed") }

func (r *Runner) IsPaused() bool { return r.paused.Load() }

// RunAll scrapes every enabled platform concurrently. Platform failures are
// logged and absorbed; one broken site must not starve the others.
func (r *Runner) RunAll(ctx context.Context, filters SearchFilters) error {
	if r.paused.Load() {
		log.Println("Scraper is paused, skipping run")
		return nil
	}

	var g errgroup.Group
	for id, cfg := range r.platforms {
		if !cfg.Enabled {
			continue
		}
		id := id
		g.Go(func() error {
			if _, err := r.RunPlatform(ctx, id, filters); err != nil {
				log.Printf("Error running platform %s: %v", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RunPlatform executes one scrape run. The ScrapeRun row is created before
// the first fetch and finalized on every exit path; partial failures land in
// the error log without aborting the run.
func (r *Runner) RunPlatform(ctx context.Context, platform string, filters SearchFilters) (*models.ScrapeRun, error) {
	cfg, ok := r.platforms[platform]
	if !ok {
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}
	adapter, err := r.registry.New(cfg)
	if err != nil {
		return nil, err
	}

	run := &models.ScrapeRun{
		Platform:  platform,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
		Metadata:  runMetadata(filters, nil),
	}
	if err := r.runs.CreateScrapeRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	r.mirror(run)
	r.logRun(run, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", cfg.Name))

	var errorLog []string
	stats := &services.ProcessStats{}

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if run.Status != models.RunStatusFailed {
			run.Status = models.RunStatusCompleted
		}
		run.ErrorLog = marshalErrorLog(errorLog)
		run.Metadata = runMetadata(filters, stats)
		// Finalize against a fresh context so a cancelled run still lands.
		if err := r.runs.UpdateScrapeRun(context.Background(), run); err != nil {
			log.Printf("Warning: failed to finalize run %d: %v", run.ID, err)
		}
		r.mirror(run)
		if r.ops != nil {
			if err := r.ops.UpdatePlatformStats(platform); err != nil {
				log.Printf("Warning: failed to update platform stats for %s: %v", platform, err)
			}
		}
		metrics.ScrapeRuns.WithLabelValues(platform, string(run.Status)).Inc()
	}()

	pageCap := cfg.PageCap
	if pageCap <= 0 {
		pageCap = 50
	}

	pageURL := adapter.BuildSearchURL(filters)
	for page := 1; page <= pageCap; page++ {
		res, err := r.fetcher.FetchPage(ctx, platform, pageURL)
		if err != nil {
			run.Status = models.RunStatusFailed
			run.ErrorsCount++
			errorLog = append(errorLog, fmt.Sprintf("search page %d: %v", page, err))
			r.logRun(run, models.LogLevelError, fmt.Sprintf("Search fetch failed on page %d: %v", page, err))
			return run, fmt.Errorf("fetch search page %d: %w", page, err)
		}

		results, err := adapter.ParseSearchResults(res.Body)
		if err != nil {
			run.Status = models.RunStatusFailed
			run.ErrorsCount++
			errorLog = append(errorLog, fmt.Sprintf("parse search page %d: %v", page, err))
			r.logRun(run, models.LogLevelError, fmt.Sprintf("Search parse failed on page %d: %v", page, err))
			return run, fmt.Errorf("parse search page %d: %w", page, err)
		}
		if len(results) == 0 {
			r.logRun(run, models.LogLevelInfo, fmt.Sprintf("Page %d empty, stopping", page))
			break
		}
		run.ListingsFound += len(results)
		r.logRun(run, models.LogLevelInfo, fmt.Sprintf("Page %d: %d results", page, len(results)))

		for _, item := range results {
			if err := r.processItem(ctx, adapter, platform, item, run, stats); err != nil {
				run.ErrorsCount++
				stats.Errors++
				errorLog = append(errorLog, fmt.Sprintf("%s: %v", item.URL, err))
				r.logRun(run, models.LogLevelError, fmt.Sprintf("Item failed: %s: %v", item.URL, err))
			}
		}

		next := adapter.NextPageURL(res.Body)
		if next == "" {
			break
		}
		pageURL = next
	}

	r.logRun(run, models.LogLevelInfo, fmt.Sprintf("Completed: %d found, %d new, %d updated, %d errors",
		run.ListingsFound, run.ListingsNew, run.ListingsUpdated, run.ErrorsCount))
	return run, nil
}

// processItem fetches and parses one detail page, supplements it with the
// search-card preview, and reconciles it. Errors bubble to the caller where
// they are recorded, never fatal to the run.
func (r *Runner) processItem(ctx context.Context, adapter Adapter, platform string, item SearchResult, run *models.ScrapeRun, stats *services.ProcessStats) error {
	raw, err := r.fetchDetail(ctx, adapter, platform, item.URL)
	if err != nil {
		return err
	}
	mergePreview(raw, &item.Preview)

	result, err := r.recon.ProcessListing(ctx, raw)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	stats.Aggregate(result)
	if result.IsNewListing {
		run.ListingsNew++
	} else {
		run.ListingsUpdated++
	}
	return nil
}

// fetchDetail retries the fetch+parse unit with exponential backoff. Login
// redirects and cancellation abort immediately: retrying either would only
// hammer the session or outlive the run.
func (r *Runner) fetchDetail(ctx context.Context, adapter Adapter, platform, pageURL string) (*models.RawListing, error) {
	var lastErr error
	for attempt := 0; attempt < detailAttempts; attempt++ {
		if attempt > 0 {
			if err := r.sleepFn(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return nil, err
			}
		}

		res, err := r.fetcher.FetchPage(ctx, platform, pageURL)
		if err != nil {
			if errors.Is(err, fetch.ErrLoginRedirect) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		raw, err := adapter.ParseDetailPage(res.Body, pageURL)
		if err != nil {
			lastErr = err
			continue
		}
		return raw, nil
	}
	return nil, fmt.Errorf("detail failed after %d attempts: %w", detailAttempts, lastErr)
}

// mergePreview fills detail-page gaps with fields the search card showed.
func mergePreview(raw, preview *models.RawListing) {
	if raw.Title == "" {
		raw.Title = preview.Title
	}
	if raw.Description == "" {
		raw.Description = preview.Description
	}
	if raw.AskingPrice == nil {
		raw.AskingPrice = preview.AskingPrice
	}
	if raw.CashFlow == nil {
		raw.CashFlow = preview.CashFlow
	}
	if raw.City == "" {
		raw.City = preview.City
	}
	if raw.State == "" {
		raw.State = preview.State
	}
}

func (r *Runner) mirror(run *models.ScrapeRun) {
	if r.ops == nil {
		return
	}
	if err := r.ops.MirrorRun(run); err != nil {
		log.Printf("Warning: failed to mirror run %d: %v", run.ID, err)
	}
}

func (r *Runner) logRun(run *models.ScrapeRun, level models.LogLevel, message string) {
	log.Printf("[%s] %s: %s", level, run.Platform, message)
	if r.ops != nil {
		if err := r.ops.Log(&run.ID, level, run.Platform, message); err != nil {
			log.Printf("Warning: failed to write ops log: %v", err)
		}
	}
}

func runMetadata(filters SearchFilters, stats *services.ProcessStats) json.RawMessage {
	meta := map[string]any{"filters": filters}
	if stats != nil {
		meta["stats"] = stats.ToJSON()
	}
	data, _ := json.Marshal(meta)
	return data
}

func marshalErrorLog(errs []string) json.RawMessage {
	if len(errs) == 0 {
		return json.RawMessage(`[]`)
	}
	data, _ := json.Marshal(errs)
	return data
}

func sleepBackoff(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
