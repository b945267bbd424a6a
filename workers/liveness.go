package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"dealscout/models"
	"dealscout/ratelimit"
)

type livenessStore interface {
	GetStaleSources(ctx context.Context, staleAfter time.Duration, limit int) ([]models.ListingSource, error)
	UpdateSourceLiveness(ctx context.Context, id int64, alive bool, checkedAt time.Time) error
}

// LivenessWorker HEAD-checks sources no scrape has seen in a while and records
// whether the page is still up. Listings are never deleted; a dead source just
// stops counting as a live observation stream.
type LivenessWorker struct {
	store     livenessStore
	limiters  *ratelimit.Registry
	client    *http.Client // must not follow redirects
	triggerCh chan struct{}
	logFunc   LogFunc
}

func NewLivenessWorker(store livenessStore, limiters *ratelimit.Registry, client *http.Client) *LivenessWorker {
	return &LivenessWorker{
		store:     store,
		limiters:  limiters,
		client:    client,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *LivenessWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *LivenessWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the liveness worker loop
func (w *LivenessWorker) Run(ctx context.Context, staleAfter time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Liveness worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, staleAfter, batchSize)
		case <-w.triggerCh:
			log.Println("Liveness worker triggered manually")
			w.processBatch(ctx, staleAfter, batchSize)
		}
	}
}

func (w *LivenessWorker) processBatch(ctx context.Context, staleAfter time.Duration, batchSize int) {
	sources, err := w.store.GetStaleSources(ctx, staleAfter, batchSize)
	if err != nil {
		log.Printf("Liveness: query error: %v", err)
		return
	}
	if len(sources) == 0 {
		return
	}

	log.Printf("Liveness: checking %d stale sources", len(sources))

	var checked, dead int
	for i := range sources {
		if ctx.Err() != nil {
			return
		}
		src := &sources[i]

		alive, err := w.check(ctx, src)
		if err != nil {
			// Transient; the source stays in the stale pool for the next round.
			log.Printf("Liveness: error checking %s: %v", src.SourceURL, err)
			continue
		}
		checked++
		if !alive {
			dead++
			log.Printf("Liveness: source gone: %s", src.SourceURL)
		}
		if err := w.store.UpdateSourceLiveness(ctx, src.ID, alive, time.Now()); err != nil {
			log.Printf("Liveness: failed to record check for %s: %v", src.SourceURL, err)
		}
	}

	if checked > 0 {
		w.logFunc(models.LogLevelInfo, "liveness", fmt.Sprintf("Checked %d sources, %d dead", checked, dead))
	}
}

// check issues a limiter-gated HEAD request. Alive means a direct 2xx; the
// marketplaces answer for dead listings with a 404 or a redirect to search.
func (w *LivenessWorker) check(ctx context.Context, src *models.ListingSource) (bool, error) {
	if err := w.limiters.For(src.Platform).WaitForSlot(ctx); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src.SourceURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := w.client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return false, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
}
