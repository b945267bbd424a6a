package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dealscout/identity"
	"dealscout/metrics"
	"dealscout/models"
)

// reconcilerStore is the slice of the canonical store the reconciler touches.
type reconcilerStore interface {
	GetListingSourceByURL(ctx context.Context, sourceURL string) (*models.ListingSource, error)
	UpsertListingSource(ctx context.Context, src *models.ListingSource) error
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	UpdateListing(ctx context.Context, l *models.Listing) error
	UpdateListingInference(ctx context.Context, id uuid.UUID, ebitda, sde *float64, method string, confidence *float32, attempts int) error
	BumpInferenceAttempts(ctx context.Context, id uuid.UUID) error
	UpdateListingTradeFit(ctx context.Context, id uuid.UUID, trade string, fitScore *int, fitTier string) error
}

// Reconciler folds raw observations into the canonical listings table. One
// observation stream per source URL; canonical fields fill but never
// downgrade. Safe to call concurrently for different URLs; concurrent calls
// for the same URL converge because the store applies the same fill-if-empty
// policy per column.
type Reconciler struct {
	store reconcilerStore
	infer FinancialInferrer

	nowFn func() time.Time
}

func NewReconciler(store reconcilerStore, infer FinancialInferrer) *Reconciler {
	return &Reconciler{
		store: store,
		infer: infer,
		nowFn: time.Now,
	}
}

// ProcessResult contains the outcome of reconciling one raw listing.
type ProcessResult struct {
	ListingID    uuid.UUID
	SourceID     int64
	IsNewListing bool
	FieldsFilled bool
	InferenceRan bool
	Trade        string
}

// ProcessListing reconciles one raw observation. Idempotent per source URL:
// replaying the same observation changes nothing but last_seen_at. URLs are
// canonicalized first so an alert link and a scraped link key the same stream.
func (r *Reconciler) ProcessListing(ctx context.Context, raw *models.RawListing) (*ProcessResult, error) {
	if raw == nil || raw.SourceURL == "" {
		return nil, fmt.Errorf("raw listing has no source url")
	}

	result := &ProcessResult{}
	now := r.nowFn()
	sourceURL := identity.CanonicalURL(raw.SourceURL)

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	// 1. Find the observation stream for this URL.
	src, err := r.store.GetListingSourceByURL(ctx, sourceURL)
	if err != nil {
		r.countOutcome(raw.Platform, "error")
		return nil, fmt.Errorf("get listing source: %w", err)
	}

	var listing *models.Listing
	if src == nil {
		// 2a. First observation of this URL: canonical listing comes straight
		// from the raw fields, metro resolved from the city table.
		listing = &models.Listing{
			ID:          uuid.New(),
			FirstSeenAt: now,
			LastSeenAt:  now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		listing.FillFromRaw(raw)
		listing.Metro = MetroFor(listing.City, listing.State)

		if err := r.store.CreateListing(ctx, listing); err != nil {
			r.countOutcome(raw.Platform, "error")
			return nil, fmt.Errorf("create listing: %w", err)
		}

		src = &models.ListingSource{
			ListingID:      listing.ID,
			Platform:       raw.Platform,
			SourceURL:      sourceURL,
			RawPayload:     payload,
			Alive:          true,
			FirstScrapedAt: now,
			LastScrapedAt:  now,
		}
		if err := r.store.UpsertListingSource(ctx, src); err != nil {
			r.countOutcome(raw.Platform, "error")
			return nil, fmt.Errorf("create listing source: %w", err)
		}
		result.IsNewListing = true
		result.FieldsFilled = true
	} else {
		// 2b. Re-observation: replace the raw snapshot, bump the scrape
		// timestamp, and merge-fill the canonical row.
		src.RawPayload = payload
		src.Alive = true
		src.LastScrapedAt = now
		if err := r.store.UpsertListingSource(ctx, src); err != nil {
			r.countOutcome(raw.Platform, "error")
			return nil, fmt.Errorf("update listing source: %w", err)
		}

		listing, err = r.store.GetListingByID(ctx, src.ListingID)
		if err != nil {
			r.countOutcome(raw.Platform, "error")
			return nil, fmt.Errorf("get listing: %w", err)
		}
		if listing == nil {
			r.countOutcome(raw.Platform, "error")
			return nil, fmt.Errorf("listing %s missing for source %s", src.ListingID, sourceURL)
		}

		result.FieldsFilled = listing.FillFromRaw(raw)
		if listing.Metro == "" {
			listing.Metro = MetroFor(listing.City, listing.State)
		}
		listing.LastSeenAt = now

		if err := r.store.UpdateListing(ctx, listing); err != nil {
			r.countOutcome(raw.Platform, "error")
			return nil, fmt.Errorf("update listing: %w", err)
		}
	}

	result.ListingID = listing.ID
	result.SourceID = src.ID

	// 3. Re-read the canonical row and fill earnings gaps. Skipped when both
	// EBITDA and SDE are already known and once an attempt has been recorded,
	// so enrichment cost stays bounded to one call per under-specified record.
	canonical, err := r.store.GetListingByID(ctx, listing.ID)
	if err != nil {
		r.countOutcome(raw.Platform, "error")
		return nil, fmt.Errorf("reread listing: %w", err)
	}
	if canonical == nil {
		canonical = listing
	}

	if r.infer != nil && canonical.NeedsInference() && !canonical.InferenceAttempted() {
		result.InferenceRan = true
		metrics.InferenceCalls.Inc()
		if out := r.infer.InferFinancials(canonical); out != nil {
			err := r.store.UpdateListingInference(ctx, canonical.ID,
				out.EBITDA, out.SDE, out.Method, &out.Confidence, canonical.InferenceAttempts+1)
			if err != nil {
				log.Printf("Warning: failed to persist inference for %s: %v", canonical.ID, err)
			}
		} else if err := r.store.BumpInferenceAttempts(ctx, canonical.ID); err != nil {
			log.Printf("Warning: failed to bump inference attempts for %s: %v", canonical.ID, err)
		}
	}

	// 4. Brand-new listings get a trade classification and, when one sticks,
	// a fit score.
	if result.IsNewListing {
		if trade := DetectTrade(canonical); trade != "" {
			result.Trade = trade
			score, tier := ComputeFitScore(canonical)
			if err := r.store.UpdateListingTradeFit(ctx, canonical.ID, trade, score, tier); err != nil {
				log.Printf("Warning: failed to persist trade fit for %s: %v", canonical.ID, err)
			}
		}
	}

	switch {
	case result.IsNewListing:
		r.countOutcome(raw.Platform, "new")
	case result.FieldsFilled:
		r.countOutcome(raw.Platform, "updated")
	default:
		r.countOutcome(raw.Platform, "unchanged")
	}
	return result, nil
}

func (r *Reconciler) countOutcome(platform, outcome string) {
	metrics.ListingsReconciled.WithLabelValues(platform, outcome).Inc()
}

// ProcessStats aggregates reconcile outcomes across one scrape run; the
// summary lands in the run's metadata column.
type ProcessStats struct {
	Processed    int
	ListingsNew  int
	FieldsFilled int
	Inferred     int
	Errors       int
}

func (s *ProcessStats) Aggregate(r *ProcessResult) {
	s.Processed++
	if r.IsNewListing {
		s.ListingsNew++
	}
	if r.FieldsFilled {
		s.FieldsFilled++
	}
	if r.InferenceRan {
		s.Inferred++
	}
}

// ToJSON returns the stats as run metadata.
func (s *ProcessStats) ToJSON() json.RawMessage {
	data, _ := json.Marshal(map[string]int{
		"processed":     s.Processed,
		"listings_new":  s.ListingsNew,
		"fields_filled": s.FieldsFilled,
		"inferred":      s.Inferred,
		"errors":        s.Errors,
	})
	return data
}
