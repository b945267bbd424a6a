package workers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"dealscout/models"
	"dealscout/services"
)

type inferenceUpdate struct {
	id       uuid.UUID
	ebitda   *float64
	sde      *float64
	method   string
	attempts int
}

type fakeInferenceStore struct {
	pending []models.Listing
	updates []inferenceUpdate
	bumps   []uuid.UUID
}

func (f *fakeInferenceStore) GetListingsNeedingInference(ctx context.Context, maxAttempts, limit int) ([]models.Listing, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeInferenceStore) UpdateListingInference(ctx context.Context, id uuid.UUID, ebitda, sde *float64, method string, confidence *float32, attempts int) error {
	f.updates = append(f.updates, inferenceUpdate{id: id, ebitda: ebitda, sde: sde, method: method, attempts: attempts})
	return nil
}

func (f *fakeInferenceStore) BumpInferenceAttempts(ctx context.Context, id uuid.UUID) error {
	f.bumps = append(f.bumps, id)
	return nil
}

func TestInferenceWorker_ProcessBatch(t *testing.T) {
	revenue := 2000000.0
	withRevenue := models.Listing{ID: uuid.New(), Industry: "HVAC Services", Revenue: &revenue, InferenceAttempts: 1}
	bare := models.Listing{ID: uuid.New(), Title: "No numbers disclosed"}

	store := &fakeInferenceStore{pending: []models.Listing{withRevenue, bare}}
	w := NewInferenceWorker(store, services.NewMarginInferrer())

	w.processBatch(context.Background(), 10)

	if len(store.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(store.updates))
	}
	up := store.updates[0]
	if up.id != withRevenue.ID {
		t.Fatalf("updated wrong listing: %s", up.id)
	}
	if up.method != models.InferenceIndustryMargin {
		t.Fatalf("method = %s", up.method)
	}
	if up.sde == nil || up.ebitda == nil {
		t.Fatalf("update carried nil figures: %+v", up)
	}
	if up.attempts != 2 {
		t.Fatalf("attempts = %d, want prior+1", up.attempts)
	}

	if len(store.bumps) != 1 || store.bumps[0] != bare.ID {
		t.Fatalf("bumps = %v, want only the bare listing", store.bumps)
	}
}

func TestInferenceWorker_EmptyBatchDoesNothing(t *testing.T) {
	store := &fakeInferenceStore{}
	w := NewInferenceWorker(store, services.NewMarginInferrer())

	w.processBatch(context.Background(), 10)

	if len(store.updates) != 0 || len(store.bumps) != 0 {
		t.Fatalf("writes on empty batch: %+v %+v", store.updates, store.bumps)
	}
}
