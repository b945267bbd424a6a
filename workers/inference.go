package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dealscout/metrics"
	"dealscout/models"
	"dealscout/services"
)

const maxInferenceAttempts = 3

type inferenceStore interface {
	GetListingsNeedingInference(ctx context.Context, maxAttempts, limit int) ([]models.Listing, error)
	UpdateListingInference(ctx context.Context, id uuid.UUID, ebitda, sde *float64, method string, confidence *float32, attempts int) error
	BumpInferenceAttempts(ctx context.Context, id uuid.UUID) error
}

// InferenceWorker re-runs financial inference over listings still missing
// earnings figures. The reconciler infers once at observation time; this
// worker picks up listings whose inputs arrived later, like a second source
// filling revenue after the first carried none.
type InferenceWorker struct {
	store     inferenceStore
	infer     services.FinancialInferrer
	triggerCh chan struct{}
	logFunc   LogFunc
}

func NewInferenceWorker(store inferenceStore, infer services.FinancialInferrer) *InferenceWorker {
	return &InferenceWorker{
		store:     store,
		infer:     infer,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *InferenceWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *InferenceWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the inference worker loop
func (w *InferenceWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Inference worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("Inference worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *InferenceWorker) processBatch(ctx context.Context, batchSize int) {
	listings, err := w.store.GetListingsNeedingInference(ctx, maxInferenceAttempts, batchSize)
	if err != nil {
		log.Printf("Inference: query error: %v", err)
		return
	}
	if len(listings) == 0 {
		return
	}

	log.Printf("Inference: processing %d listings", len(listings))

	var inferred int
	for i := range listings {
		if ctx.Err() != nil {
			return
		}
		l := &listings[i]

		metrics.InferenceCalls.Inc()
		out := w.infer.InferFinancials(l)
		if out == nil {
			if err := w.store.BumpInferenceAttempts(ctx, l.ID); err != nil {
				log.Printf("Inference: failed to bump attempts for %s: %v", l.ID, err)
			}
			continue
		}

		confidence := out.Confidence
		if err := w.store.UpdateListingInference(ctx, l.ID, out.EBITDA, out.SDE, out.Method, &confidence, l.InferenceAttempts+1); err != nil {
			log.Printf("Inference: failed to update %s: %v", l.ID, err)
			continue
		}
		inferred++
	}

	if inferred > 0 {
		log.Printf("Inference: filled %d of %d listings", inferred, len(listings))
		w.logFunc(models.LogLevelInfo, "inference", fmt.Sprintf("Inferred earnings for %d of %d listings", inferred, len(listings)))
	}
}
