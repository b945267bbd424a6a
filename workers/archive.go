package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"dealscout/models"
)

type archiveStore interface {
	GetUnarchivedSources(ctx context.Context, limit int) ([]models.ListingSource, error)
	MarkSourceArchived(ctx context.Context, id int64, archivedAt time.Time) error
}

// PayloadUploader ships one raw payload to object storage and returns its key.
// storage.PayloadArchiver is the production implementation.
type PayloadUploader interface {
	ArchivePayload(ctx context.Context, platform string, sourceID int64, scrapedAt time.Time, payload []byte) (string, error)
}

// ArchiveWorker copies raw scrape payloads to object storage so the hot table
// only needs to carry the latest snapshot.
type ArchiveWorker struct {
	store     archiveStore
	uploader  PayloadUploader
	triggerCh chan struct{}
	logFunc   LogFunc
}

func NewArchiveWorker(store archiveStore, uploader PayloadUploader) *ArchiveWorker {
	return &ArchiveWorker{
		store:     store,
		uploader:  uploader,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *ArchiveWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *ArchiveWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the archive worker loop
func (w *ArchiveWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Archive worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("Archive worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *ArchiveWorker) processBatch(ctx context.Context, batchSize int) {
	sources, err := w.store.GetUnarchivedSources(ctx, batchSize)
	if err != nil {
		log.Printf("Archive: query error: %v", err)
		return
	}
	if len(sources) == 0 {
		return
	}

	log.Printf("Archive: uploading %d payloads", len(sources))

	var archived int
	for i := range sources {
		if ctx.Err() != nil {
			return
		}
		src := &sources[i]
		if len(src.RawPayload) == 0 {
			continue
		}

		key, err := w.uploader.ArchivePayload(ctx, src.Platform, src.ID, src.LastScrapedAt, src.RawPayload)
		if err != nil {
			log.Printf("Archive: upload failed for source %d: %v", src.ID, err)
			continue
		}
		if err := w.store.MarkSourceArchived(ctx, src.ID, time.Now()); err != nil {
			log.Printf("Archive: uploaded %s but failed to mark source %d: %v", key, src.ID, err)
			continue
		}
		archived++
	}

	if archived > 0 {
		w.logFunc(models.LogLevelInfo, "archive", fmt.Sprintf("Archived %d payloads", archived))
	}
}
