package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"heristone/internal/amqp"
	"heristone/internal/core"
	applog "heristone/internal/log"
	"heristone/internal/metrics"
	"heristone/internal/storage"
	"heristone/internal/store"
)

// Export triggers, used as the metrics label.
const (
	TriggerMessage  = "message"
	TriggerPeriodic = "periodic"
	TriggerStartup  = "startup"
)

// Exporter writes a document to an external destination.
type Exporter interface {
	Export(ctx context.Context, doc core.Document, now time.Time) error
}

// Exporters runs every exporter in order. A failing target does not stop
// the others; the errors are joined.
type Exporters []Exporter

func (es Exporters) Export(ctx context.Context, doc core.Document, now time.Time) error {
	var errs []error
	for _, e := range es {
		if err := e.Export(ctx, doc, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SyncTracker is implemented by stores that remember which version of each
// key was last exported.
type SyncTracker interface {
	PendingSync(ctx context.Context, limit int) ([]storage.PendingDocument, error)
	MarkSynced(ctx context.Context, key string, version int64) error
}

// SyncWorker exports the stored document to the configured spreadsheets
type SyncWorker struct {
	store     store.BlobStore
	tracker   SyncTracker
	exporter  Exporter
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

func NewSyncWorker(bs store.BlobStore, exporter Exporter, batchSize int, logger *slog.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &SyncWorker{
		store:     bs,
		exporter:  exporter,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
	if t, ok := bs.(SyncTracker); ok {
		w.tracker = t
	}
	return w
}

// HandleSyncMessage exports the current state of the key named by msg.
// The stored document is exported even when it is newer than msg.Version.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.DocumentSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		applog.FieldMessageID, msg.MessageID,
		applog.FieldDocumentKey, msg.Key,
		applog.FieldVersion, msg.Version,
		applog.FieldOperation, msg.Operation)

	if err := w.exportKey(ctx, msg.Key, TriggerMessage, 0); err != nil {
		return fmt.Errorf("sync document %q: %w", msg.Key, err)
	}
	return nil
}

// ProcessPending exports documents changed since their last export. Lost
// AMQP messages are recovered here. Stores without sync tracking have the
// main document exported unconditionally.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize, TriggerPeriodic)
}

// StartupSyncCheck runs a larger pending pass when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize*5, TriggerStartup)
}

func (w *SyncWorker) processPending(ctx context.Context, limit int, trigger string) error {
	if w.tracker == nil {
		return w.exportKey(ctx, store.DocumentKey, trigger, 0)
	}

	pending, err := w.tracker.PendingSync(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending documents: %w", err)
	}
	if len(pending) == 0 {
		w.logger.DebugContext(ctx, "No pending documents", "trigger", trigger)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing pending documents",
		"trigger", trigger,
		"count", len(pending))

	var errs []error
	for _, p := range pending {
		if err := w.exportKey(ctx, p.Key, trigger, p.Version); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export document",
				applog.FieldDocumentKey, p.Key,
				applog.FieldVersion, p.Version,
				applog.FieldError, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run processes pending documents every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				w.logger.WarnContext(ctx, "Periodic sync failed", applog.FieldError, err)
			}
		}
	}
}

// exportKey exports key and marks it synced. pendingVersion is the version
// the tracker reported; it is what gets marked for a deleted key, whose
// load yields no version of its own.
func (w *SyncWorker) exportKey(ctx context.Context, key, trigger string, pendingVersion int64) error {
	doc, version, err := w.load(ctx, key)
	if err != nil {
		metrics.Exports.WithLabelValues(trigger, metrics.StatusError).Inc()
		return err
	}
	if version == 0 {
		version = pendingVersion
	}

	start := time.Now()
	err = w.exporter.Export(ctx, doc, w.now())
	metrics.ExportDuration.Observe(time.Since(start).Seconds())
	metrics.Exports.WithLabelValues(trigger, metrics.StatusOf(err)).Inc()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if w.tracker != nil && version > 0 {
		if err := w.tracker.MarkSynced(ctx, key, version); err != nil {
			// The export itself succeeded; the next pass repeats it.
			w.logger.ErrorContext(ctx, "Failed to mark as synced",
				applog.FieldDocumentKey, key,
				applog.FieldVersion, version,
				applog.FieldError, err)
		}
	}

	w.logger.InfoContext(ctx, "Successfully exported document",
		applog.FieldDocumentKey, key,
		applog.FieldVersion, version,
		"trigger", trigger,
		"installments", len(doc.Plan))
	return nil
}

// load returns the stored document and its version. A missing key exports
// the default document with version 0, which is what a reset leaves behind.
func (w *SyncWorker) load(ctx context.Context, key string) (core.Document, int64, error) {
	body, version, err := w.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return core.DefaultDocument(), 0, nil
	}
	if err != nil {
		return core.Document{}, 0, fmt.Errorf("get document from storage: %w", err)
	}

	doc, err := core.DecodeDocument(body)
	if err != nil {
		w.logger.WarnContext(ctx, "Stored document is unreadable, exporting default",
			applog.FieldDocumentKey, key,
			applog.FieldVersion, version,
			applog.FieldError, err)
		return core.DefaultDocument(), version, nil
	}
	return doc, version, nil
}
