package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"heristone/internal/core"
	applog "heristone/internal/log"
	"heristone/internal/metrics"
	"heristone/internal/store"
)

// Publisher announces persisted document changes.
type Publisher interface {
	PublishDocumentSync(ctx context.Context, key string, version int64, operation string) error
}

// DocumentService owns the persisted document. It loads it with a fallback
// to the bundled default, applies mutations one at a time and persists after
// each one. Subscribers learn about changes through the optional Publisher.
type DocumentService struct {
	mu        sync.Mutex
	store     store.BlobStore
	publisher Publisher
	key       string
	tolerance int64
	now       func() time.Time
	logger    *applog.Logger
	events    *applog.StructuredLogger
}

// Option configures a DocumentService.
type Option func(*DocumentService)

// WithPublisher enables change notifications.
func WithPublisher(p Publisher) Option {
	return func(s *DocumentService) { s.publisher = p }
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *DocumentService) { s.key = key }
}

// WithTolerance overrides the next-payment completion tolerance.
func WithTolerance(tolerance int64) Option {
	return func(s *DocumentService) { s.tolerance = tolerance }
}

// WithClock overrides the clock used when no reference date is given.
func WithClock(now func() time.Time) Option {
	return func(s *DocumentService) { s.now = now }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *DocumentService) { s.logger = applog.Wrap(l, applog.ComponentDocument) }
}

func NewDocumentService(bs store.BlobStore, opts ...Option) *DocumentService {
	s := &DocumentService{
		store:     bs,
		key:       store.DocumentKey,
		tolerance: core.DefaultCompletionTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.Wrap(slog.Default(), applog.ComponentDocument)
	}
	s.events = applog.NewStructuredLogger(s.logger)
	return s
}

// Key returns the storage key of the document.
func (s *DocumentService) Key() string {
	return s.key
}

// Document returns the current document.
func (s *DocumentService) Document(ctx context.Context) (core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// load reads the stored blob. A missing or undecodable blob yields the
// default document; only store failures are returned as errors.
func (s *DocumentService) load(ctx context.Context) (core.Document, error) {
	body, version, err := s.store.Get(ctx, s.key)
	if errors.Is(err, store.ErrNotFound) {
		metrics.DocumentLoads.WithLabelValues("default").Inc()
		s.logger.DebugContext(ctx, "No stored document, using default", applog.FieldDocumentKey, s.key)
		return core.DefaultDocument(), nil
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("load document: %w", err)
	}

	doc, err := core.DecodeDocument(body)
	if err != nil {
		metrics.DocumentLoads.WithLabelValues("corrupt").Inc()
		s.logger.WarnContext(ctx, "Stored document is unreadable, using default",
			applog.FieldDocumentKey, s.key,
			applog.FieldVersion, version,
			applog.FieldError, err)
		return core.DefaultDocument(), nil
	}
	if err := doc.Validate(); err != nil {
		s.logger.WarnContext(ctx, "Stored document has problems",
			applog.FieldDocumentKey, s.key,
			applog.FieldError, err)
	}

	metrics.DocumentLoads.WithLabelValues("stored").Inc()
	return doc, nil
}

// mutate applies fn to the current document and persists the result.
// On any error the stored document is left as it was.
func (s *DocumentService) mutate(ctx context.Context, op string, fields applog.LogFields, fn func(core.Document) (core.Document, error)) (core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		metrics.Mutations.WithLabelValues(op, metrics.StatusError).Inc()
		return core.Document{}, err
	}

	next, err := fn(doc)
	if err != nil {
		metrics.Mutations.WithLabelValues(op, metrics.StatusError).Inc()
		return doc, err
	}

	version, err := s.persist(ctx, next)
	if err != nil {
		metrics.Mutations.WithLabelValues(op, metrics.StatusError).Inc()
		s.events.LogError(ctx, "Failed to persist document", err, applog.ComponentDocument, op, fields)
		return doc, err
	}

	metrics.Mutations.WithLabelValues(op, metrics.StatusOK).Inc()
	s.events.LogDocumentChanged(ctx, op, s.key, version, fields)
	s.publish(ctx, version, op)
	return next, nil
}

func (s *DocumentService) persist(ctx context.Context, doc core.Document) (int64, error) {
	body, err := core.EncodeDocument(doc)
	if err != nil {
		return 0, err
	}
	version, err := s.store.Put(ctx, s.key, body)
	if err != nil {
		return 0, fmt.Errorf("save document: %w", err)
	}
	return version, nil
}

// publish never fails the caller; the document is already saved.
func (s *DocumentService) publish(ctx context.Context, version int64, op string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishDocumentSync(ctx, s.key, version, op)
	metrics.SyncPublishes.WithLabelValues(metrics.StatusOf(err)).Inc()
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish sync message",
			applog.FieldOperation, op,
			applog.FieldVersion, version,
			applog.FieldError, err)
	}
}

// UpdateProjectField sets one project field.
func (s *DocumentService) UpdateProjectField(ctx context.Context, field core.ProjectField, value string) (core.Document, error) {
	return s.mutate(ctx, applog.OpUpdateProjectField, applog.LogFields{applog.FieldField: string(field)},
		func(doc core.Document) (core.Document, error) {
			return core.UpdateProjectField(doc, field, value)
		})
}

// UpdateInstallmentField sets one installment field.
func (s *DocumentService) UpdateInstallmentField(ctx context.Context, id int64, field core.InstallmentField, value string) (core.Document, error) {
	fields := applog.LogFields{applog.FieldInstallmentID: id, applog.FieldField: string(field)}
	return s.mutate(ctx, applog.OpUpdateInstallmentField, fields,
		func(doc core.Document) (core.Document, error) {
			return core.UpdateInstallmentField(doc, id, field, value)
		})
}

// AddPayment records a payment against an installment.
func (s *DocumentService) AddPayment(ctx context.Context, installmentID, amount int64, date core.Date, memo string) (core.Document, core.Payment, error) {
	var added core.Payment
	fields := applog.LogFields{applog.FieldInstallmentID: installmentID, applog.FieldAmount: amount}
	doc, err := s.mutate(ctx, applog.OpAddPayment, fields,
		func(doc core.Document) (core.Document, error) {
			next, p, err := core.AddPayment(doc, installmentID, amount, date, memo)
			added = p
			return next, err
		})
	return doc, added, err
}

// DeletePayment removes a payment.
func (s *DocumentService) DeletePayment(ctx context.Context, installmentID, paymentID int64) (core.Document, error) {
	fields := applog.LogFields{applog.FieldInstallmentID: installmentID, applog.FieldPaymentID: paymentID}
	return s.mutate(ctx, applog.OpDeletePayment, fields,
		func(doc core.Document) (core.Document, error) {
			return core.DeletePayment(doc, installmentID, paymentID)
		})
}

// UpdateOptionField sets an option's name or price.
func (s *DocumentService) UpdateOptionField(ctx context.Context, id int64, field core.OptionField, value string) (core.Document, error) {
	fields := applog.LogFields{applog.FieldOptionID: id, applog.FieldField: string(field)}
	return s.mutate(ctx, applog.OpUpdateOptionField, fields,
		func(doc core.Document) (core.Document, error) {
			return core.UpdateOptionField(doc, id, field, value)
		})
}

// AddOption appends a default option.
func (s *DocumentService) AddOption(ctx context.Context) (core.Document, core.Option, error) {
	var added core.Option
	doc, err := s.mutate(ctx, applog.OpAddOption, nil,
		func(doc core.Document) (core.Document, error) {
			next, opt := core.AddOption(doc)
			added = opt
			return next, nil
		})
	return doc, added, err
}

// DeleteOption removes an option.
func (s *DocumentService) DeleteOption(ctx context.Context, id int64) (core.Document, error) {
	return s.mutate(ctx, applog.OpDeleteOption, applog.LogFields{applog.FieldOptionID: id},
		func(doc core.Document) (core.Document, error) {
			return core.DeleteOption(doc, id)
		})
}

// Reset discards the stored document. The next load returns the default.
func (s *DocumentService) Reset(ctx context.Context) (core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, s.key); err != nil {
		metrics.Mutations.WithLabelValues(applog.OpReset, metrics.StatusError).Inc()
		return core.Document{}, fmt.Errorf("reset document: %w", err)
	}

	metrics.Mutations.WithLabelValues(applog.OpReset, metrics.StatusOK).Inc()
	s.events.LogDocumentChanged(ctx, applog.OpReset, s.key, 0, nil)
	s.publish(ctx, 0, applog.OpReset)
	return core.DefaultDocument(), nil
}

// Stats computes the dashboard aggregates.
func (s *DocumentService) Stats(ctx context.Context) (core.Stats, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	return core.ComputeStats(doc), nil
}

// NextPayment selects the next installment to pay as of now. A zero now
// uses the service clock.
func (s *DocumentService) NextPayment(ctx context.Context, now time.Time) (core.NextPaymentInfo, bool, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return core.NextPaymentInfo{}, false, err
	}
	info, ok := core.NextPaymentWithTolerance(doc.Plan, s.reference(now), s.tolerance)
	return info, ok, nil
}

// Schedule builds the per-installment table as of now.
func (s *DocumentService) Schedule(ctx context.Context, now time.Time) ([]core.ScheduleRow, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	return core.BuildSchedule(doc, s.reference(now)), nil
}

func (s *DocumentService) reference(now time.Time) time.Time {
	if now.IsZero() {
		return s.now()
	}
	return now
}

// Ready reports whether the backing store is reachable.
func (s *DocumentService) Ready(ctx context.Context) error {
	if p, ok := s.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the publisher when it holds a connection.
func (s *DocumentService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
