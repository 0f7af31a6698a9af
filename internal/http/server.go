package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"heristone/internal/core"
	applog "heristone/internal/log"
	"heristone/internal/metrics"
	"heristone/internal/middleware/ratelimit"
	"heristone/internal/middleware/security"
	"heristone/internal/middleware/trace"
)

// DocumentService is the application surface the API exposes.
type DocumentService interface {
	Document(ctx context.Context) (core.Document, error)
	Stats(ctx context.Context) (core.Stats, error)
	NextPayment(ctx context.Context, now time.Time) (core.NextPaymentInfo, bool, error)
	Schedule(ctx context.Context, now time.Time) ([]core.ScheduleRow, error)
	UpdateProjectField(ctx context.Context, field core.ProjectField, value string) (core.Document, error)
	UpdateInstallmentField(ctx context.Context, id int64, field core.InstallmentField, value string) (core.Document, error)
	AddPayment(ctx context.Context, installmentID, amount int64, date core.Date, memo string) (core.Document, core.Payment, error)
	DeletePayment(ctx context.Context, installmentID, paymentID int64) (core.Document, error)
	UpdateOptionField(ctx context.Context, id int64, field core.OptionField, value string) (core.Document, error)
	AddOption(ctx context.Context) (core.Document, core.Option, error)
	DeleteOption(ctx context.Context, id int64) (core.Document, error)
	Reset(ctx context.Context) (core.Document, error)
	Ready(ctx context.Context) error
}

// Options tunes the server. The zero value is usable.
type Options struct {
	Logger            *slog.Logger
	RequestsPerMinute int
}

// Server wraps http.Server with the JSON API routes.
type Server struct {
	http.Server
	svc          DocumentService
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	logger       *applog.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc DocumentService, opts Options) *Server {
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}

	s := &Server{
		svc:     svc,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		tracer:  trace.NewMiddleware(extractClientIP, base),
		logger:  applog.Wrap(base, applog.ComponentHTTP),
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /healthz", handleHealth)
	s.handle(mux, "GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	s.handle(mux, "GET /api/document", s.handleDocument)
	s.handle(mux, "GET /api/stats", s.handleStats)
	s.handle(mux, "GET /api/next-payment", s.handleNextPayment)
	s.handle(mux, "GET /api/schedule", s.handleSchedule)
	s.handle(mux, "GET /api/export.xlsx", s.handleExportWorkbook)
	s.handle(mux, "PATCH /api/project", s.handleUpdateProject)
	s.handle(mux, "PATCH /api/installments/{id}", s.handleUpdateInstallment)
	s.handle(mux, "POST /api/installments/{id}/payments", s.handleAddPayment)
	s.handle(mux, "DELETE /api/installments/{id}/payments/{paymentID}", s.handleDeletePayment)
	s.handle(mux, "POST /api/options", s.handleAddOption)
	s.handle(mux, "PATCH /api/options/{id}", s.handleUpdateOption)
	s.handle(mux, "DELETE /api/options/{id}", s.handleDeleteOption)
	s.handle(mux, "POST /api/reset", s.handleReset)

	var h http.Handler = mux
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.Middleware(s.logger)(h)
	h = s.limiter.Middleware(extractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// handle registers fn under pattern and records request metrics labelled by
// the pattern, not the concrete path.
func (s *Server) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	}))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server and the limiter cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
