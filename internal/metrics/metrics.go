package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Mutations counts document mutations by operation and outcome
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heristone",
			Name:      "document_mutations_total",
			Help:      "Document mutations by operation and status.",
		},
		[]string{"operation", "status"},
	)

	// DocumentLoads counts document loads by source
	DocumentLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heristone",
			Name:      "document_loads_total",
			Help:      "Document loads by source (stored, default, corrupt).",
		},
		[]string{"source"},
	)

	// SyncPublishes counts change notifications sent to the broker
	SyncPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heristone",
			Name:      "sync_publishes_total",
			Help:      "Document sync messages published by status.",
		},
		[]string{"status"},
	)

	// Exports counts spreadsheet exports run by the worker
	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heristone",
			Name:      "sheets_exports_total",
			Help:      "Google Sheets exports by trigger and status.",
		},
		[]string{"trigger", "status"},
	)

	// ExportDuration observes how long one export takes
	ExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "heristone",
			Name:      "sheets_export_duration_seconds",
			Help:      "Duration of a Google Sheets export.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// HTTPRequests counts API requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heristone",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPDuration observes API latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "heristone",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RateLimited counts rejected requests
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heristone",
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
	)
)

// Status label values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// StatusOf maps an error to a status label
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
