// Package metrics defines the Prometheus metric collectors used across the
// bridge and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the bridge.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	StagingEntriesTotal  *prometheus.CounterVec
	StagingDeletesTotal  prometheus.Counter
	SweepsTotal          *prometheus.CounterVec
	NettedToZeroTotal    *prometheus.CounterVec
	FeedbackRowsTotal    *prometheus.CounterVec
	FeedbackPurgedTotal  *prometheus.CounterVec
	FeedbackAcksTotal    *prometheus.CounterVec
	ExportCyclesTotal    *prometheus.CounterVec
	ViewerCacheHitsTotal prometheus.Counter
	ViewerCacheMissTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		StagingEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staging_entries_written_total",
				Help: "Staging entries written to the transact log by trans type.",
			},
			[]string{"trans_type"},
		),
		StagingDeletesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "staging_entries_deleted_total",
				Help: "Stale staging entries deleted before re-insert.",
			},
		),
		SweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweeps_total",
				Help: "Sweep decisions by outcome (executed, skipped).",
			},
			[]string{"kind", "outcome"},
		),
		NettedToZeroTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netted_to_zero_total",
				Help: "Pushes whose quantity netted to zero or below after allocation.",
			},
			[]string{"kind"},
		),
		FeedbackRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_rows_extracted_total",
				Help: "Feedback rows returned by extraction, by category.",
			},
			[]string{"category"},
		),
		FeedbackPurgedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_rows_purged_total",
				Help: "Archive rows removed by the retention sweep, by category.",
			},
			[]string{"category"},
		),
		FeedbackAcksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_acks_total",
				Help: "Feedback rows acknowledged (deleted) by consumers, by category.",
			},
			[]string{"category"},
		),
		ExportCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "export_cycles_total",
				Help: "Feedback export cycles by status.",
			},
			[]string{"status"},
		),
		ViewerCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "viewer_cache_hits_total",
				Help: "Total viewer cache hits.",
			},
		),
		ViewerCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "viewer_cache_misses_total",
				Help: "Total viewer cache misses.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StagingEntriesTotal,
		m.StagingDeletesTotal,
		m.SweepsTotal,
		m.NettedToZeroTotal,
		m.FeedbackRowsTotal,
		m.FeedbackPurgedTotal,
		m.FeedbackAcksTotal,
		m.ExportCyclesTotal,
		m.ViewerCacheHitsTotal,
		m.ViewerCacheMissTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
