// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring geocopilot.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TurnBuckets covers model generation latencies from 100ms to 2 minutes.
var TurnBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// TurnsTotal counts completed turns by category and execution outcome.
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocopilot_turns_total",
			Help: "Completed turns",
		},
		[]string{"category", "outcome"},
	)

	// StageDuration records the duration of each pipeline stage in seconds.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geocopilot_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: TurnBuckets,
		},
		[]string{"stage"},
	)

	// ModelRequestsTotal counts model invocations by model and status.
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocopilot_model_requests_total",
			Help: "Model requests",
		},
		[]string{"model", "status"},
	)

	// ModelTokensTotal counts tokens reported by the backend by direction.
	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocopilot_model_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// SanitizerRewritesTotal counts credential rewrites and secret redactions.
	SanitizerRewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocopilot_sanitizer_rewrites_total",
			Help: "Sanitizer rewrites",
		},
		[]string{"kind"},
	)

	// EnrichmentFailuresTotal counts best-effort portal lookups that fell
	// back to defaults.
	EnrichmentFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocopilot_enrichment_failures_total",
			Help: "Failed map and item enrichment lookups",
		},
		[]string{"kind"},
	)

	// HTTPRequestsTotal counts HTTP requests by method and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocopilot_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geocopilot_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: TurnBuckets,
		},
		[]string{"method"},
	)

	// WebsocketConnections tracks open chat sockets.
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geocopilot_websocket_connections_active",
			Help: "Active websocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TurnsTotal,
		StageDuration,
		ModelRequestsTotal,
		ModelTokensTotal,
		SanitizerRewritesTotal,
		EnrichmentFailuresTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WebsocketConnections,
	)
}

// CounterValue reads the current value of a CounterVec for the given labels.
// It returns 0 when the labels do not match the vector.
func CounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
