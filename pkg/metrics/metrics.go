// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationsTotal tracks generation requests by terminal state.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Generation requests by outcome",
		},
		[]string{"outcome"},
	)

	// GenerationDuration tracks end-to-end generation latency.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "End-to-end generation pipeline duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
	)

	// QuotaDenialsTotal tracks admission denials by reason.
	QuotaDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Generation requests denied at admission",
		},
		[]string{"reason"},
	)

	// CompletionDuration tracks completion provider call duration.
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completion_duration_seconds",
			Help:    "Completion provider call duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 15, 20, 30},
		},
		[]string{"model", "status"},
	)

	// CompletionTokensTotal tracks completion tokens processed.
	CompletionTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_tokens_total",
			Help: "Completion tokens processed",
		},
		[]string{"model", "direction"},
	)

	// DispatcherWaiting tracks calls queued behind the global throttle.
	DispatcherWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_waiting_calls",
			Help: "Completion calls waiting for a dispatch slot",
		},
	)

	// DispatcherInFlight tracks in-flight completion provider calls.
	DispatcherInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_in_flight_calls",
			Help: "In-flight completion provider calls",
		},
	)

	// EmbeddingCallsTotal tracks embedding provider calls.
	EmbeddingCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_calls_total",
			Help: "Embedding provider calls",
		},
		[]string{"status"},
	)

	// RetrievalResults tracks the number of memory blocks returned per retrieval.
	RetrievalResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_results",
			Help:    "Memory blocks returned per retrieval",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// ExchangesPersistedTotal tracks persisted message pairs.
	ExchangesPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exchanges_persisted_total",
			Help: "Persisted user/assistant message pairs",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records the outcome and duration of a generation request.
func RecordGeneration(outcome string, duration float64) {
	GenerationsTotal.WithLabelValues(outcome).Inc()
	GenerationDuration.Observe(duration)
}

// RecordCompletion records metrics for a completion provider call.
func RecordCompletion(model, status string, duration float64, tokensIn, tokensOut int) {
	CompletionDuration.WithLabelValues(model, status).Observe(duration)
	CompletionTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	CompletionTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}
