// Package observability provides Prometheus metrics, OpenTelemetry tracing
// helpers and the telemetry hooks that connect them to provider calls.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// PollBuckets covers the wait between two SSE events, from 10ms to 5m.
var PollBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 300}

var (
	// ProviderRequestsTotal counts HTTP attempts sent to backends by
	// provider and status ("2xx", "4xx", "429", "5xx", "error").
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opencodex_provider_requests_total",
			Help: "Provider request attempts",
		},
		[]string{"provider", "status"},
	)

	// ProviderRetriesTotal counts attempts after the first one.
	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opencodex_provider_retries_total",
			Help: "Provider request retries",
		},
		[]string{"provider"},
	)

	// ProviderLatency records the time to response headers per attempt.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opencodex_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider"},
	)

	// ProviderTokensTotal counts tokens reported in completion events by
	// direction (input, cached_input, output, reasoning_output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opencodex_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "direction"},
	)

	// StreamPollsTotal counts waits for the next stream event by outcome
	// ("ok", "idle_timeout", "error").
	StreamPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opencodex_stream_polls_total",
			Help: "Stream polls",
		},
		[]string{"provider", "outcome"},
	)

	// StreamPollDuration records how long each wait for an event took.
	StreamPollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opencodex_stream_poll_duration_seconds",
			Help:    "Wait time between stream events",
			Buckets: PollBuckets,
		},
		[]string{"provider"},
	)

	// StreamsCompletedTotal counts streams that emitted their completion event.
	StreamsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opencodex_streams_completed_total",
			Help: "Completed streams",
		},
		[]string{"provider"},
	)

	// StreamingConnections tracks open SSE response bodies.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opencodex_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// SecurityDecisionsTotal counts command checks by decision.
	SecurityDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opencodex_security_decisions_total",
			Help: "Command policy decisions",
		},
		[]string{"decision"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderRetriesTotal,
		ProviderLatency,
		ProviderTokensTotal,
		StreamPollsTotal,
		StreamPollDuration,
		StreamsCompletedTotal,
		StreamingConnections,
		SecurityDecisionsTotal,
	)
}
