package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
)

// Telemetry records provider calls in the Prometheus metrics. One value
// is created per configured provider because request attempts carry no
// provider name of their own. It satisfies transport.RequestTelemetry and
// provider.StreamTelemetry.
type Telemetry struct {
	Provider string
}

// NewTelemetry returns the telemetry hooks for the named provider.
func NewTelemetry(provider string) *Telemetry {
	return &Telemetry{Provider: provider}
}

// OnRequest records one HTTP attempt.
func (t *Telemetry) OnRequest(attempt int, status int, err error, elapsed time.Duration) {
	ProviderRequestsTotal.WithLabelValues(t.Provider, StatusLabel(status, err)).Inc()
	ProviderLatency.WithLabelValues(t.Provider).Observe(elapsed.Seconds())
	if attempt > 1 {
		ProviderRetriesTotal.WithLabelValues(t.Provider).Inc()
	}
}

// OnStreamPoll records one wait for the next stream event.
func (t *Telemetry) OnStreamPoll(provider string, err error, elapsed time.Duration) {
	StreamPollsTotal.WithLabelValues(provider, PollOutcome(err)).Inc()
	StreamPollDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// OnStreamCompleted records a finished stream and its token usage.
func (t *Telemetry) OnStreamCompleted(provider string, usage *api.TokenUsage) {
	StreamsCompletedTotal.WithLabelValues(provider).Inc()
	if usage == nil {
		return
	}
	ProviderTokensTotal.WithLabelValues(provider, "input").Add(float64(usage.InputTokens))
	ProviderTokensTotal.WithLabelValues(provider, "cached_input").Add(float64(usage.CachedInputTokens))
	ProviderTokensTotal.WithLabelValues(provider, "output").Add(float64(usage.OutputTokens))
	ProviderTokensTotal.WithLabelValues(provider, "reasoning_output").Add(float64(usage.ReasoningOutputTokens))
}

// StatusLabel turns an attempt's outcome into a low-cardinality label.
// 429 is kept apart from other 4xx responses.
func StatusLabel(status int, err error) string {
	switch {
	case status == 0 && err != nil:
		return "error"
	case status == 0:
		return "unknown"
	case status == 429:
		return "429"
	default:
		return strconv.Itoa(status/100) + "xx"
	}
}

// PollOutcome classifies the result of a stream poll.
func PollOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return "idle_timeout"
	}
	return "error"
}
