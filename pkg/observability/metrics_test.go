package observability

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry.
func TestMetricsRegistered(t *testing.T) {
	expected := map[string]bool{
		"opencodex_provider_requests_total":      false,
		"opencodex_provider_retries_total":       false,
		"opencodex_provider_latency_seconds":     false,
		"opencodex_provider_tokens_total":        false,
		"opencodex_stream_polls_total":           false,
		"opencodex_stream_poll_duration_seconds": false,
		"opencodex_streams_completed_total":      false,
		"opencodex_streaming_connections_active": false,
		"opencodex_security_decisions_total":     false,
	}

	// Vectors only appear after their first observation.
	ProviderRequestsTotal.WithLabelValues("seed", "2xx").Inc()
	ProviderRetriesTotal.WithLabelValues("seed").Inc()
	ProviderLatency.WithLabelValues("seed").Observe(0.1)
	ProviderTokensTotal.WithLabelValues("seed", "input").Add(1)
	StreamPollsTotal.WithLabelValues("seed", "ok").Inc()
	StreamPollDuration.WithLabelValues("seed").Observe(0.1)
	StreamsCompletedTotal.WithLabelValues("seed").Inc()
	SecurityDecisionsTotal.WithLabelValues("allow").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestTelemetryOnRequest(t *testing.T) {
	tel := NewTelemetry("tel-req")

	tel.OnRequest(1, 503, errors.New("unavailable"), 10*time.Millisecond)
	tel.OnRequest(2, 0, errors.New("connection reset"), time.Millisecond)
	tel.OnRequest(3, 200, nil, 20*time.Millisecond)

	if got := counterValue(t, ProviderRequestsTotal, "tel-req", "5xx"); got != 1 {
		t.Errorf("5xx count = %v, want 1", got)
	}
	if got := counterValue(t, ProviderRequestsTotal, "tel-req", "error"); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := counterValue(t, ProviderRequestsTotal, "tel-req", "2xx"); got != 1 {
		t.Errorf("2xx count = %v, want 1", got)
	}
	if got := counterValue(t, ProviderRetriesTotal, "tel-req"); got != 2 {
		t.Errorf("retries = %v, want 2", got)
	}
	if got := histogramCount(t, ProviderLatency, "tel-req"); got != 3 {
		t.Errorf("latency samples = %d, want 3", got)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "idle" }
func (timeoutErr) Timeout() bool { return true }

func TestTelemetryOnStreamPoll(t *testing.T) {
	tel := NewTelemetry("ignored")

	tel.OnStreamPoll("tel-poll", nil, time.Millisecond)
	tel.OnStreamPoll("tel-poll", nil, time.Millisecond)
	tel.OnStreamPoll("tel-poll", timeoutErr{}, time.Second)
	tel.OnStreamPoll("tel-poll", errors.New("reset"), time.Millisecond)

	if got := counterValue(t, StreamPollsTotal, "tel-poll", "ok"); got != 2 {
		t.Errorf("ok polls = %v, want 2", got)
	}
	if got := counterValue(t, StreamPollsTotal, "tel-poll", "idle_timeout"); got != 1 {
		t.Errorf("idle polls = %v, want 1", got)
	}
	if got := counterValue(t, StreamPollsTotal, "tel-poll", "error"); got != 1 {
		t.Errorf("error polls = %v, want 1", got)
	}
	if got := histogramCount(t, StreamPollDuration, "tel-poll"); got != 4 {
		t.Errorf("poll samples = %d, want 4", got)
	}
}

func TestTelemetryOnStreamCompleted(t *testing.T) {
	tel := NewTelemetry("tel-done")
	tel.OnStreamCompleted("tel-done", &api.TokenUsage{InputTokens: 10, CachedInputTokens: 4, OutputTokens: 5, ReasoningOutputTokens: 2})
	tel.OnStreamCompleted("tel-done", nil)

	if got := counterValue(t, StreamsCompletedTotal, "tel-done"); got != 2 {
		t.Errorf("completed = %v, want 2", got)
	}
	for dir, want := range map[string]float64{"input": 10, "cached_input": 4, "output": 5, "reasoning_output": 2} {
		if got := counterValue(t, ProviderTokensTotal, "tel-done", dir); got != want {
			t.Errorf("tokens[%s] = %v, want %v", dir, got, want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   string
	}{
		{200, nil, "2xx"},
		{404, errors.New("x"), "4xx"},
		{429, errors.New("x"), "429"},
		{500, errors.New("x"), "5xx"},
		{0, errors.New("x"), "error"},
		{0, nil, "unknown"},
	}
	for _, tt := range tests {
		if got := StatusLabel(tt.status, tt.err); got != tt.want {
			t.Errorf("StatusLabel(%d, %v) = %q, want %q", tt.status, tt.err, got, tt.want)
		}
	}
}

func TestStreamMetricsGauge(t *testing.T) {
	baseline := gaugeValue(t, StreamingConnections)

	fake := transport.Funcs{
		StreamFunc: func(ctx context.Context, req *transport.Request) (*transport.StreamResponse, error) {
			return &transport.StreamResponse{StatusCode: 200, Body: io.NopCloser(strings.NewReader("data: x\n\n"))}, nil
		},
	}
	tr := StreamMetrics()(fake)

	resp, err := tr.Stream(context.Background(), &transport.Request{})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if got := gaugeValue(t, StreamingConnections); got != baseline+1 {
		t.Errorf("gauge while open = %v, want %v", got, baseline+1)
	}

	resp.Body.Close()
	resp.Body.Close()
	if got := gaugeValue(t, StreamingConnections); got != baseline {
		t.Errorf("gauge after close = %v, want %v", got, baseline)
	}
}

func TestStreamMetricsFailedStream(t *testing.T) {
	baseline := gaugeValue(t, StreamingConnections)
	fake := transport.Funcs{
		StreamFunc: func(context.Context, *transport.Request) (*transport.StreamResponse, error) {
			return nil, &transport.StatusError{StatusCode: 500}
		},
	}
	if _, err := StreamMetrics()(fake).Stream(context.Background(), &transport.Request{}); err == nil {
		t.Fatal("expected error")
	}
	if got := gaugeValue(t, StreamingConnections); got != baseline {
		t.Errorf("gauge = %v, want unchanged %v", got, baseline)
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
