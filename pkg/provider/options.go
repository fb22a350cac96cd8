package provider

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/auth"
	"github.com/ce-data-e/opencodex/pkg/observability"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

// StreamTelemetry observes the response side of a call.
type StreamTelemetry interface {
	// OnStreamPoll is called after every wait for the next SSE event
	// (or once for a batch body), with the wait's outcome.
	OnStreamPoll(provider string, err error, elapsed time.Duration)

	// OnStreamCompleted is called once when the stream emits its
	// completion event.
	OnStreamCompleted(provider string, usage *api.TokenUsage)
}

// Options carries the collaborators shared by every vendor client.
type Options struct {
	Transport        transport.Transport
	Auth             auth.Provider
	RequestTelemetry transport.RequestTelemetry
	StreamTelemetry  StreamTelemetry
	Limiter          *rate.Limiter
	Tracer           trace.Tracer
}

// Option configures Options.
type Option func(*Options)

// WithTransport sets the transport. Default: a plain HTTPTransport.
func WithTransport(t transport.Transport) Option {
	return func(o *Options) { o.Transport = t }
}

// WithAuth sets the credential provider.
func WithAuth(a auth.Provider) Option {
	return func(o *Options) { o.Auth = a }
}

// WithRequestTelemetry sets the per-attempt observer.
func WithRequestTelemetry(t transport.RequestTelemetry) Option {
	return func(o *Options) { o.RequestTelemetry = t }
}

// WithStreamTelemetry sets the response-side observer.
func WithStreamTelemetry(t StreamTelemetry) Option {
	return func(o *Options) { o.StreamTelemetry = t }
}

// WithRateLimiter makes every attempt wait for a token from l.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(o *Options) { o.Limiter = l }
}

// WithTracer sets the tracer used for per-call spans. Default: the global
// opencodex tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Options) { o.Tracer = t }
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Transport == nil {
		o.Transport = transport.NewHTTPTransport(nil)
	}
	if o.Tracer == nil {
		o.Tracer = observability.Tracer()
	}
	return o
}
