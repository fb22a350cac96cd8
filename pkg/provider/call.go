package provider

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ce-data-e/opencodex/pkg/debug"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

// RequestSpec is the attempt-independent part of a vendor request.
type RequestSpec struct {
	URL    string
	Header http.Header
	Body   []byte
	// RequestID identifies the logical call. It is sent unchanged on
	// every attempt. Default: a fresh ID.
	RequestID string
	// Accept overrides the Accept header (text/event-stream for SSE).
	Accept string
}

// factory returns a function that rebuilds an identical request for each
// attempt. Credentials are applied per attempt so that expiring tokens are
// refreshed between retries.
func (o *Options) factory(ctx context.Context, cfg *Config, spec RequestSpec) func() (*transport.Request, error) {
	requestID := spec.RequestID
	if requestID == "" {
		requestID = transport.NewRequestID()
	}
	return func() (*transport.Request, error) {
		h := spec.Header.Clone()
		if h == nil {
			h = http.Header{}
		}
		h.Set("Content-Type", "application/json")
		if spec.Accept != "" {
			h.Set("Accept", spec.Accept)
		}
		h.Set(transport.HeaderRequestID, requestID)
		if o.Auth != nil {
			if err := o.Auth.Apply(ctx, h); err != nil {
				return nil, err
			}
		}
		return &transport.Request{
			Method:  http.MethodPost,
			URL:     spec.URL,
			Header:  h,
			Body:    spec.Body,
			Timeout: cfg.RequestTimeout,
		}, nil
	}
}

func (o *Options) wait(ctx context.Context) error {
	if o.Limiter == nil {
		return nil
	}
	return o.Limiter.Wait(ctx)
}

// Execute sends spec with retries and returns the buffered response.
// Failures are mapped to *api.APIError.
func (o *Options) Execute(ctx context.Context, cfg *Config, spec RequestSpec) (*transport.Response, error) {
	debug.Log("providers", "executing request", "provider", cfg.Name, "url", spec.URL)
	resp, err := transport.Run(ctx, cfg.Retry, o.RequestTelemetry, o.factory(ctx, cfg, spec),
		func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := o.wait(ctx); err != nil {
				return nil, err
			}
			return o.Transport.Execute(ctx, req)
		})
	return resp, MapError(err)
}

// OpenStream sends spec with retries and returns the open response body.
// Retries only happen before the body is handed over.
func (o *Options) OpenStream(ctx context.Context, cfg *Config, spec RequestSpec) (*transport.StreamResponse, error) {
	debug.Log("providers", "opening stream", "provider", cfg.Name, "url", spec.URL)
	resp, err := transport.Run(ctx, cfg.Retry, o.RequestTelemetry, o.factory(ctx, cfg, spec),
		func(ctx context.Context, req *transport.Request) (*transport.StreamResponse, error) {
			if err := o.wait(ctx); err != nil {
				return nil, err
			}
			return o.Transport.Stream(ctx, req)
		})
	return resp, MapError(err)
}

// StartSpan starts the span covering one call. The producer ends it with
// EndSpan when the stream finishes.
func (o *Options) StartSpan(ctx context.Context, cfg *Config, model string, streaming bool) (context.Context, trace.Span) {
	return o.Tracer.Start(ctx, "provider.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", cfg.Name),
			attribute.String("provider.wire_api", string(cfg.Wire)),
			attribute.String("llm.model", model),
			attribute.Bool("provider.streaming", streaming),
		),
	)
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
