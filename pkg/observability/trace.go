package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the opencodex tracer.
const tracerName = "github.com/ce-data-e/opencodex"

// Tracer returns the package-level [trace.Tracer]. It uses the globally
// registered [trace.TracerProvider], so spans are no-ops until
// InitTracing (or another SDK setup) runs.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// TracingConfig configures InitTracing.
type TracingConfig struct {
	// ServiceName is reported as service.name. Default: "opencodex".
	ServiceName string

	// Exporter is an optional span exporter. When nil, spans are recorded
	// (so trace IDs reach the logs) but not exported.
	Exporter sdktrace.SpanExporter
}

// InitTracing installs an SDK tracer provider as the global provider. The
// caller must Shutdown the returned provider to flush pending spans.
func InitTracing(cfg TracingConfig) *sdktrace.TracerProvider {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "opencodex"
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	}
	if cfg.Exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.Exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp
}

// Logger returns an [slog.Logger] enriched with trace_id and span_id from
// the span in ctx. Without an active span it is the default logger.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
