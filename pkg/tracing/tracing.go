// Package tracing wraps OpenTelemetry for the catalog service. Spans are
// no-ops until Setup installs an SDK tracer provider; the provider Setup
// installs writes finished spans to slog.
package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/config"
)

const instrumentationName = "github.com/Adithya-Monish-Kumar-K/library-catalog"

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Start opens a span named name as a child of any span in ctx.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the hex trace ID in ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Setup installs a global SDK tracer provider sampling at cfg.SampleRate and
// exporting through LogExporter. When tracing is disabled it installs
// nothing and the returned shutdown is a no-op.
func Setup(cfg config.TracingConfig) (shutdown func(context.Context) error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		sdktrace.WithBatcher(NewLogExporter(slog.Default())),
	)
	otel.SetTracerProvider(tp)
	slog.Info("tracing enabled",
		"service", cfg.ServiceName,
		"sample_rate", cfg.SampleRate,
	)
	return tp.Shutdown
}
