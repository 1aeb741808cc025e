package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/config"
)

func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return exporter
}

func TestStartAndEnd(t *testing.T) {
	exporter := installRecorder(t)

	ctx, parent := Start(context.Background(), "catalog.search", attribute.String("query", "potter"))
	assert.NotEmpty(t, TraceID(ctx))
	_, child := Start(ctx, "index.postings")
	End(child, nil)
	End(parent, errors.New("boom"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "index.postings", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, "catalog.search", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Contains(t, spans[1].Attributes, attribute.String("query", "potter"))
}

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Equal(t, "", TraceID(context.Background()))
}

func TestLogExporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(logger)))
	_, span := tp.Tracer("test").Start(context.Background(), "catalog.purchase")
	span.SetAttributes(attribute.Int("copies", 2))
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "span", rec["msg"])
	assert.Equal(t, "catalog.purchase", rec["span"])
	assert.Equal(t, "tracing", rec["component"])
	assert.EqualValues(t, 2, rec["copies"])
}

func TestSetupDisabled(t *testing.T) {
	shutdown := Setup(config.TracingConfig{Enabled: false})
	assert.NoError(t, shutdown(context.Background()))
}
