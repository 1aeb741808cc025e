package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/logger"
)

func TestDecodeJSON(t *testing.T) {
	type command struct {
		Op    string `json:"op"`
		Count int    `json:"count"`
	}
	got, err := DecodeJSON[command]([]byte(`{"op":"checkout","count":2}`))
	require.NoError(t, err)
	assert.Equal(t, command{Op: "checkout", Count: 2}, got)

	_, err = DecodeJSON[command]([]byte(`{"op":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestNewProducerKeyedWrites(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "catalog-events")
	defer p.Close()
	assert.Equal(t, "catalog-events", p.writer.Topic)
	assert.IsType(t, &kafka.Hash{}, p.writer.Balancer, "same key, same partition")
}

func TestHeadersCarryRequestAndTrace(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(logger.WithRequestID(context.Background(), "req-7"), "purchase")
	defer span.End()

	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "catalog-events")
	defer p.Close()
	msg, err := p.message(ctx, Event{Key: "copy-1", Value: map[string]string{"op": "purchase"}, Headers: map[string]string{"source": "http"}})
	require.NoError(t, err)
	assert.Equal(t, "copy-1", string(msg.Key))
	assert.JSONEq(t, `{"op":"purchase"}`, string(msg.Value))

	got := extractHeaders(context.Background(), msg.Headers)
	assert.Equal(t, "req-7", logger.RequestID(got))
	remote := trace.SpanContextFromContext(got)
	assert.True(t, remote.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), remote.TraceID())
	assert.Equal(t, "http", headerCarrier{&msg.Headers}.Get("source"))
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	var headers []kafka.Header
	c := headerCarrier{&headers}
	c.Set("k", "1")
	c.Set("k", "2")
	assert.Len(t, headers, 1)
	assert.Equal(t, "2", c.Get("k"))
	assert.Equal(t, []string{"k"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}

func TestPublishEmptyBatch(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "catalog-events")
	defer p.Close()
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
}
