package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/logger"
)

// RequestIDHeader carries the originating HTTP request ID across Kafka.
const RequestIDHeader = "x-request-id"

var propagator = propagation.TraceContext{}

// headerCarrier adapts message headers to the OpenTelemetry text map
// interface. Set replaces an existing key.
type headerCarrier struct{ headers *[]kafka.Header }

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(*c.headers))
	for i, h := range *c.headers {
		keys[i] = h.Key
	}
	return keys
}

// injectHeaders adds the request ID and trace context in ctx to headers.
func injectHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	c := headerCarrier{&headers}
	if id := logger.RequestID(ctx); id != "" && c.Get(RequestIDHeader) == "" {
		c.Set(RequestIDHeader, id)
	}
	propagator.Inject(ctx, c)
	return headers
}

// extractHeaders returns ctx carrying the request ID and remote span
// context found in headers.
func extractHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	c := headerCarrier{&headers}
	if id := c.Get(RequestIDHeader); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	return propagator.Extract(ctx, c)
}
