package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog"
)

type EventType string

const (
	EventSearch          EventType = "search"
	EventCatalogMutation EventType = catalog.EventType
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Tokens    int       `json:"tokens"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// envelope is decoded first to pick the concrete event type.
type envelope struct {
	Type EventType `json:"type"`
}

// decodeEvent returns a SearchEvent or a catalog.Event depending on the
// envelope type.
func decodeEvent(value []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	switch env.Type {
	case EventSearch:
		var ev SearchEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			return nil, fmt.Errorf("decoding search event: %w", err)
		}
		return ev, nil
	case EventCatalogMutation:
		var ev catalog.Event
		if err := json.Unmarshal(value, &ev); err != nil {
			return nil, fmt.Errorf("decoding catalog event: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}
