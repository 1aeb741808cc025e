package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
)

type Op string

const (
	OpPurchase     Op = "purchase"
	OpCheckout     Op = "checkout"
	OpCheckin      Op = "checkin"
	OpLose         Op = "lose"
	OpSetCondition Op = "set_condition"
)

// Event describes one catalog mutation, applied or not.
type Event struct {
	Type      string         `json:"type"`
	Op        Op             `json:"op"`
	Outcome   Outcome        `json:"outcome"`
	CopyID    uuid.UUID      `json:"copy_id"`
	Title     book.Title     `json:"title"`
	Condition book.Condition `json:"condition"`
	// Admitted and Evicted mark the Title entering or leaving the index.
	Admitted  bool      `json:"admitted,omitempty"`
	Evicted   bool      `json:"evicted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType is the envelope type of every catalog Event.
const EventType = "catalog_mutation"

// EventSink receives mutation events after the catalog lock is released.
// Track must not block.
type EventSink interface {
	Track(event any)
}

type discardSink struct{}

func (discardSink) Track(any) {}
