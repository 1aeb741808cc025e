package book

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Condition is the physical state of a Copy.
type Condition int32

const (
	Good Condition = iota
	Damaged
)

func (c Condition) String() string {
	switch c {
	case Good:
		return "good"
	case Damaged:
		return "damaged"
	default:
		return fmt.Sprintf("condition(%d)", int32(c))
	}
}

func (c Condition) Valid() bool { return c == Good || c == Damaged }

// ParseCondition accepts "good" or "damaged" in any case.
func ParseCondition(s string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good":
		return Good, nil
	case "damaged":
		return Damaged, nil
	}
	return 0, fmt.Errorf("unknown condition %q", s)
}

func (c Condition) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid condition %d", int32(c))
	}
	return []byte(c.String()), nil
}

func (c *Condition) UnmarshalText(text []byte) error {
	parsed, err := ParseCondition(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Copy is one physical copy of a Title. Two copies of the same Title are
// distinct; callers compare copies by pointer. The ID is only a handle for
// callers that cannot hold the pointer (HTTP, Kafka).
type Copy struct {
	id        uuid.UUID
	title     Title
	condition atomic.Int32
}

// NewCopy creates a copy in Good condition.
func NewCopy(title Title) (*Copy, error) {
	if title.IsZero() {
		return nil, fmt.Errorf("copy requires a title")
	}
	return &Copy{id: uuid.New(), title: title}, nil
}

func (c *Copy) ID() uuid.UUID { return c.id }

func (c *Copy) Title() Title { return c.title }

func (c *Copy) Condition() Condition { return Condition(c.condition.Load()) }

func (c *Copy) SetCondition(cond Condition) error {
	if !cond.Valid() {
		return fmt.Errorf("invalid condition %d", int32(cond))
	}
	c.condition.Store(int32(cond))
	return nil
}

func (c *Copy) String() string {
	return fmt.Sprintf("%s (condition: %s, id: %s)", c.title, c.Condition(), c.id)
}

func (c *Copy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        uuid.UUID `json:"id"`
		Title     Title     `json:"title"`
		Condition Condition `json:"condition"`
	}{c.id, c.title, c.Condition()})
}
