package catalog

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/errors"
)

// Outcome reports what a circulation call did. Calls that do not apply are
// not errors; callers wanting strict semantics use Err.
type Outcome int

const (
	// Applied means the requested transition happened.
	Applied Outcome = iota
	// NotAvailable: checkout of a copy that is not in the available partition.
	NotAvailable
	// NotCheckedOut: checkin of a copy that is not checked out.
	NotCheckedOut
	// NotTracked: lose of a copy held by neither active partition. The copy
	// is still recorded as lost.
	NotTracked
	// AlreadyLost: lose of a copy that was already recorded as lost.
	AlreadyLost
)

var outcomeNames = map[Outcome]string{
	Applied:       "applied",
	NotAvailable:  "not_available",
	NotCheckedOut: "not_checked_out",
	NotTracked:    "not_tracked",
	AlreadyLost:   "already_lost",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// OK reports whether the transition was applied.
func (o Outcome) OK() bool { return o == Applied }

// Err maps a non-applied Outcome to its sentinel error, or nil for Applied.
func (o Outcome) Err() error {
	switch o {
	case Applied:
		return nil
	case NotAvailable:
		return apperrors.ErrNotAvailable
	case NotCheckedOut:
		return apperrors.ErrNotCheckedOut
	case NotTracked:
		return apperrors.ErrNotTracked
	case AlreadyLost:
		return apperrors.ErrAlreadyLost
	}
	return apperrors.ErrInternal
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for k, name := range outcomeNames {
		if name == string(text) {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}
