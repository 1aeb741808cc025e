// Package book defines the catalog's value types. A Title is an immutable
// description of a published edition; a Copy is one physical instance of a
// Title whose identity is the instance itself.
package book

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// now is replaced in tests to pin the current year.
var now = time.Now

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range []string{"text", "authors", "year"} {
		if msg, ok := e.Fields[field]; ok {
			parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
		}
	}
	return strings.Join(parts, "; ")
}

// Title is identified by its text, ordered author list, and year. Case and
// author order are significant. The zero Title is not valid and is used to
// mean "absent".
type Title struct {
	text    string
	authors []string
	year    int
}

// NewTitle validates and builds a Title. The authors slice is copied.
func NewTitle(text string, authors []string, year int) (Title, error) {
	errs := make(map[string]string)
	if strings.TrimSpace(text) == "" {
		errs["text"] = "title text is required"
	}
	if len(authors) == 0 {
		errs["authors"] = "at least one author is required"
	} else {
		named := false
		for _, a := range authors {
			if strings.TrimSpace(a) != "" {
				named = true
				break
			}
		}
		if !named {
			errs["authors"] = "at least one author name must be non-blank"
		}
	}
	if current := now().Year(); year <= 0 || year > current {
		errs["year"] = fmt.Sprintf("year must be in 1..%d", current)
	}
	if len(errs) > 0 {
		return Title{}, &ValidationError{Fields: errs}
	}
	return Title{
		text:    text,
		authors: append([]string(nil), authors...),
		year:    year,
	}, nil
}

// MustTitle is NewTitle for fixtures and tests; it panics on invalid input.
func MustTitle(text string, authors []string, year int) Title {
	t, err := NewTitle(text, authors, year)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Title) Text() string { return t.text }

// Authors returns a copy of the author list.
func (t Title) Authors() []string { return append([]string(nil), t.authors...) }

func (t Title) Year() int { return t.year }

// IsZero reports whether t is the absent Title.
func (t Title) IsZero() bool { return t.text == "" && len(t.authors) == 0 && t.year == 0 }

// Key returns a string that is equal for two Titles iff the Titles are equal,
// suitable as a map key.
func (t Title) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(t.text))
	for _, a := range t.authors {
		b.WriteByte('|')
		b.WriteString(strconv.Quote(a))
	}
	b.WriteByte('#')
	b.WriteString(strconv.Itoa(t.year))
	return b.String()
}

func (t Title) Equal(other Title) bool {
	if t.text != other.text || t.year != other.year || len(t.authors) != len(other.authors) {
		return false
	}
	for i := range t.authors {
		if t.authors[i] != other.authors[i] {
			return false
		}
	}
	return true
}

func (t Title) String() string {
	return fmt.Sprintf("%s [%s] %d", t.text, strings.Join(t.authors, ", "), t.year)
}

type titleJSON struct {
	Text    string   `json:"text"`
	Authors []string `json:"authors"`
	Year    int      `json:"year"`
}

func (t Title) MarshalJSON() ([]byte, error) {
	return json.Marshal(titleJSON{Text: t.text, Authors: t.authors, Year: t.year})
}

// UnmarshalJSON decodes and validates a Title.
func (t *Title) UnmarshalJSON(data []byte) error {
	var raw titleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewTitle(raw.Text, raw.Authors, raw.Year)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
