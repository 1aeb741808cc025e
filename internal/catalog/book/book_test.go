package book

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pinYear(t *testing.T, year int) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func TestNewTitleValidation(t *testing.T) {
	pinYear(t, 2020)
	tests := []struct {
		name    string
		text    string
		authors []string
		year    int
		field   string
	}{
		{"blank text", "   ", []string{"A"}, 1990, "text"},
		{"no authors", "T", nil, 1990, "authors"},
		{"blank authors", "T", []string{" ", ""}, 1990, "authors"},
		{"zero year", "T", []string{"A"}, 0, "year"},
		{"future year", "T", []string{"A"}, 2021, "year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTitle(tt.text, tt.authors, tt.year)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	_, err := NewTitle("T", []string{"", "Someone"}, 2020)
	assert.NoError(t, err, "one named author is enough")
}

func TestTitleEquality(t *testing.T) {
	a := MustTitle("Dune", []string{"Frank Herbert"}, 1965)
	b := MustTitle("Dune", []string{"Frank Herbert"}, 1965)
	c := MustTitle("dune", []string{"Frank Herbert"}, 1965)
	d := MustTitle("Dune", []string{"A", "B"}, 1965)
	e := MustTitle("Dune", []string{"B", "A"}, 1965)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c), "case is significant")
	assert.NotEqual(t, a.Key(), c.Key())
	assert.False(t, d.Equal(e), "author order is significant")
	assert.NotEqual(t, d.Key(), e.Key())
}

func TestTitleKeyUnambiguous(t *testing.T) {
	a := MustTitle("x|y", []string{"z"}, 2000)
	b := MustTitle("x", []string{"y|z"}, 2000)
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestTitleAuthorsImmutable(t *testing.T) {
	authors := []string{"Ann"}
	title := MustTitle("T", authors, 2000)
	authors[0] = "Bob"
	got := title.Authors()
	got[0] = "Carl"
	assert.Equal(t, []string{"Ann"}, title.Authors())
}

func TestTitleJSONRoundTripValidates(t *testing.T) {
	title := MustTitle("Emma", []string{"Jane Austen"}, 1815)
	data, err := json.Marshal(title)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"Emma","authors":["Jane Austen"],"year":1815}`, string(data))

	var back Title
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, title.Equal(back))

	assert.Error(t, json.Unmarshal([]byte(`{"text":"","authors":["x"],"year":1}`), &back))
}

func TestCopyIdentityAndCondition(t *testing.T) {
	title := MustTitle("Emma", []string{"Jane Austen"}, 1815)
	c1, err := NewCopy(title)
	require.NoError(t, err)
	c2, err := NewCopy(title)
	require.NoError(t, err)

	assert.NotSame(t, c1, c2)
	assert.NotEqual(t, c1.ID(), c2.ID())
	assert.Equal(t, Good, c1.Condition())

	require.NoError(t, c1.SetCondition(Damaged))
	assert.Equal(t, Damaged, c1.Condition())
	assert.Equal(t, Good, c2.Condition())
	assert.Error(t, c1.SetCondition(Condition(7)))

	_, err = NewCopy(Title{})
	assert.Error(t, err)
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition(" DAMAGED ")
	require.NoError(t, err)
	assert.Equal(t, Damaged, c)
	_, err = ParseCondition("torn")
	assert.Error(t, err)
}
