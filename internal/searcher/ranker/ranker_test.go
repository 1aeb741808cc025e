package ranker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
)

func title(text string, year int, authors ...string) book.Title {
	return book.MustTitle(text, authors, year)
}

func TestRankWeightDominatesYear(t *testing.T) {
	old := title("Old", 1900, "A")
	newer := title("New", 2020, "A")
	got := Rank([]Candidate{
		{Ordinal: 0, Title: old, Weight: 2},
		{Ordinal: 1, Title: newer, Weight: 1},
	}, 0)
	require.Len(t, got, 2)
	assert.True(t, got[0].Title.Equal(old))
	assert.Equal(t, int64(21900), got[0].Score)
	assert.Equal(t, int64(12020), got[1].Score)
}

func TestRankNewerFirstOnEqualWeight(t *testing.T) {
	a := title("Same", 1990, "X")
	b := title("Same", 2000, "X")
	got := Titles(Rank([]Candidate{
		{Ordinal: 0, Title: a, Weight: 3},
		{Ordinal: 1, Title: b, Weight: 3},
	}, 0))
	assert.Equal(t, []book.Title{b, a}, got)
}

func TestRankTieBreak(t *testing.T) {
	zed := title("Zed", 2000, "A")
	alphaB := title("Alpha", 2000, "B")
	alphaA := title("Alpha", 2000, "A")
	got := Titles(Rank([]Candidate{
		{Ordinal: 0, Title: zed, Weight: 1},
		{Ordinal: 1, Title: alphaB, Weight: 1},
		{Ordinal: 2, Title: alphaA, Weight: 1},
	}, 0))
	assert.Equal(t, []book.Title{alphaA, alphaB, zed}, got)
}

func TestRankDedupAndLimit(t *testing.T) {
	a := title("A", 2000, "X")
	b := title("B", 1999, "X")
	c := title("C", 1998, "X")
	got := Rank([]Candidate{
		{Ordinal: 0, Title: a, Weight: 1},
		{Ordinal: 0, Title: a, Weight: 1},
		{Ordinal: 1, Title: b, Weight: 1},
		{Ordinal: 2, Title: c, Weight: 1},
		{Ordinal: 3, Title: title("Zero", 2001, "X"), Weight: 0},
	}, 2)
	assert.Equal(t, []book.Title{a, b}, Titles(got))

	all := Rank([]Candidate{{Title: a, Weight: 1}, {Title: a, Weight: 1}}, 0)
	assert.Len(t, all, 1)
}

func TestRankEmpty(t *testing.T) {
	got := Rank(nil, 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func BenchmarkRank(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		cands := make([]Candidate, n)
		for i := range cands {
			cands[i] = Candidate{
				Ordinal: uint32(i),
				Title:   title(fmt.Sprintf("Title %d", i%50), 1900+i%120, "Author"),
				Weight:  1 + i%3,
			}
		}
		b.Run(fmt.Sprintf("candidates_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Rank(cands, 10)
			}
		})
	}
}
