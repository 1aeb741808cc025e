package ranker

import (
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
)

// WeightFactor makes match weight strictly dominate publication year.
const WeightFactor = 10000

// Candidate is a Title that matched at least one query keyword.
type Candidate struct {
	Ordinal uint32
	Title   book.Title
	Weight  int
}

type ScoredTitle struct {
	Title  book.Title `json:"title"`
	Weight int        `json:"weight"`
	Score  int64      `json:"score"`
}

func Score(weight, year int) int64 {
	return int64(weight)*WeightFactor + int64(year)
}

// Rank scores every candidate with positive weight and orders them by score
// descending. Equal scores fall back to title text, then author list, both
// ascending, then to index ordinal. Each Title appears once. A positive
// limit truncates the result.
func Rank(cands []Candidate, limit int) []ScoredTitle {
	type scored struct {
		Candidate
		score int64
	}
	ranked := make([]scored, 0, len(cands))
	for _, c := range cands {
		if c.Weight <= 0 {
			continue
		}
		ranked = append(ranked, scored{Candidate: c, score: Score(c.Weight, c.Title.Year())})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.Title.Text() != b.Title.Text() {
			return a.Title.Text() < b.Title.Text()
		}
		if cmp := slices.Compare(a.Title.Authors(), b.Title.Authors()); cmp != 0 {
			return cmp < 0
		}
		return a.Ordinal < b.Ordinal
	})

	seen := make(map[string]struct{}, len(ranked))
	result := make([]ScoredTitle, 0, len(ranked))
	for _, r := range ranked {
		key := r.Title.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, ScoredTitle{
			Title:  r.Title,
			Weight: r.Weight,
			Score:  r.score,
		})
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

// Titles strips the scores.
func Titles(scored []ScoredTitle) []book.Title {
	out := make([]book.Title, len(scored))
	for i, s := range scored {
		out[i] = s.Title
	}
	return out
}
