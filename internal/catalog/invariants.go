package catalog

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/errors"
)

// Verify recomputes every catalog invariant from raw state and returns the
// first violation, wrapping ErrInvariantViolation. It never mutates s or x.
//
//   - no copy is both available and checked out, and no lost copy is active
//   - each per-Title shelf holds exactly the global partition members of that Title
//   - the count of every Title equals its number of active copies, and only
//     Titles with active copies have a count
//   - the index holds exactly the Titles with a count, every posting set is
//     non-empty, and every (keyword, Title) pair comes from that Title's keywords
func Verify(s *Store, x *index.InvertedIndex) error {
	for c := range s.available {
		if _, ok := s.checkedOut[c]; ok {
			return violation("copy %s is both available and checked out", c.ID())
		}
	}
	for c := range s.lost {
		if _, ok := s.available[c]; ok {
			return violation("lost copy %s is available", c.ID())
		}
		if _, ok := s.checkedOut[c]; ok {
			return violation("lost copy %s is checked out", c.ID())
		}
	}

	if err := verifyShelves(s); err != nil {
		return err
	}

	active := make(map[string]int)
	titles := make(map[string]book.Title)
	for _, set := range []copySet{s.available, s.checkedOut} {
		for c := range set {
			key := c.Title().Key()
			active[key]++
			titles[key] = c.Title()
		}
	}
	for key, n := range active {
		if got := s.counts[key]; got != n {
			return violation("title %s has count %d, want %d", titles[key], got, n)
		}
	}
	for key, n := range s.counts {
		if _, ok := active[key]; !ok {
			return violation("title %s has count %d but no active copies", key, n)
		}
	}

	return verifyIndex(x, titles)
}

func verifyShelves(s *Store) error {
	global := map[string]copySet{
		"available":   s.available,
		"checked out": s.checkedOut,
		"lost":        s.lost,
	}
	members := map[string]int{}
	for key, sh := range s.shelves {
		for name, set := range map[string]copySet{
			"available":   sh.available,
			"checked out": sh.checkedOut,
			"lost":        sh.lost,
		} {
			for c := range set {
				if c.Title().Key() != key {
					return violation("copy %s shelved under another title", c.ID())
				}
				if _, ok := global[name][c]; !ok {
					return violation("shelf has %s copy %s missing from the partition", name, c.ID())
				}
				members[name]++
			}
		}
	}
	for name, set := range global {
		if members[name] != len(set) {
			return violation("%s partition has %d copies but shelves hold %d", name, len(set), members[name])
		}
	}
	return nil
}

func verifyIndex(x *index.InvertedIndex, want map[string]book.Title) error {
	indexed := x.Titles()
	if len(indexed) != len(want) {
		return violation("index holds %d titles, want %d", len(indexed), len(want))
	}
	for _, t := range indexed {
		if _, ok := want[t.Key()]; !ok {
			return violation("index holds inactive title %s", t)
		}
	}

	keywords := make(map[string]map[string]struct{}, len(want))
	for key, t := range want {
		set := make(map[string]struct{})
		for _, k := range index.Keywords(x.Tokenizer(), t) {
			set[k] = struct{}{}
			if !containsTitle(x.Postings(k), t) {
				return violation("title %s missing from keyword %q", t, k)
			}
		}
		keywords[key] = set
	}
	for _, entry := range x.Snapshot() {
		if len(entry.Postings) == 0 {
			return violation("keyword %q has an empty posting set", entry.Term)
		}
		for _, p := range entry.Postings {
			if _, ok := keywords[p.Title.Key()][entry.Term]; !ok {
				return violation("keyword %q lists %s, which it does not describe", entry.Term, p.Title)
			}
		}
	}
	return nil
}

func containsTitle(pl index.PostingList, t book.Title) bool {
	for _, p := range pl {
		if p.Title.Equal(t) {
			return true
		}
	}
	return false
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvariantViolation, fmt.Sprintf(format, args...))
}
