package catalog

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
)

type copySet map[*book.Copy]struct{}

// shelf is the per-title copy index: every copy of one Title split by
// partition, so per-title queries never scan the whole catalog.
type shelf struct {
	title      book.Title
	available  copySet
	checkedOut copySet
	lost       copySet
}

func newShelf(t book.Title) *shelf {
	return &shelf{
		title:      t,
		available:  make(copySet),
		checkedOut: make(copySet),
		lost:       make(copySet),
	}
}

// Store owns the three copy partitions and the per-Title count of active
// copies. It reports count transitions across zero so the caller can keep
// the keyword index in step. Store is not safe for concurrent use.
type Store struct {
	available  copySet
	checkedOut copySet
	lost       copySet
	counts     map[string]int
	shelves    map[string]*shelf
}

func NewStore() *Store {
	return &Store{
		available:  make(copySet),
		checkedOut: make(copySet),
		lost:       make(copySet),
		counts:     make(map[string]int),
		shelves:    make(map[string]*shelf),
	}
}

// Add places a new copy in the available partition. It returns true when
// the copy is the Title's first active copy.
func (s *Store) Add(c *book.Copy) (admitted bool) {
	key := c.Title().Key()
	s.available[c] = struct{}{}
	s.shelf(c.Title()).available[c] = struct{}{}
	s.counts[key]++
	return s.counts[key] == 1
}

func (s *Store) Checkout(c *book.Copy) Outcome {
	if _, ok := s.available[c]; !ok {
		return NotAvailable
	}
	sh := s.shelves[c.Title().Key()]
	delete(s.available, c)
	delete(sh.available, c)
	s.checkedOut[c] = struct{}{}
	sh.checkedOut[c] = struct{}{}
	return Applied
}

func (s *Store) Checkin(c *book.Copy) Outcome {
	if _, ok := s.checkedOut[c]; !ok {
		return NotCheckedOut
	}
	sh := s.shelves[c.Title().Key()]
	delete(s.checkedOut, c)
	delete(sh.checkedOut, c)
	s.available[c] = struct{}{}
	sh.available[c] = struct{}{}
	return Applied
}

// Lose moves c out of whichever active partition holds it and records it as
// lost. evicted is true when c was the Title's last active copy. A copy in
// neither active partition is still recorded but no count changes.
func (s *Store) Lose(c *book.Copy) (outcome Outcome, evicted bool) {
	key := c.Title().Key()
	sh := s.shelf(c.Title())

	active := false
	if _, ok := s.available[c]; ok {
		delete(s.available, c)
		delete(sh.available, c)
		active = true
	} else if _, ok := s.checkedOut[c]; ok {
		delete(s.checkedOut, c)
		delete(sh.checkedOut, c)
		active = true
	}

	_, wasLost := s.lost[c]
	s.lost[c] = struct{}{}
	sh.lost[c] = struct{}{}

	if !active {
		if wasLost {
			return AlreadyLost, false
		}
		return NotTracked, false
	}

	s.counts[key]--
	if s.counts[key] <= 0 {
		delete(s.counts, key)
		return Applied, true
	}
	return Applied, false
}

func (s *Store) IsAvailable(c *book.Copy) bool {
	_, ok := s.available[c]
	return ok
}

func (s *Store) IsCheckedOut(c *book.Copy) bool {
	_, ok := s.checkedOut[c]
	return ok
}

func (s *Store) IsLost(c *book.Copy) bool {
	_, ok := s.lost[c]
	return ok
}

// AllCopies returns the active copies of t.
func (s *Store) AllCopies(t book.Title) []*book.Copy {
	sh, ok := s.shelves[t.Key()]
	if !ok {
		return []*book.Copy{}
	}
	return sorted(sh.available, sh.checkedOut)
}

func (s *Store) AvailableCopies(t book.Title) []*book.Copy {
	sh, ok := s.shelves[t.Key()]
	if !ok {
		return []*book.Copy{}
	}
	return sorted(sh.available)
}

func (s *Store) LostCopies(t book.Title) []*book.Copy {
	sh, ok := s.shelves[t.Key()]
	if !ok {
		return []*book.Copy{}
	}
	return sorted(sh.lost)
}

// Sizes reports the partition sizes and the number of Titles with at least
// one active copy.
func (s *Store) Sizes() (available, checkedOut, lost, titles int) {
	return len(s.available), len(s.checkedOut), len(s.lost), len(s.counts)
}

// Count is the number of active copies of t.
func (s *Store) Count(t book.Title) int { return s.counts[t.Key()] }

func (s *Store) shelf(t book.Title) *shelf {
	key := t.Key()
	sh, ok := s.shelves[key]
	if !ok {
		sh = newShelf(t)
		s.shelves[key] = sh
	}
	return sh
}

// sorted merges the sets into one slice ordered by copy ID.
func sorted(sets ...copySet) []*book.Copy {
	n := 0
	for _, set := range sets {
		n += len(set)
	}
	out := make([]*book.Copy, 0, n)
	for _, set := range sets {
		for c := range set {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out
}
