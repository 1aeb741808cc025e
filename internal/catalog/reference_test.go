package catalog

import (
	"context"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/ranker"
)

// referenceCatalog keeps copies in plain slices and answers every query by
// scanning them. It is the oracle the indexed Catalog is checked against.
type referenceCatalog struct {
	available  []*book.Copy
	checkedOut []*book.Copy
	lost       []*book.Copy
	admitted   []book.Title
}

func (r *referenceCatalog) purchase(c *book.Copy) {
	r.available = append(r.available, c)
	for _, t := range r.admitted {
		if t.Equal(c.Title()) {
			return
		}
	}
	r.admitted = append(r.admitted, c.Title())
}

func (r *referenceCatalog) checkout(c *book.Copy) Outcome {
	i := slices.Index(r.available, c)
	if i < 0 {
		return NotAvailable
	}
	r.available = slices.Delete(r.available, i, i+1)
	r.checkedOut = append(r.checkedOut, c)
	return Applied
}

func (r *referenceCatalog) checkin(c *book.Copy) Outcome {
	i := slices.Index(r.checkedOut, c)
	if i < 0 {
		return NotCheckedOut
	}
	r.checkedOut = slices.Delete(r.checkedOut, i, i+1)
	r.available = append(r.available, c)
	return Applied
}

func (r *referenceCatalog) lose(c *book.Copy) Outcome {
	out := NotTracked
	if i := slices.Index(r.available, c); i >= 0 {
		r.available = slices.Delete(r.available, i, i+1)
		out = Applied
	} else if i := slices.Index(r.checkedOut, c); i >= 0 {
		r.checkedOut = slices.Delete(r.checkedOut, i, i+1)
		out = Applied
	} else if slices.Contains(r.lost, c) {
		return AlreadyLost
	}
	r.lost = append(r.lost, c)
	return out
}

func (r *referenceCatalog) isAvailable(c *book.Copy) bool {
	return slices.Contains(r.available, c)
}

func (r *referenceCatalog) allCopies(t book.Title) []*book.Copy {
	return byID(filter(t, r.available, r.checkedOut))
}

func (r *referenceCatalog) availableCopies(t book.Title) []*book.Copy {
	return byID(filter(t, r.available))
}

func (r *referenceCatalog) activeTitles() []book.Title {
	var out []book.Title
	for _, t := range r.admitted {
		if len(r.allCopies(t)) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// find rebuilds keyword postings from the active copies on every call.
func (r *referenceCatalog) find(query string) []book.Title {
	postings := scanIndex{}
	for ord, t := range r.admitted {
		if len(r.allCopies(t)) == 0 {
			continue
		}
		for _, k := range index.Keywords(tokenizer.Default(), t) {
			postings[k] = append(postings[k], index.Posting{Ordinal: uint32(ord), Title: t})
		}
	}
	res, err := executor.New(postings, nil).Execute(context.Background(), parser.Parse(query), 0)
	if err != nil {
		panic(err)
	}
	return ranker.Titles(res.Results)
}

type scanIndex map[string]index.PostingList

func (s scanIndex) Postings(keyword string) index.PostingList { return s[keyword] }

func filter(t book.Title, sets ...[]*book.Copy) []*book.Copy {
	out := []*book.Copy{}
	for _, set := range sets {
		for _, c := range set {
			if c.Title().Equal(t) {
				out = append(out, c)
			}
		}
	}
	return out
}

func byID(cs []*book.Copy) []*book.Copy {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID().String() < cs[j].ID().String() })
	return cs
}
