package index

import (
	"log/slog"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/tokenizer"
)

// InvertedIndex maps lower-cased keywords to the set of Titles currently
// active in the catalog. Posting sets are roaring bitmaps of title ordinals;
// an ordinal is assigned the first time a Title is added and never reused,
// so ordinals also record first-admission order.
//
// InvertedIndex is not safe for concurrent use. The catalog guards it with
// the same lock as its copy partitions.
type InvertedIndex struct {
	tokenizer  *tokenizer.Tokenizer
	postings   map[string]*roaring.Bitmap
	ordinals   map[string]uint32
	titles     []book.Title
	active     *roaring.Bitmap
	generation uint64
	logger     *slog.Logger
}

func New(tok *tokenizer.Tokenizer) *InvertedIndex {
	if tok == nil {
		tok = tokenizer.Default()
	}
	return &InvertedIndex{
		tokenizer: tok,
		postings:  make(map[string]*roaring.Bitmap),
		ordinals:  make(map[string]uint32),
		active:    roaring.New(),
		logger:    slog.Default().With("component", "inverted-index"),
	}
}

func (x *InvertedIndex) Tokenizer() *tokenizer.Tokenizer { return x.tokenizer }

// AddTitle inserts t into the posting set of every keyword of t. Adding a
// Title that is already indexed is a no-op.
func (x *InvertedIndex) AddTitle(t book.Title) {
	ord := x.ordinal(t)
	if x.active.Contains(ord) {
		x.logger.Debug("title already indexed", "title", t.String())
		return
	}
	keys := Keywords(x.tokenizer, t)
	for _, k := range keys {
		bm, ok := x.postings[k]
		if !ok {
			bm = roaring.New()
			x.postings[k] = bm
		}
		bm.Add(ord)
	}
	x.active.Add(ord)
	x.generation++
	x.logger.Debug("title indexed",
		"title", t.String(),
		"ordinal", ord,
		"keywords", len(keys),
	)
}

// RemoveTitle removes t from every keyword's posting set and drops keywords
// whose set becomes empty. Removing a Title that is not indexed is a no-op.
func (x *InvertedIndex) RemoveTitle(t book.Title) {
	ord, known := x.ordinals[t.Key()]
	if !known || !x.active.Contains(ord) {
		x.logger.Debug("title not indexed, nothing to remove", "title", t.String())
		return
	}
	keys := Keywords(x.tokenizer, t)
	for _, k := range keys {
		bm, ok := x.postings[k]
		if !ok {
			continue
		}
		bm.Remove(ord)
		if bm.IsEmpty() {
			delete(x.postings, k)
		}
	}
	x.active.Remove(ord)
	x.generation++
	x.logger.Debug("title unindexed",
		"title", t.String(),
		"ordinal", ord,
		"keywords", len(keys),
	)
}

// Contains reports whether keyword has a posting set.
func (x *InvertedIndex) Contains(keyword string) bool {
	_, ok := x.postings[keyword]
	return ok
}

// Postings returns the Titles indexed under keyword, ordered by ordinal, or
// nil when the keyword is absent.
func (x *InvertedIndex) Postings(keyword string) PostingList {
	bm, ok := x.postings[keyword]
	if !ok {
		return nil
	}
	return x.list(bm)
}

// IsIndexed reports whether t is currently in the index.
func (x *InvertedIndex) IsIndexed(t book.Title) bool {
	ord, ok := x.ordinals[t.Key()]
	return ok && x.active.Contains(ord)
}

// Titles returns every indexed Title in ordinal order.
func (x *InvertedIndex) Titles() []book.Title {
	out := make([]book.Title, 0, x.active.GetCardinality())
	it := x.active.Iterator()
	for it.HasNext() {
		out = append(out, x.titles[it.Next()])
	}
	return out
}

// Snapshot returns every keyword with its postings, sorted by keyword.
func (x *InvertedIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(x.postings))
	for term, bm := range x.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: x.list(bm),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// KeywordCount is the number of keywords with a non-empty posting set.
func (x *InvertedIndex) KeywordCount() int { return len(x.postings) }

// TitleCount is the number of Titles currently indexed.
func (x *InvertedIndex) TitleCount() int { return int(x.active.GetCardinality()) }

// Generation increases every time a Title enters or leaves the index.
func (x *InvertedIndex) Generation() uint64 { return x.generation }

func (x *InvertedIndex) ordinal(t book.Title) uint32 {
	key := t.Key()
	if ord, ok := x.ordinals[key]; ok {
		return ord
	}
	ord := uint32(len(x.titles))
	x.titles = append(x.titles, t)
	x.ordinals[key] = ord
	return ord
}

func (x *InvertedIndex) list(bm *roaring.Bitmap) PostingList {
	result := make(PostingList, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ord := it.Next()
		result = append(result, Posting{Ordinal: ord, Title: x.titles[ord]})
	}
	return result
}
