// Package catalog is the in-memory library catalog: copies split across the
// available, checked-out and lost partitions, per-Title copy counts, and a
// keyword index that holds exactly the Titles with at least one active copy.
// All three are updated together under one lock.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/tracing"
)

// Catalog is safe for concurrent use. Mutations take the write lock; reads
// and searches share the read lock and always see store and index in step.
type Catalog struct {
	mu      sync.RWMutex
	store   *Store
	index   *index.InvertedIndex
	exec    *executor.Executor
	copies  map[uuid.UUID]*book.Copy
	tok     *tokenizer.Tokenizer
	sink    EventSink
	metrics *metrics.Metrics
	verify  bool
}

type Option func(*Catalog)

// WithTokenizer sets the stop words used for indexing and queries.
func WithTokenizer(tok *tokenizer.Tokenizer) Option {
	return func(c *Catalog) { c.tok = tok }
}

func WithEventSink(sink EventSink) Option {
	return func(c *Catalog) { c.sink = sink }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithVerify re-checks every invariant after each mutation. The check is
// linear in catalog size.
func WithVerify(on bool) Option {
	return func(c *Catalog) { c.verify = on }
}

func New(opts ...Option) *Catalog {
	c := &Catalog{
		store:  NewStore(),
		copies: make(map[uuid.UUID]*book.Copy),
		tok:    tokenizer.Default(),
		sink:   discardSink{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.index = index.New(c.tok)
	c.exec = executor.New(c.index, c.tok)
	return c
}

// Purchase creates a copy of t in Good condition and places it in the
// available partition. The first active copy of t adds t to the index.
func (c *Catalog) Purchase(ctx context.Context, t book.Title) (_ *book.Copy, err error) {
	ctx, span := tracing.Start(ctx, "catalog.purchase", attribute.String("title", t.String()))
	defer func() { tracing.End(span, err) }()

	if t.IsZero() {
		return nil, apperrors.Invalid("purchase: title is required")
	}
	cp, err := book.NewCopy(t)
	if err != nil {
		return nil, apperrors.Invalid("purchase: %v", err)
	}

	c.mu.Lock()
	admitted := c.store.Add(cp)
	if admitted {
		c.index.AddTitle(t)
	}
	c.copies[cp.ID()] = cp
	err = c.afterWrite()
	stats := c.statsLocked()
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("copy_id", cp.ID().String()), attribute.Bool("admitted", admitted))
	logger.FromContext(ctx).Debug("copy purchased",
		"copy_id", cp.ID(),
		"title", t.String(),
		"admitted", admitted,
	)
	c.record(OpPurchase, Applied, cp, admitted, false, stats)
	return cp, nil
}

// Checkout moves c from available to checked out. A copy that is not
// available is left alone and NotAvailable is returned.
func (c *Catalog) Checkout(ctx context.Context, cp *book.Copy) (Outcome, error) {
	return c.circulate(ctx, OpCheckout, cp, c.store.Checkout)
}

// Checkin moves c from checked out back to available. A copy that is not
// checked out is left alone and NotCheckedOut is returned.
func (c *Catalog) Checkin(ctx context.Context, cp *book.Copy) (Outcome, error) {
	return c.circulate(ctx, OpCheckin, cp, c.store.Checkin)
}

func (c *Catalog) circulate(ctx context.Context, op Op, cp *book.Copy, move func(*book.Copy) Outcome) (out Outcome, err error) {
	ctx, span := tracing.Start(ctx, "catalog."+string(op))
	defer func() { tracing.End(span, err) }()

	if cp == nil {
		return 0, apperrors.Invalid("%s: copy is required", op)
	}
	span.SetAttributes(attribute.String("copy_id", cp.ID().String()))

	c.mu.Lock()
	out = move(cp)
	if out.OK() {
		err = c.afterWrite()
	}
	stats := c.statsLocked()
	c.mu.Unlock()

	if err != nil {
		return out, err
	}
	span.SetAttributes(attribute.String("outcome", out.String()))
	if !out.OK() {
		logger.FromContext(ctx).Warn(string(op)+" not applied",
			"copy_id", cp.ID(),
			"title", cp.Title().String(),
			"outcome", out.String(),
		)
	}
	c.record(op, out, cp, false, false, stats)
	return out, nil
}

// Lose records c as lost and removes it from whichever active partition
// holds it. Losing the last active copy of a Title drops the Title from the
// index. A copy held by neither partition is still recorded, with outcome
// NotTracked or AlreadyLost, and no count changes.
func (c *Catalog) Lose(ctx context.Context, cp *book.Copy) (out Outcome, err error) {
	ctx, span := tracing.Start(ctx, "catalog.lose")
	defer func() { tracing.End(span, err) }()

	if cp == nil {
		return 0, apperrors.Invalid("lose: copy is required")
	}
	span.SetAttributes(attribute.String("copy_id", cp.ID().String()))

	c.mu.Lock()
	out, evicted := c.store.Lose(cp)
	if evicted {
		c.index.RemoveTitle(cp.Title())
	}
	c.copies[cp.ID()] = cp
	err = c.afterWrite()
	stats := c.statsLocked()
	c.mu.Unlock()

	if err != nil {
		return out, err
	}
	span.SetAttributes(attribute.String("outcome", out.String()), attribute.Bool("evicted", evicted))
	log := logger.FromContext(ctx)
	if out.OK() {
		log.Debug("copy lost", "copy_id", cp.ID(), "title", cp.Title().String(), "evicted", evicted)
	} else {
		log.Warn("lose of untracked copy", "copy_id", cp.ID(), "outcome", out.String())
	}
	c.record(OpLose, out, cp, false, evicted, stats)
	return out, nil
}

// SetCondition updates a copy's condition. Condition never moves a copy
// between partitions.
func (c *Catalog) SetCondition(ctx context.Context, cp *book.Copy, cond book.Condition) (err error) {
	_, span := tracing.Start(ctx, "catalog.set_condition", attribute.String("condition", cond.String()))
	defer func() { tracing.End(span, err) }()

	if cp == nil {
		return apperrors.Invalid("set condition: copy is required")
	}
	if err := cp.SetCondition(cond); err != nil {
		return apperrors.Invalid("set condition: %v", err)
	}
	c.mu.RLock()
	stats := c.statsLocked()
	c.mu.RUnlock()
	c.record(OpSetCondition, Applied, cp, false, false, stats)
	return nil
}

// AllCopies returns the available and checked-out copies of t, ordered by ID.
func (c *Catalog) AllCopies(t book.Title) []*book.Copy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.AllCopies(t)
}

// AvailableCopies returns the available copies of t, ordered by ID.
func (c *Catalog) AvailableCopies(t book.Title) []*book.Copy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.AvailableCopies(t)
}

// LostCopies returns the copies of t recorded as lost, ordered by ID.
func (c *Catalog) LostCopies(t book.Title) []*book.Copy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.LostCopies(t)
}

func (c *Catalog) IsAvailable(cp *book.Copy) bool {
	if cp == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.IsAvailable(cp)
}

// CopyStatus reports which partition holds cp.
func (c *Catalog) CopyStatus(cp *book.Copy) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.store.IsAvailable(cp):
		return "available"
	case c.store.IsCheckedOut(cp):
		return "checked_out"
	case c.store.IsLost(cp):
		return "lost"
	}
	return "unknown"
}

// Copy looks up any copy this catalog has issued or recorded, lost ones
// included.
func (c *Catalog) Copy(id uuid.UUID) (*book.Copy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, ok := c.copies[id]
	return cp, ok
}

// Find returns every Title matching query, best first, each at most once.
func (c *Catalog) Find(ctx context.Context, query string) []book.Title {
	return c.FindLimit(ctx, query, 0)
}

// FindLimit is Find truncated to limit results when limit is positive.
func (c *Catalog) FindLimit(ctx context.Context, query string, limit int) []book.Title {
	res, err := c.Search(ctx, query, limit)
	if err != nil {
		logger.FromContext(ctx).Warn("search aborted", "query", query, "error", err)
		return []book.Title{}
	}
	return ranker.Titles(res.Results)
}

// Search runs query against the index and returns scored results.
func (c *Catalog) Search(ctx context.Context, query string, limit int) (res *executor.SearchResult, err error) {
	ctx, span := tracing.Start(ctx, "catalog.search", attribute.String("query", query), attribute.Int("limit", limit))
	defer func() { tracing.End(span, err) }()

	plan := parser.Parse(query)
	c.mu.RLock()
	res, err = c.exec.Execute(ctx, plan, limit)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("hits", res.TotalHits))
	return res, nil
}

// Stats is a point-in-time summary of the catalog.
type Stats struct {
	Titles        int    `json:"titles"`
	Available     int    `json:"available"`
	CheckedOut    int    `json:"checked_out"`
	Lost          int    `json:"lost"`
	IndexedTitles int    `json:"indexed_titles"`
	Keywords      int    `json:"keywords"`
	Generation    uint64 `json:"generation"`
}

func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statsLocked()
}

// Generation changes whenever a Title enters or leaves the index, and so
// whenever a search result may change.
func (c *Catalog) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Generation()
}

// Verify checks every catalog invariant against the current state.
func (c *Catalog) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Verify(c.store, c.index)
}

func (c *Catalog) statsLocked() Stats {
	available, checkedOut, lost, titles := c.store.Sizes()
	return Stats{
		Titles:        titles,
		Available:     available,
		CheckedOut:    checkedOut,
		Lost:          lost,
		IndexedTitles: c.index.TitleCount(),
		Keywords:      c.index.KeywordCount(),
		Generation:    c.index.Generation(),
	}
}

// afterWrite runs with the write lock held.
func (c *Catalog) afterWrite() error {
	if !c.verify {
		return nil
	}
	if err := Verify(c.store, c.index); err != nil {
		slog.Error("catalog invariant violated", "error", err)
		return fmt.Errorf("after write: %w", err)
	}
	return nil
}

// record publishes metrics and the mutation event. It runs after the lock
// is released.
func (c *Catalog) record(op Op, out Outcome, cp *book.Copy, admitted, evicted bool, stats Stats) {
	if c.metrics != nil {
		c.metrics.MutationsTotal.WithLabelValues(string(op), out.String()).Inc()
		c.metrics.ActiveTitles.Set(float64(stats.Titles))
		c.metrics.ActiveCopies.WithLabelValues("available").Set(float64(stats.Available))
		c.metrics.ActiveCopies.WithLabelValues("checked_out").Set(float64(stats.CheckedOut))
		c.metrics.LostCopies.Set(float64(stats.Lost))
		c.metrics.IndexKeywords.Set(float64(stats.Keywords))
	}
	c.sink.Track(Event{
		Type:      EventType,
		Op:        op,
		Outcome:   out,
		CopyID:    cp.ID(),
		Title:     cp.Title(),
		Condition: cp.Condition(),
		Admitted:  admitted,
		Evicted:   evicted,
		Timestamp: time.Now().UTC(),
	})
}
