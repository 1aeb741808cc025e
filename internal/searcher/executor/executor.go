package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/ranker"
)

const (
	// PhraseWeight is added to every Title under a quoted phrase found as a
	// whole keyword.
	PhraseWeight = 10
	// WordWeight is added per matching word.
	WordWeight = 1
)

// Index is the read-only view the executor needs. Postings must return the
// Titles under keyword ordered by ordinal, or nil.
type Index interface {
	Postings(keyword string) index.PostingList
}

type SearchResult struct {
	Query     string               `json:"query"`
	TotalHits int                  `json:"total_hits"`
	Results   []ranker.ScoredTitle `json:"results"`
	TermStats map[string]int       `json:"term_stats"`
}

type Executor struct {
	index     Index
	tokenizer *tokenizer.Tokenizer
	logger    *slog.Logger
}

func New(idx Index, tok *tokenizer.Tokenizer) *Executor {
	if tok == nil {
		tok = tokenizer.Default()
	}
	return &Executor{
		index:     idx,
		tokenizer: tok,
		logger:    slog.Default().With("component", "query-executor"),
	}
}

// Execute drains plan's tokens through a work queue. A token that is a stop
// word is dropped. A token found as a keyword adds its weight to every Title
// in the posting set. A phrase not found as a whole keyword contributes
// nothing itself; its non-stop words are queued as plain words instead.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if plan.Empty() {
		return &SearchResult{
			Query:     plan.RawQuery,
			Results:   []ranker.ScoredTitle{},
			TermStats: map[string]int{},
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("executing query %q: %w", plan.RawQuery, err)
	}

	queue := make([]parser.Token, len(plan.Tokens))
	copy(queue, plan.Tokens)

	weights := make(map[uint32]*ranker.Candidate)
	order := make([]uint32, 0)
	termStats := make(map[string]int)

	for len(queue) > 0 {
		tok := queue[0]
		queue = queue[1:]

		key := strings.ToLower(tok.Text)
		if e.tokenizer.IsStopWord(key) {
			continue
		}
		postings := e.index.Postings(key)
		if postings == nil {
			if tok.Phrase {
				for _, w := range e.tokenizer.Terms(key) {
					queue = append(queue, parser.Token{Text: w})
				}
			}
			continue
		}

		inc := WordWeight
		if tok.Phrase {
			inc = PhraseWeight
		}
		termStats[key] += len(postings)
		for _, p := range postings {
			c, ok := weights[p.Ordinal]
			if !ok {
				c = &ranker.Candidate{Ordinal: p.Ordinal, Title: p.Title}
				weights[p.Ordinal] = c
				order = append(order, p.Ordinal)
			}
			c.Weight += inc
		}
	}

	cands := make([]ranker.Candidate, 0, len(order))
	for _, ord := range order {
		cands = append(cands, *weights[ord])
	}
	ranked := ranker.Rank(cands, limit)
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"tokens", len(plan.Tokens),
		"candidates", len(cands),
		"results", len(ranked),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: len(cands),
		Results:   ranked,
		TermStats: termStats,
	}, nil
}
