// Package handler serves ranked catalog search over HTTP, fronted by the
// Redis query cache and feeding search analytics.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/tracing"
)

// Searcher is implemented by *catalog.Catalog.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
	Generation() uint64
}

// Tracker receives one SearchEvent per served query.
type Tracker interface {
	Track(event any)
}

type Handler struct {
	searcher     Searcher
	cache        *cache.QueryCache
	tracker      Tracker
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds a search handler. queryCache, tracker and m may be nil.
func New(s Searcher, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		searcher:     s,
		cache:        queryCache,
		tracker:      tracker,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	var result *executor.SearchResult
	var err error
	cacheHit := false

	if h.cache != nil {
		generation := h.searcher.Generation()
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, limit, generation, func() (*executor.SearchResult, error) {
			return h.searcher.Search(ctx, query, limit)
		})
	} else {
		result, err = h.searcher.Search(ctx, query, limit)
	}

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		if ctx.Err() != nil {
			h.writeError(w, http.StatusServiceUnavailable, "search cancelled")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	elapsed := time.Since(start)
	h.observe(result, cacheHit, elapsed)

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_us", elapsed.Microseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Query:     query,
			Tokens:    len(parser.Parse(query).Tokens),
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyUs: elapsed.Microseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
			TraceID:   tracing.TraceID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) observe(result *executor.SearchResult, cacheHit bool, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hits"
	if result.TotalHits == 0 {
		resultType = "zero"
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	} else if h.cache == nil {
		cacheStatus = "disabled"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":       hits,
		"misses":     misses,
		"total":      total,
		"hit_rate":   fmt.Sprintf("%.1f%%", hitRate),
		"generation": h.searcher.Generation(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
