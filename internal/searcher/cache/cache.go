package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/redis"
)

const keyPrefix = "search:"

// Backend is the subset of pkg/redis.Client the cache uses.
type Backend interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache memoises search results. Keys include the index generation, so
// a result computed before a Title entered or left the index is never served
// afterwards.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, limit int, generation uint64) (*executor.SearchResult, bool) {
	key := BuildKey(query, limit, generation)
	var result executor.SearchResult
	if err := c.backend.GetJSON(ctx, key, &result); err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHitsTotal.Inc()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, limit int, generation uint64, result *executor.SearchResult) {
	key := BuildKey(query, limit, generation)
	if err := c.backend.SetJSON(ctx, key, result, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs computeFn once per key
// across concurrent callers. hit reports whether the cache served it.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	generation uint64,
	computeFn func() (*executor.SearchResult, error),
) (result *executor.SearchResult, hit bool, err error) {
	if result, ok := c.Get(ctx, query, limit, generation); ok {
		return result, true, nil
	}
	key := BuildKey(query, limit, generation)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, generation, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMissesTotal.Inc()
}

// BuildKey hashes the normalised query with the limit and index generation.
func BuildKey(query string, limit int, generation uint64) string {
	raw := fmt.Sprintf("%s|limit=%d|gen=%d", normalizeQuery(query), limit, generation)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery lower-cases and collapses whitespace. Token order and quotes
// are kept: both change the result.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
