package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/redis"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (m *memBackend) GetJSON(_ context.Context, key string, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	data, ok := m.data[key]
	if !ok {
		return pkgredis.Nil
	}
	return json.Unmarshal(data, dst)
}

func (m *memBackend) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func newCache(b Backend) *QueryCache {
	return New(b, time.Minute, metrics.New(prometheus.NewRegistry()))
}

func result(q string) *executor.SearchResult {
	return &executor.SearchResult{Query: q, Results: []ranker.ScoredTitle{}, TermStats: map[string]int{}}
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, BuildKey("Harry  Potter", 10, 1), BuildKey("harry potter", 10, 1))
	assert.NotEqual(t, BuildKey("harry potter", 10, 1), BuildKey("potter harry", 10, 1))
	assert.NotEqual(t, BuildKey(`"harry potter"`, 10, 1), BuildKey("harry potter", 10, 1))
	assert.NotEqual(t, BuildKey("x", 10, 1), BuildKey("x", 20, 1))
	assert.NotEqual(t, BuildKey("x", 10, 1), BuildKey("x", 10, 2))
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	c := newCache(newMemBackend())
	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		return result("q"), nil
	}

	got, hit, err := c.GetOrCompute(ctx, "q", 10, 1, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "q", got.Query)

	_, hit, err = c.GetOrCompute(ctx, "q", 10, 1, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), calls.Load())

	_, hit, err = c.GetOrCompute(ctx, "q", 10, 2, compute)
	require.NoError(t, err)
	assert.False(t, hit, "a new generation misses")
	assert.Equal(t, int32(2), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestGetOrComputeError(t *testing.T) {
	c := newCache(newMemBackend())
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "q", 1, 1, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), "q", 1, 1)
	assert.False(t, ok, "errors are not cached")
}

func TestBackendFailureIsAMiss(t *testing.T) {
	b := newMemBackend()
	b.fail = errors.New("connection refused")
	c := newCache(b)
	_, ok := c.Get(context.Background(), "q", 1, 1)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	c := newCache(b)
	c.Set(ctx, "a", 1, 1, result("a"))
	c.Set(ctx, "b", 1, 1, result("b"))
	b.data["other:key"] = []byte("{}")

	require.NoError(t, c.Invalidate(ctx))
	_, ok := c.Get(ctx, "a", 1, 1)
	assert.False(t, ok)
	assert.Contains(t, b.data, "other:key")
}
