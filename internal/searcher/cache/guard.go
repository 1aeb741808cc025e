package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/resilience"
)

// guarded stops calling a failing Redis for a while so searches fall back
// to the index without waiting on connection timeouts.
type guarded struct {
	backend Backend
	breaker *resilience.CircuitBreaker
}

// Guard wraps backend in a circuit breaker. Cache misses do not count as
// failures.
func Guard(backend Backend, cfg resilience.CircuitBreakerConfig) Backend {
	cfg.IsFailure = func(err error) bool { return !pkgredis.IsNilError(err) }
	return &guarded{
		backend: backend,
		breaker: resilience.NewCircuitBreaker("redis-cache", cfg),
	}
}

func (g *guarded) GetJSON(ctx context.Context, key string, dst any) error {
	return g.breaker.Execute(func() error { return g.backend.GetJSON(ctx, key, dst) })
}

func (g *guarded) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	return g.breaker.Execute(func() error { return g.backend.SetJSON(ctx, key, v, ttl) })
}

// FlushByPattern bypasses the breaker: an operator-requested invalidation
// should report the real Redis error.
func (g *guarded) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.backend.FlushByPattern(ctx, pattern)
}
