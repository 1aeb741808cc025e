// Command catalog runs the library catalog service.
//
// It serves acquisition, circulation and ranked keyword search over HTTP,
// optionally applies commands from Kafka, caches search results in Redis,
// and aggregates search and circulation analytics with periodic PostgreSQL
// snapshots. Redis, Kafka and PostgreSQL are each optional; without Kafka
// the analytics pipeline runs in-process.
//
// Usage:
//
//	go run ./cmd/catalog [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog"
	cataloghandler "github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/handler"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/consumer"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/cache"
	searchhandler "github.com/Adithya-Monish-Kumar-K/library-catalog/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting catalog service",
		"port", cfg.Server.Port,
		"kafka", cfg.Kafka.Enabled,
		"redis", cfg.Redis.Enabled,
		"postgres", cfg.Postgres.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("catalog service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing := tracing.Setup(cfg.Tracing)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Port, prometheus.DefaultGatherer) })
	}
	checker := health.NewChecker(5 * time.Second)
	agg := analytics.NewAggregator(cfg.Analytics.TopN)

	// Without a broker the aggregator stands in for both producers.
	var (
		searchPublisher analytics.Publisher      = agg
		eventPublisher  collector.BatchPublisher = agg
	)
	if cfg.Kafka.Enabled {
		searchProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer searchProducer.Close()
		eventProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogEvents)
		defer eventProducer.Close()
		searchPublisher, eventPublisher = searchProducer, eventProducer

		for _, topic := range []string{cfg.Kafka.Topics.AnalyticsEvents, cfg.Kafka.Topics.CatalogEvents} {
			c := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(agg))
			g.Go(func() error { return c.Start(gctx) })
		}
		checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumers active"}
		})
	} else {
		checker.Register("kafka", health.Disabled)
	}

	events := collector.NewBatchCollector(eventPublisher, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	events.Start(gctx)
	defer events.Close()

	cat := catalog.New(
		catalog.WithTokenizer(tokenizer.New(cfg.Catalog.StopWords)),
		catalog.WithEventSink(events),
		catalog.WithMetrics(m),
		catalog.WithVerify(cfg.Catalog.VerifyOnWrite),
	)
	checker.Register("catalog", func(ctx context.Context) health.ComponentHealth {
		stats := cat.Stats()
		msg := fmt.Sprintf("%d titles, %d copies", stats.Titles, stats.Available+stats.CheckedOut)
		if cfg.Catalog.VerifyOnWrite {
			if err := cat.Verify(); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: msg}
	})

	if cfg.Kafka.Enabled {
		commands := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CatalogCommands, consumer.HandleMessage(cat, m)))
		g.Go(func() error { return commands.Start(gctx) })
	}

	searches := analytics.NewCollector(searchPublisher, 10000)
	searches.Start(gctx)

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		var rc *pkgredis.Client
		err := resilience.Retry(ctx, "redis connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			var err error
			rc, err = pkgredis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "unavailable at startup"}
			})
		} else {
			defer rc.Close()
			queryCache = cache.New(cache.Guard(rc, resilience.CircuitBreakerConfig{}), cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(rc, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	} else {
		checker.Register("redis", health.Disabled)
	}

	var history analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			var err error
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer db.Close()
			store := aggregator.NewStore(db, cfg.Analytics.SnapshotRetention)
			checker.Register("postgres", health.PingCheck(db, true))
			if err := resilience.WithTimeout(ctx, 10*time.Second, "ensure analytics schema", store.EnsureSchema); err != nil {
				slog.Warn("analytics schema unavailable, snapshots disabled", "error", err)
			} else {
				history = store
				g.Go(func() error { return store.Run(gctx, agg, cfg.Analytics.SnapshotInterval) })
			}
		}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Metrics(m))
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	}
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.NewLimiter(cfg.RateLimit), m))
	}

	search := searchhandler.New(cat, queryCache, searches, m, cfg.Catalog.DefaultLimit, cfg.Catalog.MaxResults)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
		cataloghandler.New(cat).Routes(r)
		r.Get("/search", search.Search)
		r.Get("/cache/stats", search.CacheStats)
		r.Post("/cache/invalidate", search.CacheInvalidate)
		r.Route("/analytics", analytics.NewHandler(agg, history).Routes)
	})
	router.Get("/health/live", checker.LiveHandler())
	router.Get("/health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("catalog service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		searches.Close()
		return err
	})

	return g.Wait()
}
