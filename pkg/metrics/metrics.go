// Package metrics defines the Prometheus collectors of the catalog service
// and serves them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the service records into.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     prometheus.Counter
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	MutationsTotal       *prometheus.CounterVec
	ActiveTitles         prometheus.Gauge
	ActiveCopies         *prometheus.GaugeVec
	LostCopies           prometheus.Gauge
	IndexKeywords        prometheus.Gauge
	CommandsConsumed     *prometheus.CounterVec
}

// New creates every collector registered with reg. A nil reg means the
// Prometheus default registerer. Registering twice with one reg panics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RateLimitedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter.",
			},
		),
		SearchQueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hits, zero, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		MutationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_mutations_total",
				Help: "Catalog mutations by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		ActiveTitles: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_active_titles",
				Help: "Titles with at least one available or checked-out copy.",
			},
		),
		ActiveCopies: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_active_copies",
				Help: "Copies per active partition.",
			},
			[]string{"partition"},
		),
		LostCopies: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_lost_copies",
				Help: "Copies recorded as lost.",
			},
		),
		IndexKeywords: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_keywords",
				Help: "Keywords with a non-empty posting set.",
			},
		),
		CommandsConsumed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_commands_consumed_total",
				Help: "Catalog commands read from Kafka by operation and status.",
			},
			[]string{"op", "status"},
		),
	}
}
