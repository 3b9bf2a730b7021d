// Package metrics exposes Prometheus instrumentation for the signal and
// reconciliation pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all FactorPort metrics on a private registry so tests can
// create isolated instances.
type Collector struct {
	registry *prometheus.Registry

	DatesProcessed    prometheus.Counter
	DegenerateDates   prometheus.Counter
	AssetsExcluded    *prometheus.CounterVec
	WeightFallbacks   *prometheus.CounterVec
	RebalanceDuration prometheus.Histogram

	TradesEmitted    prometheus.Counter
	TradesSuppressed prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	IORetries        *prometheus.CounterVec
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		DatesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "factorport_dates_processed_total",
			Help: "Total rebalance dates processed by the pipeline",
		}),
		DegenerateDates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "factorport_degenerate_dates_total",
			Help: "Dates skipped because the universe was smaller than the bucket count",
		}),
		AssetsExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factorport_assets_excluded_total",
			Help: "Per-date asset exclusions by reason",
		}, []string{"reason"}),
		WeightFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factorport_weight_fallbacks_total",
			Help: "Weighting method fallback transitions taken",
		}, []string{"from", "to"}),
		RebalanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "factorport_rebalance_duration_seconds",
			Help:    "Duration of one rebalance date's weight computation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		TradesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "factorport_trades_emitted_total",
			Help: "Trades emitted by the live reconciler",
		}),
		TradesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "factorport_trades_suppressed_total",
			Help: "Trades suppressed by the deadband",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "factorport_weight_cache_hits_total",
			Help: "Weight cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "factorport_weight_cache_misses_total",
			Help: "Weight cache misses",
		}),
		IORetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factorport_io_retries_total",
			Help: "External I/O retry attempts by operation",
		}, []string{"operation"}),
	}

	registry.MustRegister(
		c.DatesProcessed, c.DegenerateDates, c.AssetsExcluded, c.WeightFallbacks,
		c.RebalanceDuration, c.TradesEmitted, c.TradesSuppressed,
		c.CacheHits, c.CacheMisses, c.IORetries,
	)
	return c
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
