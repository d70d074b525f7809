// Package metrics provides the Prometheus collectors for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PriceFetchesTotal counts price fetch attempts per provider.
	PriceFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cheapcharge_price_fetches_total",
		Help: "Total number of price fetch attempts",
	}, []string{"provider"})

	// PriceFetchErrors counts failed price fetches per provider.
	PriceFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cheapcharge_price_fetch_errors_total",
		Help: "Total number of failed price fetches",
	}, []string{"provider"})

	// PriceFallbacksTotal counts cycles served by the fallback provider.
	PriceFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cheapcharge_price_fallbacks_total",
		Help: "Total number of cycles that fell back to the secondary price provider",
	})

	// CacheBlocksNew counts price blocks added to the cache.
	CacheBlocksNew = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cheapcharge_cache_blocks_new_total",
		Help: "Total number of new price blocks merged into the cache",
	})

	// CacheBlocksPriceChanged counts merged blocks whose price changed.
	CacheBlocksPriceChanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cheapcharge_cache_blocks_price_changed_total",
		Help: "Total number of merged price blocks with a changed price",
	})

	// CacheSize tracks the number of blocks held in the price cache.
	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cheapcharge_cache_blocks",
		Help: "Number of price blocks currently in the cache",
	})

	// DecisionsTotal counts decision verdicts.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cheapcharge_decisions_total",
		Help: "Total number of decision verdicts",
	}, []string{"verdict"})

	// CycleDuration tracks how long each periodic cycle takes.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cheapcharge_cycle_duration_seconds",
		Help:    "Duration of one periodic cycle in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"cycle"})
)
