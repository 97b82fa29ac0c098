package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry *prometheus.Registry

	// Lookups by how they were answered (cache, upstream) and outcome (success, error).
	LookupsTotal *prometheus.CounterVec

	// Failed lookups by error category (see client.CategorizeError).
	LookupErrorsTotal *prometheus.CounterVec

	// Upstream calls per endpoint (geocode, reverse_geocode, forecast) and status label.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency. Watch for: p95 approaching upstream.timeout.
	UpstreamDuration *prometheus.HistogramVec

	// Cache hits per backend (file, memcached).
	CacheHitsTotal *prometheus.CounterVec

	// Cache misses per backend and reason (absent, missing_key, expired, corrupt, error).
	CacheMissesTotal *prometheus.CounterVec

	// Cache write failures per backend.
	CacheWriteErrorsTotal *prometheus.CounterVec

	// History saves by status (success, error, skipped).
	HistoryWritesTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherLookupsTotal",
			Help: "Total number of weather lookups by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	LookupErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherLookupErrorsTotal",
			Help: "Failed weather lookups by error category",
		},
		[]string{"category"},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls",
		},
		[]string{"endpoint", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits",
		},
		[]string{"backend"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses by reason",
		},
		[]string{"backend", "reason"},
	)
	CacheWriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheWriteErrorsTotal",
			Help: "Total number of failed cache writes",
		},
		[]string{"backend"},
	)
	HistoryWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "historyWritesTotal",
			Help: "History database saves by status",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		LookupsTotal, LookupErrorsTotal,
		UpstreamCallsTotal, UpstreamDuration,
		CacheHitsTotal, CacheMissesTotal, CacheWriteErrorsTotal,
		HistoryWritesTotal,
	)
}

