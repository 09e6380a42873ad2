// Package observability holds the Prometheus collectors shared by the reader components.
package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of admin HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"upstream", "outcome"},
	)

	sampleCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sample_cache_results_total",
			Help: "Sample item lookups by outcome (hit, remote_hit, miss, error).",
		},
		[]string{"outcome"},
	)

	sampleCacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sample_cache_invalidations_total",
			Help: "Sample cache invalidations by source.",
		},
		[]string{"source"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	rasterOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raster_open_total",
			Help: "Single-image raster reader opens by codec and outcome.",
		},
		[]string{"codec", "outcome"},
	)

	mosaicReads = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mosaic_read_duration_seconds",
			Help:    "Duration of mosaic reads including configuration build.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"outcome"},
	)

	invalidationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Catalog change events by op and result.",
		},
		[]string{"op", "result"},
	)

	collectors = []prometheus.Collector{
		httpRequestsTotal, upstreamLatencySeconds, sampleCacheResults, sampleCacheInvalidations,
		cacheOpTotal, redisOpDuration, rasterOpens, mosaicReads, invalidationEvents,
	}
)

// Init registers the collectors with reg. Collectors keep counting when disabled,
// they are just not exported.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if !on || reg == nil {
		return
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func Enabled() bool { return enabled.Load() }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, status int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func ObserveUpstreamLatency(upstream string, err error, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, outcome(err)).Observe(durationSeconds)
}

func IncSampleCache(result string) {
	sampleCacheResults.WithLabelValues(result).Inc()
}

func IncSampleInvalidation(source string) {
	sampleCacheInvalidations.WithLabelValues(source).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpTotal.WithLabelValues(op, outcome(err)).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncRasterOpen(codec string, err error) {
	rasterOpens.WithLabelValues(codec, outcome(err)).Inc()
}

func ObserveMosaicRead(err error, durationSeconds float64) {
	mosaicReads.WithLabelValues(outcome(err)).Observe(durationSeconds)
}

func IncInvalidationEvent(op string, err error) {
	invalidationEvents.WithLabelValues(op, outcome(err)).Inc()
}
