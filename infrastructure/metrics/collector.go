// Package metrics exposes cache, store and sync-pool counters to Prometheus.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "azguard"

type Collector struct {
	registry *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheEntries   *prometheus.GaugeVec
	cacheBytes     *prometheus.GaugeVec
	remoteOps      *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	syncJobs       *prometheus.CounterVec
	syncInline     *prometheus.CounterVec
	invalidations  *prometheus.CounterVec
}

// NewCollector builds a collector on its own registry, with Go runtime and
// process metrics included.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "lookups_total",
			Help: "Cache lookups by collection and result.",
		}, []string{"collection", "result"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Records removed from the cache by collection and reason.",
		}, []string{"collection", "reason"}),
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "entries",
			Help: "Records currently cached.",
		}, []string{"collection"}),
		cacheBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "bytes",
			Help: "Encoded size of the cached records.",
		}, []string{"collection"}),
		remoteOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "operations_total",
			Help: "Remote store operations by collection, operation and status.",
		}, []string{"collection", "operation", "status"}),
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "operation_duration_seconds",
			Help:    "Remote store latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"collection", "operation"}),
		syncJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "jobs_total",
			Help: "Background cache mutations by operation and status.",
		}, []string{"operation", "status"}),
		syncInline: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "inline_total",
			Help: "Cache mutations applied inline because the pool refused them.",
		}, []string{"collection"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "remote_invalidations_total",
			Help: "Invalidations received from other processes.",
		}, []string{"collection"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.cacheLookups, c.cacheEvictions, c.cacheEntries, c.cacheBytes,
		c.remoteOps, c.remoteDuration, c.syncJobs, c.syncInline, c.invalidations,
	)
	return c
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *Collector) CacheLookup(collection string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(collection, result).Inc()
}

func (c *Collector) CacheEviction(collection, reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.cacheEvictions.WithLabelValues(collection, reason).Add(float64(n))
}

func (c *Collector) CacheSize(collection string, entries int, bytes int64) {
	if c == nil {
		return
	}
	c.cacheEntries.WithLabelValues(collection).Set(float64(entries))
	c.cacheBytes.WithLabelValues(collection).Set(float64(bytes))
}

// RemoteOp records one remote call; pass the time it started.
func (c *Collector) RemoteOp(collection, op string, start time.Time, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.remoteOps.WithLabelValues(collection, op, status).Inc()
	c.remoteDuration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
}

func (c *Collector) SyncJob(op string, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.syncJobs.WithLabelValues(op, status).Inc()
}

func (c *Collector) SyncInline(collection string) {
	if c == nil {
		return
	}
	c.syncInline.WithLabelValues(collection).Inc()
}

func (c *Collector) RemoteInvalidation(collection string) {
	if c == nil {
		return
	}
	c.invalidations.WithLabelValues(collection).Inc()
}
