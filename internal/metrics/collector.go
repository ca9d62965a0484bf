package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/tiercache/pkg/types"
)

// Tier label values
const (
	tierHot  = "hot"
	tierWarm = "warm"
)

// Collector exports cache statistics to Prometheus. Tier occupancy and
// lifetime counters are read from a SnapshotFunc at scrape time; cache-aside
// outcomes and fetch latency are pushed through Recorder.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	snapshot types.SnapshotFunc

	// Scrape-time descriptors
	tierEntries  *prometheus.Desc
	tierCapacity *prometheus.Desc
	tierAvgHits  *prometheus.Desc
	memory       *prometheus.Desc
	hits         *prometheus.Desc
	misses       *prometheus.Desc
	evictions    *prometheus.Desc
	promotions   *prometheus.Desc
	demotions    *prometheus.Desc
	expirations  *prometheus.Desc

	// Pushed metrics
	asideCounter  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	lastSnapshot  prometheus.Gauge

	// Internal tracking
	aside     map[string]*AsideMetrics
	lastReset time.Time
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// AsideMetrics tracks cache-aside activity for one cache
type AsideMetrics struct {
	Outcomes      map[string]int64 `json:"outcomes"`
	Fetches       int64            `json:"fetches"`
	TotalFetch    time.Duration    `json:"total_fetch"`
	AvgFetch      time.Duration    `json:"avg_fetch"`
	LastOperation time.Time        `json:"last_operation"`
}

// NewCollector creates a new metrics collector reading stats from snapshot
func NewCollector(config *Config, snapshot types.SnapshotFunc) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "tiercache",
			Labels:    make(map[string]string),
		}
	}

	collector := &Collector{
		config:    config,
		snapshot:  snapshot,
		aside:     make(map[string]*AsideMetrics),
		lastReset: time.Now(),
	}

	if !config.Enabled {
		return collector, nil
	}

	collector.registry = prometheus.NewRegistry()
	collector.initMetrics()

	// Register metrics with registry
	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Enabled reports whether metrics are exported
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Registry returns the Prometheus registry, nil when disabled
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.snapshot == nil {
		return
	}

	snap := c.snapshot()
	names := snap.Names()
	sort.Strings(names)

	for _, name := range names {
		s := snap.Caches[name]

		for _, t := range []struct {
			label string
			stats types.TierStats
		}{
			{tierHot, s.Hot},
			{tierWarm, s.Warm},
		} {
			ch <- prometheus.MustNewConstMetric(c.tierEntries, prometheus.GaugeValue, float64(t.stats.Size), name, t.label)
			ch <- prometheus.MustNewConstMetric(c.tierCapacity, prometheus.GaugeValue, float64(t.stats.MaxSize), name, t.label)
			ch <- prometheus.MustNewConstMetric(c.tierAvgHits, prometheus.GaugeValue, t.stats.AvgHits, name, t.label)
		}

		ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(s.Total.EstimatedMemory), name)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), name)
		ch <- prometheus.MustNewConstMetric(c.promotions, prometheus.CounterValue, float64(s.Promotions), name)
		ch <- prometheus.MustNewConstMetric(c.demotions, prometheus.CounterValue, float64(s.Demotions), name)
		ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(s.Expirations), name)
	}
}

// Name implements types.Sink
func (c *Collector) Name() string {
	return "prometheus"
}

// Emit implements types.Sink by recording when the last snapshot was taken.
// Cache stats themselves are read at scrape time.
func (c *Collector) Emit(_ context.Context, snapshot types.Snapshot) error {
	if !c.config.Enabled {
		return nil
	}
	c.lastSnapshot.Set(float64(snapshot.Taken.UnixNano()) / 1e9)
	return nil
}

// Recorder returns a cache-aside recorder bound to one cache name
func (c *Collector) Recorder(cache string) *CacheRecorder {
	return &CacheRecorder{collector: c, cache: cache}
}

// RecordAsideOutcome records one cache-aside outcome for cache
func (c *Collector) RecordAsideOutcome(cache, outcome string) {
	c.mu.Lock()
	m := c.asideMetricsLocked(cache)
	m.Outcomes[outcome]++
	m.LastOperation = time.Now()
	c.mu.Unlock()

	if !c.config.Enabled {
		return
	}
	c.asideCounter.With(prometheus.Labels{
		"cache":   cache,
		"outcome": outcome,
	}).Inc()
}

// RecordFetch records the latency of one backing fetch for cache
func (c *Collector) RecordFetch(cache string, d time.Duration) {
	c.mu.Lock()
	m := c.asideMetricsLocked(cache)
	m.Fetches++
	m.TotalFetch += d
	m.AvgFetch = time.Duration(int64(m.TotalFetch) / m.Fetches)
	m.LastOperation = time.Now()
	c.mu.Unlock()

	if !c.config.Enabled {
		return
	}
	c.fetchDuration.With(prometheus.Labels{
		"cache": cache,
	}).Observe(d.Seconds())
}

// GetAsideMetrics returns a copy of the per-cache cache-aside tracking
func (c *Collector) GetAsideMetrics() map[string]AsideMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]AsideMetrics, len(c.aside))
	for name, m := range c.aside {
		outcomes := make(map[string]int64, len(m.Outcomes))
		for k, v := range m.Outcomes {
			outcomes[k] = v
		}
		cp := *m
		cp.Outcomes = outcomes
		out[name] = cp
	}
	return out
}

// ResetMetrics clears the internal cache-aside tracking. Prometheus counters are untouched.
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.aside = make(map[string]*AsideMetrics)
	c.lastReset = time.Now()
}

// LastReset returns when internal tracking was last reset
func (c *Collector) LastReset() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReset
}

// CacheRecorder feeds cache-aside instrumentation for a single cache
type CacheRecorder struct {
	collector *Collector
	cache     string
}

// RecordOutcome records a cache-aside outcome
func (r *CacheRecorder) RecordOutcome(outcome string) {
	r.collector.RecordAsideOutcome(r.cache, outcome)
}

// RecordFetch records a fetch latency
func (r *CacheRecorder) RecordFetch(d time.Duration) {
	r.collector.RecordFetch(r.cache, d)
}

// Helper methods

func (c *Collector) asideMetricsLocked(cache string) *AsideMetrics {
	m, ok := c.aside[cache]
	if !ok {
		m = &AsideMetrics{Outcomes: make(map[string]int64)}
		c.aside[cache] = m
	}
	return m
}

func (c *Collector) descs() []*prometheus.Desc {
	return []*prometheus.Desc{
		c.tierEntries, c.tierCapacity, c.tierAvgHits, c.memory,
		c.hits, c.misses, c.evictions, c.promotions, c.demotions, c.expirations,
	}
}

func (c *Collector) initMetrics() {
	ns := c.config.Namespace
	constLabels := prometheus.Labels(c.config.Labels)
	tierLabels := []string{"cache", "tier"}
	cacheLabels := []string{"cache"}

	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(ns, "", name), help, labels, constLabels)
	}

	// Tier metrics
	c.tierEntries = desc("tier_entries", "Current number of entries in a cache tier", tierLabels)
	c.tierCapacity = desc("tier_capacity", "Maximum number of entries in a cache tier", tierLabels)
	c.tierAvgHits = desc("tier_avg_hits", "Average hit count of entries resident in a cache tier", tierLabels)
	c.memory = desc("estimated_memory_bytes", "Approximate memory held by a cache", cacheLabels)

	// Lifetime counters
	c.hits = desc("hits_total", "Total number of cache hits", cacheLabels)
	c.misses = desc("misses_total", "Total number of cache misses", cacheLabels)
	c.evictions = desc("evictions_total", "Total number of entries discarded from the warm tier", cacheLabels)
	c.promotions = desc("promotions_total", "Total number of warm to hot promotions", cacheLabels)
	c.demotions = desc("demotions_total", "Total number of hot to warm demotions", cacheLabels)
	c.expirations = desc("expirations_total", "Total number of expired entries removed", cacheLabels)

	// Cache-aside metrics
	c.asideCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_aside_total",
			Help:        "Total number of cache-aside calls by outcome",
			ConstLabels: constLabels,
		},
		[]string{"cache", "outcome"},
	)

	c.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "fetch_duration_seconds",
			Help:        "Duration of backing fetches on cache miss in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			ConstLabels: constLabels,
		},
		cacheLabels,
	)

	c.lastSnapshot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "last_snapshot_timestamp_seconds",
			Help:        "Unix time of the last stats snapshot emitted by the monitor",
			ConstLabels: constLabels,
		},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c,
		c.asideCounter,
		c.fetchDuration,
		c.lastSnapshot,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}
