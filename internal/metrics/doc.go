/*
Package metrics exports tiercache statistics to Prometheus.

# Overview

	┌─────────────┐   scrape    ┌──────────────┐
	│  Collector  │ ◄────────── │  Prometheus  │
	└──────┬──────┘             └──────────────┘
	       │ SnapshotFunc (read-only)
	┌──────▼──────┐
	│  Registry   │  named caches
	└─────────────┘

The Collector is itself a prometheus.Collector. Tier occupancy and lifetime
counters are read from the snapshot function on every scrape, so nothing has
to be pushed for them. Cache-aside outcomes and fetch latency are pushed
through a per-cache CacheRecorder:

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "tiercache",
	}, mon.Snapshot)
	if err != nil {
		return err
	}

	user, err := cacheutil.CacheAside(ctx, users, key, load, ttl,
		cacheutil.WithRecorder(collector.Recorder("user-data")))

The Collector also implements types.Sink; the monitor's Emit only stamps the
last snapshot time.

# Prometheus Metrics

Gauges:
  - tiercache_tier_entries{cache,tier}
  - tiercache_tier_capacity{cache,tier}
  - tiercache_tier_avg_hits{cache,tier}
  - tiercache_estimated_memory_bytes{cache}
  - tiercache_last_snapshot_timestamp_seconds

Counters:
  - tiercache_hits_total{cache}
  - tiercache_misses_total{cache}
  - tiercache_evictions_total{cache}
  - tiercache_promotions_total{cache}
  - tiercache_demotions_total{cache}
  - tiercache_expirations_total{cache}
  - tiercache_cache_aside_total{cache,outcome}

Histograms:
  - tiercache_fetch_duration_seconds{cache}

# HTTP

Handler returns a promhttp handler for the collector's private registry; the
API server mounts it at /metrics.
*/
package metrics
