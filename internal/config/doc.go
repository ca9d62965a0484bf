/*
Package config provides configuration management for tiercache with file and environment sources.

# Configuration Architecture

Sources are applied in order, later sources overriding earlier ones:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│           (TIERCACHE_*)                     │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	│        (NewDefault)                         │
	└─────────────────────────────────────────────┘

A caches list in the file replaces the default list entirely.

# Usage Examples

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("/etc/tiercache/config.yaml"); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

Configuration file format:

	global:
	  log_level: INFO
	  log_format: text
	  http_address: "localhost:8080"

	caches:
	  - name: api-response
	    max_hot_size: 1000
	    max_warm_size: 5000
	    default_ttl: 5m
	    promotion_threshold: 3
	    cleanup_interval: 60s

	monitor:
	  interval: 5m
	  retry:
	    max_attempts: 3
	    initial_delay: 500ms
	  log:
	    enabled: true
	  prometheus:
	    enabled: true
	    namespace: tiercache
	  redis:
	    enabled: false
	    address: "localhost:6379"
	    key_prefix: "tiercache:stats"
	    ttl: 1h
	  s3:
	    enabled: false
	    bucket: ""
	    prefix: "tiercache/stats"
	    region: us-east-1

	warmup:
	  - cache: static-content
	    key: "config:site"
	    value: '{"theme":"dark"}'
	    ttl: 1h

Environment variable mapping:

	TIERCACHE_LOG_LEVEL="DEBUG"
	TIERCACHE_LOG_FORMAT="json"
	TIERCACHE_HTTP_ADDRESS=":9090"
	TIERCACHE_MONITOR_INTERVAL="30s"
	TIERCACHE_REDIS_ADDRESS="redis:6379"   # also enables the Redis sink
	TIERCACHE_S3_BUCKET="ops-stats"        # also enables the S3 sink

# Validation

Validate returns a CONFIG_VALIDATION error from pkg/errors for the first problem found:
unknown log level or format, missing or duplicate cache names, cache sizing rejected by
cache.Config.Validate, a non-positive monitor interval, an enabled sink missing its
address or bucket, and warmup entries that target unknown caches or carry invalid JSON.
*/
package config
