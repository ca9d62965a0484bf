/*
Package cache provides a two-tier, size- and TTL-bounded in-process cache.

# Tiers

	┌──────────────────────────────┐
	│          Hot tier            │  ← every Set lands here
	│   bounded by MaxHotSize      │
	└──────────────────────────────┘
	      │ demote (LRU)   ▲ promote (hits > threshold)
	      ▼                │
	┌──────────────────────────────┐
	│          Warm tier           │  ← second chance store
	│   bounded by MaxWarmSize     │
	└──────────────────────────────┘
	      │ discard (LRU)
	      ▼

A key is resident in at most one tier. When the hot tier is full, its least
recently accessed entry moves to warm instead of being dropped; when warm is
full, its least recently accessed entry is discarded. Ties on last access are
broken by creation time, so eviction order is reproducible.

# Expiry

Each entry carries its own TTL measured from creation. Expired entries are
removed lazily when Get finds them, and proactively by a sweep that runs every
CleanupInterval. Has honours expiry but never removes anything.

# Usage

	c, err := cache.NewMultiLevelCache[[]byte](&cache.Config{
		Name:        "api-response",
		MaxHotSize:  100,
		MaxWarmSize: 500,
		DefaultTTL:  time.Minute,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	c.Set("weather:berlin", payload, 0) // 0 uses DefaultTTL
	if v, ok := c.Get("weather:berlin"); ok {
		...
	}

# Thread Safety

All methods are safe for concurrent use. Mutating paths (Get included, since
it updates hit counts and may promote or expire) take a write lock; Has, Keys,
Len and Stats take a read lock. Eviction scans the tier, which is linear in the
tier size; tiers are expected to hold hundreds to low thousands of entries.
*/
package cache
