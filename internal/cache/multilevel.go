package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/objectfs/tiercache/pkg/errors"
	"github.com/objectfs/tiercache/pkg/types"
)

const (
	// DefaultPromotionThreshold is the warm-tier hit count that must be exceeded before promotion
	DefaultPromotionThreshold = 3

	// DefaultCleanupInterval is how often expired entries are swept
	DefaultCleanupInterval = 60 * time.Second
)

// Config represents multi-level cache configuration
type Config struct {
	Name               string        `yaml:"name"`
	MaxHotSize         int           `yaml:"max_hot_size"`
	MaxWarmSize        int           `yaml:"max_warm_size"`
	DefaultTTL         time.Duration `yaml:"default_ttl"`
	PromotionThreshold int           `yaml:"promotion_threshold"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a small general-purpose configuration
func DefaultConfig() *Config {
	return &Config{
		Name:               "default",
		MaxHotSize:         1000,
		MaxWarmSize:        5000,
		DefaultTTL:         5 * time.Minute,
		PromotionThreshold: DefaultPromotionThreshold,
		CleanupInterval:    DefaultCleanupInterval,
	}
}

// Validate rejects configurations that would produce an unbounded or degenerate cache
func (c *Config) Validate() error {
	invalid := func(field string, value interface{}, msg string) error {
		return errors.NewError(errors.ErrCodeInvalidConfig, field+" "+msg).
			WithComponent("cache").
			WithOperation("validate").
			WithContext("cache", c.Name).
			WithDetail(field, value)
	}

	if c.MaxHotSize <= 0 {
		return invalid("max_hot_size", c.MaxHotSize, "must be greater than 0")
	}
	if c.MaxWarmSize <= 0 {
		return invalid("max_warm_size", c.MaxWarmSize, "must be greater than 0")
	}
	if c.DefaultTTL <= 0 {
		return invalid("default_ttl", c.DefaultTTL, "must be greater than 0")
	}
	if c.PromotionThreshold < 0 {
		return invalid("promotion_threshold", c.PromotionThreshold, "must not be negative")
	}
	if c.CleanupInterval < 0 {
		return invalid("cleanup_interval", c.CleanupInterval, "must not be negative")
	}
	return nil
}

// counters tracks lifetime activity, guarded by MultiLevelCache.mu
type counters struct {
	hits        uint64
	misses      uint64
	evictions   uint64
	promotions  uint64
	demotions   uint64
	expirations uint64
}

// MultiLevelCache is a two-tier cache. New entries land in the hot tier; the
// least recently accessed hot entry is demoted to the warm tier under capacity
// pressure, and warm entries read often enough are promoted back to hot.
type MultiLevelCache[V any] struct {
	mu     sync.RWMutex
	hot    *tier[V]
	warm   *tier[V]
	config Config
	logger *slog.Logger
	stats  counters
	seq    uint64

	// now is replaced in tests
	now func() time.Time

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMultiLevelCache creates a new multi-level cache and starts its cleanup loop
func NewMultiLevelCache[V any](config *Config) (*MultiLevelCache[V], error) {
	if config == nil {
		config = DefaultConfig()
	}

	cfg := *config
	if cfg.PromotionThreshold == 0 {
		cfg.PromotionThreshold = DefaultPromotionThreshold
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &MultiLevelCache[V]{
		hot:    newTier[V](tierHot, cfg.MaxHotSize, cfg.DefaultTTL),
		warm:   newTier[V](tierWarm, cfg.MaxWarmSize, cfg.DefaultTTL),
		config: cfg,
		logger: logger.With("component", "cache", "cache", cfg.Name),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c, nil
}

// Name returns the configured cache name
func (c *MultiLevelCache[V]) Name() string {
	return c.config.Name
}

// Config returns a copy of the effective configuration
func (c *MultiLevelCache[V]) Config() Config {
	return c.config
}

// Get retrieves a value, looking in hot then warm. Expired entries found on
// the way are removed and reported as a miss.
func (c *MultiLevelCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if e, ok := c.hot.get(key); ok {
		if !e.expired(now) {
			e.touch(now)
			c.stats.hits++
			return e.Value, true
		}
		c.hot.remove(key)
		c.stats.expirations++
	} else if e, ok := c.warm.get(key); ok {
		if !e.expired(now) {
			e.touch(now)
			c.stats.hits++
			if e.Hits > uint64(c.config.PromotionThreshold) {
				c.promote(key, e)
			}
			return e.Value, true
		}
		c.warm.remove(key)
		c.stats.expirations++
	}

	c.stats.misses++
	var zero V
	return zero, false
}

// Set stores value in the hot tier. A ttl <= 0 uses the configured default.
func (c *MultiLevelCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.hot.defaultTTL
	}

	// Drop any resident copy first so the key never lives in both tiers and an
	// overwrite does not trigger eviction.
	c.hot.remove(key)
	c.warm.remove(key)

	c.evictIfNeeded(c.hot)

	now := c.now()
	c.seq++
	c.hot.put(key, &Entry[V]{
		Value:        value,
		CreatedAt:    now,
		TTL:          ttl,
		LastAccessed: now,
		seq:          c.seq,
	})
}

// Has reports whether key is resident and unexpired without touching it.
// Expired entries are left in place for the next Get or cleanup sweep.
func (c *MultiLevelCache[V]) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	if e, ok := c.hot.get(key); ok {
		return !e.expired(now)
	}
	if e, ok := c.warm.get(key); ok {
		return !e.expired(now)
	}
	return false
}

// Delete removes key from whichever tier holds it
func (c *MultiLevelCache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.hot.remove(key); ok {
		return true
	}
	_, ok := c.warm.remove(key)
	return ok
}

// Keys returns every resident key across both tiers, expired or not
func (c *MultiLevelCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, c.hot.len()+c.warm.len())
	for key := range c.hot.entries {
		keys = append(keys, key)
	}
	for key := range c.warm.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of resident entries
func (c *MultiLevelCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hot.len() + c.warm.len()
}

// Stats returns a read-only snapshot of tier occupancy and counters
func (c *MultiLevelCache[V]) Stats() types.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := c.hot.len() + c.warm.len()
	stats := types.Stats{
		Hot: types.TierStats{
			Size:    c.hot.len(),
			MaxSize: c.hot.maxSize,
			AvgHits: c.hot.avgHits(),
		},
		Warm: types.TierStats{
			Size:    c.warm.len(),
			MaxSize: c.warm.maxSize,
			AvgHits: c.warm.avgHits(),
		},
		Total: types.TotalStats{
			Entries:         entries,
			EstimatedMemory: int64(entries) * types.EstimatedEntrySize,
		},
		Hits:        c.stats.hits,
		Misses:      c.stats.misses,
		Evictions:   c.stats.evictions,
		Promotions:  c.stats.promotions,
		Demotions:   c.stats.demotions,
		Expirations: c.stats.expirations,
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Clear removes every entry. Counters are kept.
func (c *MultiLevelCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hot.clear()
	c.warm.clear()
}

// Cleanup sweeps expired entries from both tiers and returns how many were removed.
// It runs automatically every CleanupInterval.
func (c *MultiLevelCache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, t := range []*tier[V]{c.hot, c.warm} {
		for _, key := range t.expiredKeys(now) {
			t.remove(key)
			removed++
		}
	}
	c.stats.expirations += uint64(removed)
	return removed
}

// Close stops the cleanup loop and waits for it to exit. Safe to call more than once.
func (c *MultiLevelCache[V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		c.wg.Wait()
	})
}

// Helper methods

// promote moves a warm entry into hot. Caller holds c.mu.
func (c *MultiLevelCache[V]) promote(key string, e *Entry[V]) {
	c.warm.remove(key)
	c.evictIfNeeded(c.hot)
	c.hot.put(key, e)
	c.stats.promotions++
}

// evictIfNeeded frees one slot in t. Hot victims are demoted to warm, warm
// victims are dropped. Caller holds c.mu.
func (c *MultiLevelCache[V]) evictIfNeeded(t *tier[V]) {
	for t.full() {
		key, victim := t.oldest()
		if victim == nil {
			return
		}
		t.remove(key)

		if t == c.hot {
			c.evictIfNeeded(c.warm)
			c.warm.put(key, victim)
			c.stats.demotions++
			continue
		}
		c.stats.evictions++
	}
}

func (c *MultiLevelCache[V]) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if removed := c.Cleanup(); removed > 0 {
				c.logger.Debug("expired entries swept", "removed", removed)
			}
		}
	}
}
