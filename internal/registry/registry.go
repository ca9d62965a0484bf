// Package registry owns the named caches of a process.
//
// A Registry is built once at startup from a list of cache specs and injected
// into the components that need it. Caches are never resized or re-created.
package registry

import (
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/objectfs/tiercache/internal/cache"
	"github.com/objectfs/tiercache/internal/config"
	"github.com/objectfs/tiercache/pkg/errors"
	"github.com/objectfs/tiercache/pkg/types"
)

// Cache is the payload-agnostic cache kept in the registry. Values are
// JSON-encoded so cache-aside callers can decode them into any type.
type Cache = cache.MultiLevelCache[[]byte]

// Registry maps cache names to their caches
type Registry struct {
	caches map[string]*Cache
	order  []string
	logger *slog.Logger
	closed atomic.Bool
}

// DefaultSpecs returns the standard set of named caches
func DefaultSpecs() []cache.Config {
	return config.DefaultCaches()
}

// New creates one cache per spec. Any invalid spec closes the caches already
// built and returns the validation error.
func New(specs []cache.Config, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		caches: make(map[string]*Cache, len(specs)),
		logger: logger.With("component", "registry"),
	}

	for i := range specs {
		spec := specs[i]
		if _, dup := r.caches[spec.Name]; dup {
			r.Close()
			return nil, errors.NewError(errors.ErrCodeInvalidConfig, "duplicate cache name").
				WithComponent("registry").
				WithOperation("new").
				WithContext("cache", spec.Name)
		}
		if spec.Logger == nil {
			spec.Logger = logger
		}

		c, err := cache.NewMultiLevelCache[[]byte](&spec)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.caches[spec.Name] = c
		r.order = append(r.order, spec.Name)

		cfg := c.Config()
		r.logger.Debug("cache registered",
			"cache", spec.Name,
			"max_hot_size", cfg.MaxHotSize,
			"max_warm_size", cfg.MaxWarmSize,
			"default_ttl", cfg.DefaultTTL)
	}

	return r, nil
}

// FromConfig builds the registry described by cfg.Caches
func FromConfig(cfg *config.Configuration, logger *slog.Logger) (*Registry, error) {
	return New(cfg.Caches, logger)
}

// Get returns the named cache, or nil when no such cache exists
func (r *Registry) Get(name string) *Cache {
	return r.caches[name]
}

// Lookup returns the named cache, CACHE_NOT_FOUND for an unknown name or
// CACHE_CLOSED once the registry has been closed
func (r *Registry) Lookup(name string) (*Cache, error) {
	if r.closed.Load() {
		return nil, errors.Newf(errors.ErrCodeCacheClosed, "registry closed, cannot use cache %q", name).
			WithComponent("registry").
			WithOperation("lookup")
	}
	c, ok := r.caches[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeCacheNotFound, "no cache named %q", name).
			WithComponent("registry").
			WithOperation("lookup")
	}
	return c, nil
}

// Names returns the registered cache names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Len returns the number of registered caches
func (r *Registry) Len() int {
	return len(r.caches)
}

// Stats reads the stats of every cache without mutating any of them
func (r *Registry) Stats() map[string]types.Stats {
	stats := make(map[string]types.Stats, len(r.caches))
	for name, c := range r.caches {
		stats[name] = c.Stats()
	}
	return stats
}

// Close stops every cache's cleanup loop. Later lookups fail with
// CACHE_CLOSED. Safe to call more than once.
func (r *Registry) Close() {
	if r.closed.Swap(true) {
		return
	}
	for _, name := range r.order {
		r.caches[name].Close()
	}
	r.logger.Debug("registry closed", "caches", len(r.order))
}

// Resolve is Lookup typed for consumers that only need the cache contract
func (r *Registry) Resolve(name string) (types.Cache[[]byte], error) {
	c, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c, nil
}
