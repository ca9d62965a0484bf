package cacheutil

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/objectfs/tiercache/pkg/errors"
	"github.com/objectfs/tiercache/pkg/types"
)

// FetchFunc loads a value from the backing source on a cache miss
type FetchFunc[T any] func(ctx context.Context) (T, error)

// CacheAside returns the cached value for key, or calls fetch, stores the
// JSON-encoded result with ttl and returns it. A ttl <= 0 uses the cache
// default. Errors from fetch are returned unchanged and nothing is cached.
func CacheAside[T any](ctx context.Context, c types.Cache[[]byte], key string, fetch FetchFunc[T], ttl time.Duration, opts ...Option) (T, error) {
	o := newOptions(opts)

	if v, ok := lookup[T](c, key, o); ok {
		return v, nil
	}
	return fetchAndStore(ctx, c, key, fetch, ttl, o)
}

// CacheAsideShared behaves like CacheAside but concurrent misses on the same
// cache and key wait for a single fetch. One group may serve several caches;
// flights are keyed by cache name and key. The fetch runs with the context of
// the caller that started it.
func CacheAsideShared[T any](ctx context.Context, g *singleflight.Group, c types.Cache[[]byte], key string, fetch FetchFunc[T], ttl time.Duration, opts ...Option) (T, error) {
	o := newOptions(opts)

	if v, ok := lookup[T](c, key, o); ok {
		return v, nil
	}

	res, err, shared := g.Do(flightKey(c, key), func() (interface{}, error) {
		return fetchAndStore(ctx, c, key, fetch, ttl, o)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := res.(T)
	if !ok {
		// Joined a flight fetching another type for this key.
		if v, ok := lookup[T](c, key, o); ok {
			return v, nil
		}
		return fetchAndStore(ctx, c, key, fetch, ttl, o)
	}
	if shared {
		o.recorder.RecordOutcome(OutcomeShared)
	}
	return v, nil
}

func flightKey(c types.Cache[[]byte], key string) string {
	return c.Name() + "\x00" + key
}

// lookup decodes a cached payload. A payload that fails to decode is deleted.
func lookup[T any](c types.Cache[[]byte], key string, o options) (T, bool) {
	var v T

	data, ok := c.Get(key)
	if !ok {
		return v, false
	}

	if err := json.Unmarshal(data, &v); err != nil {
		c.Delete(key)
		o.recorder.RecordOutcome(OutcomeCorrupt)
		o.logger.Warn("corrupt cache payload removed", "key", key,
			"error", serializationFailed("decode", key, err))
		var zero T
		return zero, false
	}

	o.recorder.RecordOutcome(OutcomeHit)
	return v, true
}

func fetchAndStore[T any](ctx context.Context, c types.Cache[[]byte], key string, fetch FetchFunc[T], ttl time.Duration, o options) (T, error) {
	start := time.Now()
	v, err := fetch(ctx)
	o.recorder.RecordFetch(time.Since(start))
	if err != nil {
		o.recorder.RecordOutcome(OutcomeFetchError)
		var zero T
		return zero, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		o.recorder.RecordOutcome(OutcomeUncachable)
		o.logger.Warn("fetched value not cached", "key", key,
			"error", serializationFailed("encode", key, err))
		return v, nil
	}

	c.Set(key, data, ttl)
	o.recorder.RecordOutcome(OutcomeMiss)
	return v, nil
}

func serializationFailed(op, key string, cause error) *errors.CacheError {
	return errors.NewError(errors.ErrCodeSerializationFailed, "value is not valid JSON for this type").
		WithComponent("cacheutil").
		WithOperation(op).
		WithContext("key", key).
		WithCause(cause)
}
