package cacheutil

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/objectfs/tiercache/pkg/errors"
	"github.com/objectfs/tiercache/pkg/types"
)

// Resolver finds a named cache
type Resolver interface {
	Resolve(name string) (types.Cache[[]byte], error)
}

// WarmEntry is one value to pre-load into a named cache
type WarmEntry struct {
	Cache string
	Key   string
	TTL   time.Duration
	Load  FetchFunc[interface{}]
}

// StaticEntry returns a WarmEntry that stores an already-encoded JSON payload
func StaticEntry(cache, key string, payload json.RawMessage, ttl time.Duration) WarmEntry {
	return WarmEntry{
		Cache: cache,
		Key:   key,
		TTL:   ttl,
		Load: func(context.Context) (interface{}, error) {
			return payload, nil
		},
	}
}

// WarmReport summarizes one warm-up run
type WarmReport struct {
	Attempted int
	Loaded    int
	Failed    int
}

// WarmCache stores entries in the background and returns at once. The
// returned channel receives a single report and is then closed. Failures are
// logged and counted, never returned.
func WarmCache(ctx context.Context, r Resolver, entries []WarmEntry, opts ...Option) <-chan WarmReport {
	o := newOptions(opts)
	done := make(chan WarmReport, 1)

	go func() {
		defer close(done)

		var loaded, failed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.concurrency)

		for _, entry := range entries {
			entry := entry
			g.Go(func() error {
				if err := warmOne(gctx, r, entry); err != nil {
					failed.Add(1)
					o.logger.Warn("cache warm-up entry failed",
						"cache", entry.Cache,
						"key", entry.Key,
						"error", err)
					return nil
				}
				loaded.Add(1)
				return nil
			})
		}
		_ = g.Wait()

		report := WarmReport{
			Attempted: len(entries),
			Loaded:    int(loaded.Load()),
			Failed:    int(failed.Load()),
		}
		o.logger.Info("cache warm-up finished",
			"attempted", report.Attempted,
			"loaded", report.Loaded,
			"failed", report.Failed)
		done <- report
	}()

	return done
}

func warmOne(ctx context.Context, r Resolver, entry WarmEntry) error {
	if err := ctx.Err(); err != nil {
		return errors.NewError(errors.ErrCodeOperationCanceled, "warm-up canceled").
			WithComponent("cacheutil").
			WithOperation("warm").
			WithContext("key", entry.Key).
			WithCause(err)
	}

	if entry.Load == nil {
		return errors.Newf(errors.ErrCodeInvalidConfig, "warm entry %s has no loader", entry.Key).
			WithComponent("cacheutil").
			WithOperation("warm")
	}

	c, err := r.Resolve(entry.Cache)
	if err != nil {
		return err
	}

	v, err := entry.Load(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return serializationFailed("warm", entry.Key, err)
	}

	c.Set(entry.Key, data, entry.TTL)
	return nil
}
