package types

import (
	"context"
	"time"
)

// Cache defines the caching interface shared by callers and helpers.
// Get reports a miss with ok == false; it never returns an error.
type Cache[V any] interface {
	Name() string
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Has(key string) bool
	Delete(key string) bool
	Keys() []string
	Stats() Stats
}

// Sink receives periodic statistics snapshots
type Sink interface {
	Name() string
	Emit(ctx context.Context, snapshot Snapshot) error
}

// SnapshotFunc produces a snapshot on demand
type SnapshotFunc func() Snapshot
