package cache

import "time"

// Entry is the record stored for one key in either tier
type Entry[V any] struct {
	Value        V
	CreatedAt    time.Time
	TTL          time.Duration
	Hits         uint64
	LastAccessed time.Time

	// seq orders entries that share both timestamps
	seq uint64
}

// expired reports whether the entry is logically absent at now.
func (e *Entry[V]) expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// touch records a successful read.
func (e *Entry[V]) touch(now time.Time) {
	e.Hits++
	e.LastAccessed = now
}

// olderThan reports whether e should be evicted before other.
func (e *Entry[V]) olderThan(other *Entry[V]) bool {
	if !e.LastAccessed.Equal(other.LastAccessed) {
		return e.LastAccessed.Before(other.LastAccessed)
	}
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.seq < other.seq
}
