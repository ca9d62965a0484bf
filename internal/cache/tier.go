package cache

import "time"

const (
	tierHot  = "hot"
	tierWarm = "warm"
)

// tier is one bounded key space. It is not safe for concurrent use;
// MultiLevelCache serializes access.
type tier[V any] struct {
	name       string
	maxSize    int
	defaultTTL time.Duration
	entries    map[string]*Entry[V]
}

func newTier[V any](name string, maxSize int, defaultTTL time.Duration) *tier[V] {
	return &tier[V]{
		name:       name,
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*Entry[V], maxSize),
	}
}

func (t *tier[V]) get(key string) (*Entry[V], bool) {
	e, ok := t.entries[key]
	return e, ok
}

func (t *tier[V]) put(key string, e *Entry[V]) {
	t.entries[key] = e
}

func (t *tier[V]) remove(key string) (*Entry[V], bool) {
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	return e, ok
}

func (t *tier[V]) len() int {
	return len(t.entries)
}

func (t *tier[V]) full() bool {
	return len(t.entries) >= t.maxSize
}

// oldest scans for the least recently accessed entry. O(n) in the tier size.
func (t *tier[V]) oldest() (string, *Entry[V]) {
	var (
		victimKey string
		victim    *Entry[V]
	)
	for key, e := range t.entries {
		if victim == nil || e.olderThan(victim) {
			victimKey, victim = key, e
		}
	}
	return victimKey, victim
}

// expiredKeys lists keys whose entries are expired at now.
func (t *tier[V]) expiredKeys(now time.Time) []string {
	var keys []string
	for key, e := range t.entries {
		if e.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (t *tier[V]) avgHits() float64 {
	if len(t.entries) == 0 {
		return 0
	}
	var total uint64
	for _, e := range t.entries {
		total += e.Hits
	}
	return float64(total) / float64(len(t.entries))
}

func (t *tier[V]) clear() {
	t.entries = make(map[string]*Entry[V], t.maxSize)
}
