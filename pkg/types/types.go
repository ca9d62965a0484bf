package types

import (
	"time"
)

// EstimatedEntrySize is the per-entry constant used for memory estimates.
// It approximates key, payload and bookkeeping overhead and is not an exact accounting.
const EstimatedEntrySize int64 = 1024

// TierStats represents the occupancy of one cache tier
type TierStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	AvgHits float64 `json:"avg_hits"`
}

// TotalStats aggregates both tiers
type TotalStats struct {
	Entries         int   `json:"entries"`
	EstimatedMemory int64 `json:"estimated_memory"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hot   TierStats  `json:"hot"`
	Warm  TierStats  `json:"warm"`
	Total TotalStats `json:"total"`

	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Promotions  uint64  `json:"promotions"`
	Demotions   uint64  `json:"demotions"`
	Expirations uint64  `json:"expirations"`
	HitRate     float64 `json:"hit_rate"`
}

// Snapshot is a point-in-time read of every named cache
type Snapshot struct {
	Taken  time.Time        `json:"taken"`
	Caches map[string]Stats `json:"caches"`
}

// Names returns the cache names of the snapshot in no particular order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Caches))
	for name := range s.Caches {
		names = append(names, name)
	}
	return names
}
