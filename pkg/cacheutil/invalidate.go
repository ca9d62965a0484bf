package cacheutil

import (
	"strings"

	"github.com/objectfs/tiercache/pkg/types"
)

// InvalidatePattern deletes every key containing substr and returns how many
// were deleted. It scans all keys in both tiers.
func InvalidatePattern[V any](c types.Cache[V], substr string) int {
	deleted := 0
	for _, key := range c.Keys() {
		if strings.Contains(key, substr) && c.Delete(key) {
			deleted++
		}
	}
	return deleted
}
