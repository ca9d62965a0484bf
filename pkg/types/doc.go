/*
Package types provides the shared contracts and statistics structures for tiercache.

The Cache interface is the caller-facing contract implemented by the multi-level
cache in internal/cache. Helpers in pkg/cacheutil accept it rather than the
concrete type so they can be exercised against any store.

Stats mirrors what a single cache reports:

	hot:   {size, max_size, avg_hits}
	warm:  {size, max_size, avg_hits}
	total: {entries, estimated_memory}

estimated_memory is entries multiplied by EstimatedEntrySize. It is an
approximation and should not be read as an exact accounting.

A Snapshot groups Stats for every named cache at one instant. Sinks receive
snapshots from the monitor and export them (logs, Prometheus, Redis, S3).
*/
package types
