/*
Package cacheutil provides the helpers callers use on top of a tiered cache:
key construction, the cache-aside (get-or-compute) pattern, substring
invalidation and non-blocking startup warm-up.

# Cache-Aside

	key := cacheutil.GenerateKey("user", userID)
	user, err := cacheutil.CacheAside(ctx, users, key, func(ctx context.Context) (*User, error) {
		return store.LoadUser(ctx, userID)
	}, 10*time.Minute)

Values are stored JSON-encoded. A payload that no longer decodes into the
requested type is deleted and fetched again, once. Fetch errors are returned
to the caller exactly as the fetch function produced them.

CacheAside runs the fetch outside any cache lock, so two concurrent misses on
one key may both fetch. CacheAsideShared collapses concurrent misses through a
singleflight.Group; use one group per cache.

# Warm-Up

WarmCache returns immediately. Entries are stored by a background goroutine
and one WarmReport is delivered on the returned channel when loading ends.
*/
package cacheutil
