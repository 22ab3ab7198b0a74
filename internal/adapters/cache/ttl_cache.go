package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// NoExpiry keeps found values for the lifetime of the cache
const NoExpiry = ttlcache.NoTTL

type ttlCacheEntry[T any] struct {
	data   T
	valid  bool
	flight *flight[T]
}

type ttlCache[T any] struct {
	cache *ttlcache.Cache[string, ttlCacheEntry[T]]
}

func (c *ttlCache[T]) getOrClaim(key string) hitResult[T] {
	f := newFlight[T]()
	// Claims never expire, only the claimant may remove them
	item, existed := c.cache.GetOrSet(
		key,
		ttlCacheEntry[T]{valid: false, flight: f},
		ttlcache.WithTTL[string, ttlCacheEntry[T]](ttlcache.NoTTL),
	)
	if !existed {
		return hitResult[T]{
			valid:   false,
			claimed: true,
			flight:  f,
		}
	}

	entry := item.Value()
	return hitResult[T]{
		data:    entry.data,
		valid:   entry.valid,
		claimed: false,
		flight:  entry.flight,
	}
}

func (c *ttlCache[T]) set(key string, data T) {
	c.cache.Set(key, ttlCacheEntry[T]{data: data, valid: true}, ttlcache.DefaultTTL)
}

func (c *ttlCache[T]) delete(key string) {
	c.cache.Delete(key)
}

// Stop the background expiry loop
func (c *ttlCache[T]) Stop() {
	c.cache.Stop()
}

// NewTTLCache returns a store backed by ttlcache.
// Found values expire after ttl, pass NoExpiry to keep them forever.
func NewTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	store := ttlcache.New[string, ttlCacheEntry[T]](
		ttlcache.WithTTL[string, ttlCacheEntry[T]](ttl),
		ttlcache.WithDisableTouchOnHit[string, ttlCacheEntry[T]](),
	)
	go store.Start()
	return &ttlCache[T]{cache: store}
}
