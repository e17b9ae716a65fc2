package registry

import (
	"sync"
	"sync/atomic"
	"time"
)

// descriptorCache is a TTL-based in-memory cache with stale-while-revalidate
// for descriptors loaded from external sources. Uses sync.Map for lock-free
// reads on the hot path.
type descriptorCache struct {
	store sync.Map // map[string]*cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	desc       *Descriptor // nil = negative cache (server not configured)
	expiresAt  time.Time
	refreshing atomic.Bool
}

// cacheGetResult holds the result of a cache lookup.
type cacheGetResult struct {
	Desc         *Descriptor // nil if not found or negative cache
	Hit          bool        // true if a value was found (fresh or stale)
	NeedsRefresh bool        // true if expired, caller should refresh in background
}

func newDescriptorCache(ttl time.Duration) *descriptorCache {
	return &descriptorCache{ttl: ttl}
}

// Get performs a non-blocking cache lookup.
// Returns stale entries with NeedsRefresh=true when expired.
func (c *descriptorCache) Get(key string) cacheGetResult {
	val, ok := c.store.Load(key)
	if !ok {
		return cacheGetResult{Hit: false}
	}

	entry := val.(*cacheEntry)
	if time.Now().Before(entry.expiresAt) {
		return cacheGetResult{Desc: entry.desc, Hit: true}
	}

	// Stale hit. Only one goroutine wins the CAS and refreshes.
	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return cacheGetResult{
		Desc:         entry.desc,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a descriptor with a fresh TTL. Passing nil stores a negative
// cache entry (server not configured in the source).
func (c *descriptorCache) Set(key string, desc *Descriptor) {
	c.store.Store(key, &cacheEntry{
		desc:      desc,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *descriptorCache) Delete(key string) {
	c.store.Delete(key)
}
