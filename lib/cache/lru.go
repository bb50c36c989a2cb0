package cache

import (
	"github.com/ValentinKolb/dFlux/lib/immutable"
)

const (
	// DefaultLRULimit is the number of entries an LRUCache holds by default
	DefaultLRULimit = 1000
	// DefaultEvictCount is the number of entries evicted at once when the limit is reached
	DefaultEvictCount = 1
)

// LRUCache bounds a BasicCache to a fixed number of items, evicting the least
// recently used ones first. Recency is tracked in an insertion ordered set
// (an immutable.OrderedMap whose iteration order runs from least to most
// recently used); touching an item removes and re-appends it.
type LRUCache struct {
	limit      int
	evictCount int
	cache      *BasicCache
	lru        *immutable.OrderedMap
}

// NewLRUCache creates an empty LRUCache. Non-positive arguments select
// DefaultLRULimit and DefaultEvictCount.
func NewLRUCache(limit, evictCount int) *LRUCache {
	if limit <= 0 {
		limit = DefaultLRULimit
	}
	if evictCount <= 0 {
		evictCount = DefaultEvictCount
	}
	return &LRUCache{
		limit:      limit,
		evictCount: evictCount,
		cache:      NewBasicCache(),
		lru:        immutable.EmptyOrderedMap(),
	}
}

func (c *LRUCache) with(cache *BasicCache, lru *immutable.OrderedMap) *LRUCache {
	return &LRUCache{limit: c.limit, evictCount: c.evictCount, cache: cache, lru: lru}
}

// Limit returns the maximum number of items
func (c *LRUCache) Limit() int {
	return c.limit
}

func (c *LRUCache) Lookup(item any) (Entry, bool) {
	return c.cache.Lookup(item)
}

func (c *LRUCache) Has(item any) bool {
	return c.cache.Has(item)
}

// Hit moves item to the most recently used position
func (c *LRUCache) Hit(item any) Cache {
	if !c.Has(item) {
		return c
	}
	return c.with(c.cache, touch(c.lru, item))
}

// Miss stores entry for item as the most recently used item. A new item
// arriving at capacity first evicts the evictCount least recently used items;
// replacing an existing item never evicts.
func (c *LRUCache) Miss(item any, entry Entry) (Cache, error) {
	if c.lru.Len() >= c.limit {
		if c.Has(item) {
			cache, err := c.cache.miss(item, entry)
			if err != nil {
				return nil, err
			}
			return c.with(cache, touch(c.lru, item)), nil
		}

		evicted, lru := c.evictOldest()
		cache, err := evicted.miss(item, entry)
		if err != nil {
			return nil, err
		}
		return c.with(cache, lru.Set(item, true)), nil
	}

	cache, err := c.cache.miss(item, entry)
	if err != nil {
		return nil, err
	}
	return c.with(cache, touch(c.lru, item)), nil
}

// evictOldest drops the evictCount least recently used items
func (c *LRUCache) evictOldest() (*BasicCache, *immutable.OrderedMap) {
	cache, lru := c.cache, c.lru
	n := 0
	c.lru.Range(func(item, _ any) bool {
		if n >= c.evictCount {
			return false
		}
		cache = cache.evict(item)
		lru = lru.Remove(item)
		n++
		return true
	})
	return cache, lru
}

func (c *LRUCache) Evict(item any) Cache {
	if !c.Has(item) {
		return c
	}
	return c.with(c.cache.evict(item), c.lru.Remove(item))
}

func (c *LRUCache) Len() int {
	return c.cache.Len()
}

func (c *LRUCache) AsMap() *immutable.Map {
	return c.cache.AsMap()
}

// Recency returns the tracked items from least to most recently used
func (c *LRUCache) Recency() []any {
	return c.lru.Keys()
}

// touch moves item to the most recently used end of the recency set
func touch(lru *immutable.OrderedMap, item any) *immutable.OrderedMap {
	return lru.Remove(item).Set(item, true)
}
