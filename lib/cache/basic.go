package cache

import (
	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/immutable"
)

// BasicCache is a plain persistent map from item to Entry without any
// eviction policy.
type BasicCache struct {
	entries *immutable.Map
}

// NewBasicCache creates an empty BasicCache
func NewBasicCache() *BasicCache {
	return &BasicCache{entries: immutable.EmptyMap()}
}

// NewBasicCacheFrom creates a BasicCache holding the entries of m (item -> Entry)
func NewBasicCacheFrom(m *immutable.Map) *BasicCache {
	if m == nil {
		m = immutable.EmptyMap()
	}
	return &BasicCache{entries: m}
}

func (c *BasicCache) Lookup(item any) (Entry, bool) {
	v, ok := c.entries.Get(item)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

func (c *BasicCache) Has(item any) bool {
	return c.entries.Has(item)
}

// Hit is a no-op for the basic cache
func (c *BasicCache) Hit(any) Cache {
	return c
}

func (c *BasicCache) Miss(item any, entry Entry) (Cache, error) {
	return c.miss(item, entry)
}

// miss is Miss with the concrete return type (used by LRUCache)
func (c *BasicCache) miss(item any, entry Entry) (*BasicCache, error) {
	if existing, ok := c.Lookup(item); ok && existing.DispatchID > entry.DispatchID {
		return nil, fault.Newf(fault.CodeCacheOrdering,
			"Refusing to cache older value (stored version %d, new version %d)", existing.DispatchID, entry.DispatchID)
	}
	return &BasicCache{entries: c.entries.Set(item, entry)}, nil
}

func (c *BasicCache) Evict(item any) Cache {
	return c.evict(item)
}

func (c *BasicCache) evict(item any) *BasicCache {
	entries := c.entries.Remove(item)
	if entries == c.entries {
		return c
	}
	return &BasicCache{entries: entries}
}

func (c *BasicCache) Len() int {
	return c.entries.Len()
}

func (c *BasicCache) AsMap() *immutable.Map {
	return c.entries
}
