// Package cache implements the persistent memo tables used by the evaluator
// to store getter results.
//
// Both implementations satisfy the Cache interface and are immutable: every
// Hit, Miss and Evict returns a new cache, so an evaluator can swap its cache
// atomically and old versions stay valid for whoever still holds them.
//
// Key Components:
//
//   - BasicCache: a persistent map from item to Entry. Miss refuses to
//     replace an entry with one carrying a lower DispatchID ("Refusing to
//     cache older value"), which keeps memoized values monotonic in the
//     state version they were computed for.
//
//   - LRUCache: wraps a BasicCache with an insertion ordered recency set and
//     a limit. When a new item arrives at capacity the evictCount least
//     recently used items are dropped first; replacing an item that is
//     already cached only moves it to the most recently used position. The
//     number of entries never exceeds the limit.
//
// Example usage:
//
//	c := cache.NewLRUCache(100, 1)
//	c2, err := c.Miss(getter, cache.Entry{Value: v, DispatchID: 1})
//	if err != nil {
//	    // an entry with a newer version is already cached
//	}
//	if e, ok := c2.Lookup(getter); ok {
//	    c2 = c2.Hit(getter)
//	    _ = e.Value
//	}
package cache
