// Package testing provides the conformance suite and benchmarks shared by
// all cache.Cache implementations.
//
// Example usage:
//
//	factory := func() cache.Cache {
//		return cache.NewLRUCache(100, 1)
//	}
//
//	// Running the standard test suite
//	cachetesting.RunCacheTests(t, "LRUCache", factory)
//
//	// Running performance benchmarks
//	cachetesting.RunCacheBenchmarks(b, "LRUCache", factory)
package testing
