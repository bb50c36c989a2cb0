package testing

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/dFlux/lib/cache"
)

// RunCacheBenchmarks runs all benchmarks for a cache implementation
func RunCacheBenchmarks(b *testing.B, name string, factory CacheFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Miss", func(b *testing.B) {
			benchmarkMiss(b, factory())
		})

		b.Run("Lookup", func(b *testing.B) {
			benchmarkLookup(b, factory())
		})

		b.Run("Hit", func(b *testing.B) {
			benchmarkHit(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fill(b *testing.B, c cache.Cache, n int) (cache.Cache, []string) {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("item-%d", i)
		var err error
		if c, err = c.Miss(items[i], cache.Entry{Value: i}); err != nil {
			b.Fatal(err)
		}
	}
	return c, items
}

func benchmarkMiss(b *testing.B, c cache.Cache) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := c.Miss(i%5000, cache.Entry{Value: i, DispatchID: uint64(i)})
		if err != nil {
			b.Fatal(err)
		}
		c = next
	}
}

func benchmarkLookup(b *testing.B, c cache.Cache) {
	c, items := fill(b, c, 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Lookup(items[i%len(items)]); !ok {
			b.Fatal("expected entry")
		}
	}
}

func benchmarkHit(b *testing.B, c cache.Cache) {
	c, items := fill(b, c, 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c = c.Hit(items[i%len(items)])
	}
}
