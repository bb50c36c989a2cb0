package testing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dFlux/lib/cache"
	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/immutable"
)

// CacheFactory is a function that creates a new, empty cache
type CacheFactory func() cache.Cache

// RunCacheTests runs the conformance suite every cache.Cache implementation must pass.
func RunCacheTests(t *testing.T, name string, factory CacheFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Miss&Lookup", func(t *testing.T) {
			testMissLookup(t, factory())
		})

		t.Run("Persistence", func(t *testing.T) {
			testPersistence(t, factory())
		})

		t.Run("MonotonicVersions", func(t *testing.T) {
			testMonotonicVersions(t, factory())
		})

		t.Run("Evict", func(t *testing.T) {
			testEvict(t, factory())
		})

		t.Run("HitAbsent", func(t *testing.T) {
			testHitAbsent(t, factory())
		})

		t.Run("StructuralItems", func(t *testing.T) {
			testStructuralItems(t, factory())
		})

		t.Run("AsMap", func(t *testing.T) {
			testAsMap(t, factory())
		})
	})
}

// mustMiss stores an entry and fails the test on error
func mustMiss(t testing.TB, c cache.Cache, item any, e cache.Entry) cache.Cache {
	t.Helper()
	next, err := c.Miss(item, e)
	if err != nil {
		t.Fatalf("Miss(%v) failed: %v", item, err)
	}
	return next
}

func testMissLookup(t *testing.T, c cache.Cache) {
	if _, ok := c.Lookup("a"); ok {
		t.Fatal("empty cache must not contain entries")
	}

	c = mustMiss(t, c, "a", cache.Entry{Value: 1, DispatchID: 1, Args: []any{1}})
	e, ok := c.Lookup("a")
	if !ok {
		t.Fatal("expected entry for a")
	}
	if e.Value != 1 || e.DispatchID != 1 || len(e.Args) != 1 {
		t.Errorf("unexpected entry %+v", e)
	}
	if !c.Has("a") || c.Has("b") {
		t.Error("Has reports wrong membership")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func testPersistence(t *testing.T, c cache.Cache) {
	c1 := mustMiss(t, c, "a", cache.Entry{Value: "first", DispatchID: 1})
	c2 := mustMiss(t, c1, "a", cache.Entry{Value: "second", DispatchID: 2})

	if e, _ := c1.Lookup("a"); e.Value != "first" {
		t.Errorf("older cache changed to %v", e.Value)
	}
	if e, _ := c2.Lookup("a"); e.Value != "second" {
		t.Errorf("newer cache holds %v", e.Value)
	}
	if c.Has("a") {
		t.Error("Miss must not modify the receiver")
	}

	c3 := c2.Evict("a")
	if !c2.Has("a") || c3.Has("a") {
		t.Error("Evict must only affect the returned cache")
	}
}

func testMonotonicVersions(t *testing.T, c cache.Cache) {
	c = mustMiss(t, c, "a", cache.Entry{Value: 1, DispatchID: 5})

	tests := []struct {
		name    string
		version uint64
		wantErr bool
	}{
		{"older", 4, true},
		{"equal", 5, false},
		{"newer", 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Miss("a", cache.Entry{Value: 2, DispatchID: tt.version})
			if tt.wantErr {
				if !errors.Is(err, fault.ErrCacheOrdering) {
					t.Errorf("expected cache ordering error, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	if e, _ := c.Lookup("a"); e.Value != 1 {
		t.Errorf("failed miss changed the cache, value %v", e.Value)
	}
}

func testEvict(t *testing.T, c cache.Cache) {
	for i := 0; i < 3; i++ {
		c = mustMiss(t, c, i, cache.Entry{Value: i})
	}
	c = c.Evict(1)
	if c.Has(1) || !c.Has(0) || !c.Has(2) {
		t.Error("Evict removed the wrong item")
	}
	if c.Evict("missing").Len() != c.Len() {
		t.Error("evicting an absent item must not change the cache")
	}
}

func testHitAbsent(t *testing.T, c cache.Cache) {
	c = c.Hit("nothing")
	if c.Has("nothing") || c.Len() != 0 {
		t.Error("Hit must not insert items")
	}
}

func testStructuralItems(t *testing.T, c cache.Cache) {
	k1 := immutable.VectorOf("store", "count")
	k2 := immutable.VectorOf("store", "count")

	c = mustMiss(t, c, k1, cache.Entry{Value: "v"})
	if e, ok := c.Lookup(k2); !ok || e.Value != "v" {
		t.Error("structurally equal items must share an entry")
	}
	if c.Has(immutable.VectorOf("store", "other")) {
		t.Error("different items must not share an entry")
	}
}

func testAsMap(t *testing.T, c cache.Cache) {
	for i := 0; i < 10; i++ {
		c = mustMiss(t, c, fmt.Sprintf("item-%d", i), cache.Entry{Value: i})
	}
	m := c.AsMap()
	if m.Len() != c.Len() {
		t.Fatalf("AsMap has %d entries, cache %d", m.Len(), c.Len())
	}
	m.Range(func(k, v any) bool {
		e, ok := c.Lookup(k)
		if !ok || e.Value != v.(cache.Entry).Value {
			t.Errorf("AsMap entry %v does not match cache", k)
		}
		return true
	})
}
