package immutable

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func keysOf(om *OrderedMap) string {
	parts := make([]string, 0, om.Len())
	for _, k := range om.Keys() {
		parts = append(parts, fmt.Sprint(k))
	}
	return strings.Join(parts, " ")
}

func TestOrderedMapInsertionOrder(t *testing.T) {
	om := OrderedMapOf("c", 3, "a", 1, "b", 2)
	if got := keysOf(om); got != "c a b" {
		t.Errorf("keys = %q", got)
	}

	om = om.Set("a", 10)
	if got := keysOf(om); got != "c a b" {
		t.Errorf("updating a key must keep its position, keys = %q", got)
	}

	om = om.Remove("a").Set("a", 11)
	if got := keysOf(om); got != "c b a" {
		t.Errorf("re-inserting a key must move it to the end, keys = %q", got)
	}
	if v, _ := om.Get("a"); v != 11 {
		t.Errorf("Get(a) = %v", v)
	}
}

func TestOrderedMapCompaction(t *testing.T) {
	om := EmptyOrderedMap()
	for i := 0; i < 100; i++ {
		om = om.Set(i, i)
	}
	for i := 0; i < 90; i++ {
		om = om.Remove(i)
	}
	if om.Len() != 10 {
		t.Fatalf("Len = %d", om.Len())
	}
	if om.entries.Len() >= 100 {
		t.Errorf("holes were never compacted, %d slots", om.entries.Len())
	}

	i := 90
	om.Range(func(k, v any) bool {
		if k != i || v != i {
			t.Errorf("entry %v=%v, want %d", k, v, i)
		}
		i++
		return true
	})
}

func TestOrderedMapWithMutations(t *testing.T) {
	base := OrderedMapOf("x", 1)
	res := base.WithMutations(func(b *OrderedMapBuilder) {
		for i := 0; i < 64; i++ {
			b.Set(i, i)
		}
		for i := 0; i < 60; i++ {
			b.Remove(i)
		}
		b.Set("y", 2)
	})
	if base.Len() != 1 {
		t.Error("builder must not modify the source")
	}
	if got := keysOf(res); got != "x 60 61 62 63 y" {
		t.Errorf("keys = %q", got)
	}
}

func TestOrderedMapEquality(t *testing.T) {
	a := OrderedMapOf("a", 1, "b", 2)
	b := OrderedMapOf("a", 1, "b", 2)
	c := OrderedMapOf("b", 2, "a", 1)
	if !Is(a, b) || a.Hash() != b.Hash() {
		t.Error("equal ordered maps must be equal")
	}
	if Is(a, c) {
		t.Error("ordered maps with a different order must differ")
	}
}

func TestOrderedMapJSONKeepsOrder(t *testing.T) {
	om := OrderedMapOf("z", 1, "a", VectorOf(1, 2))
	data, err := json.Marshal(om)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"z":1,"a":[1,2]}` {
		t.Errorf("json = %s", data)
	}
}
