package immutable

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dFlux/lib/fault"
)

// --------------------------------------------------------------------------
// OrderedMap
// --------------------------------------------------------------------------

// OrderedMap is a persistent map that iterates in insertion order.
// It is composed of a Map from key to position and a Vector of entries;
// removals leave holes in the vector that are compacted once they dominate.
// Setting an existing key keeps its position. A nil *OrderedMap behaves like
// the empty ordered map.
type OrderedMap struct {
	index   *Map
	entries *Vector
	hash    hashCache
}

var emptyOrderedMap = &OrderedMap{index: emptyMap, entries: emptyVector}

// EmptyOrderedMap returns the shared empty ordered map
func EmptyOrderedMap() *OrderedMap {
	return emptyOrderedMap
}

// OrderedMapOf builds an ordered map from alternating keys and values
func OrderedMapOf(keyValues ...any) *OrderedMap {
	if len(keyValues)%2 != 0 {
		panic(fault.New(fault.CodeInvalidPath, "OrderedMapOf requires an even number of arguments"))
	}
	return emptyOrderedMap.WithMutations(func(b *OrderedMapBuilder) {
		for i := 0; i < len(keyValues); i += 2 {
			b.Set(keyValues[i], keyValues[i+1])
		}
	})
}

func newOrderedMap(index *Map, entries *Vector) *OrderedMap {
	if index.Len() == 0 {
		return emptyOrderedMap
	}
	return &OrderedMap{index: index, entries: entries}
}

func (om *OrderedMap) orEmpty() *OrderedMap {
	if om == nil {
		return emptyOrderedMap
	}
	return om
}

// Len returns the number of entries
func (om *OrderedMap) Len() int {
	if om == nil {
		return 0
	}
	return om.index.Len()
}

// Get returns the value stored under key
func (om *OrderedMap) Get(key any) (any, bool) {
	om = om.orEmpty()
	pos, ok := om.index.Get(key)
	if !ok {
		return nil, false
	}
	e, _ := om.entries.Get(pos.(int))
	return e.(entry).value, true
}

// GetOr returns the value stored under key or notSetValue if key is absent
func (om *OrderedMap) GetOr(key any, notSetValue any) any {
	if v, ok := om.Get(key); ok {
		return v
	}
	return notSetValue
}

// Has reports whether key is present
func (om *OrderedMap) Has(key any) bool {
	return om.orEmpty().index.Has(key)
}

// Set returns an ordered map with key set to value. New keys are appended,
// existing keys keep their position.
func (om *OrderedMap) Set(key, value any) *OrderedMap {
	om = om.orEmpty()
	if pos, ok := om.index.Get(key); ok {
		e, _ := om.entries.Get(pos.(int))
		if identical(e.(entry).value, value) {
			return om
		}
		return newOrderedMap(om.index, om.entries.Set(pos.(int), entry{key, value}))
	}
	return newOrderedMap(om.index.Set(key, om.entries.Len()), om.entries.Push(entry{key, value}))
}

// Remove returns an ordered map without key
func (om *OrderedMap) Remove(key any) *OrderedMap {
	om = om.orEmpty()
	pos, ok := om.index.Get(key)
	if !ok {
		return om
	}
	if needsCompaction(om.entries.Len(), om.index.Len()) {
		return newOrderedMap(compactEntries(om.entries, pos.(int)))
	}
	if pos.(int) == om.entries.Len()-1 {
		return newOrderedMap(om.index.Remove(key), om.entries.Pop())
	}
	return newOrderedMap(om.index.Remove(key), om.entries.Set(pos.(int), nil))
}

// Update applies fn to the value stored under key (or notSetValue) and stores the result
func (om *OrderedMap) Update(key any, notSetValue any, fn func(any) any) *OrderedMap {
	return om.Set(key, fn(om.GetOr(key, notSetValue)))
}

// Range calls fn for every entry in insertion order until fn returns false
func (om *OrderedMap) Range(fn func(key, value any) bool) {
	om.orEmpty().entries.Range(func(_ int, e any) bool {
		if e == nil {
			return true
		}
		en := e.(entry)
		return fn(en.key, en.value)
	})
}

// Keys returns all keys in insertion order
func (om *OrderedMap) Keys() []any {
	keys := make([]any, 0, om.Len())
	om.Range(func(k, _ any) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// WithMutations applies a batch of changes through a transient builder.
// The builder must not be used after fn returns.
func (om *OrderedMap) WithMutations(fn func(b *OrderedMapBuilder)) *OrderedMap {
	om = om.orEmpty()
	o := &owner{}
	b := &OrderedMapBuilder{
		owner:   o,
		index:   om.index.builder(o),
		entries: &VectorBuilder{t: om.entries.transient(o)},
	}
	fn(b)

	index := b.index.persist(om.index)
	entries := b.entries.t.persist(om.entries)
	b.owner, b.entries.t = nil, nil
	if index == om.index && entries == om.entries {
		return om
	}
	return newOrderedMap(index, entries)
}

// Equals reports whether other is an *OrderedMap holding equal entries in the same order
func (om *OrderedMap) Equals(other any) bool {
	o, ok := other.(*OrderedMap)
	if !ok {
		return false
	}
	if om.orEmpty() == o.orEmpty() {
		return true
	}
	if om.Len() != o.Len() {
		return false
	}

	keys, values := make([]any, 0, o.Len()), make([]any, 0, o.Len())
	o.Range(func(k, v any) bool {
		keys = append(keys, k)
		values = append(values, v)
		return true
	})

	i, equal := 0, true
	om.Range(func(k, v any) bool {
		equal = Is(k, keys[i]) && Is(v, values[i])
		i++
		return equal
	})
	return equal
}

// Hash returns the ordered structural hash of the map
func (om *OrderedMap) Hash() uint32 {
	om = om.orEmpty()
	if h, ok := om.hash.load(); ok {
		return h
	}
	h := uint32(1)
	om.Range(func(k, v any) bool {
		h = 31*h + hashMerge(Hash(v), Hash(k))
		return true
	})
	h = murmurHashOfSize(om.Len(), h)
	om.hash.store(h)
	return h
}

// String renders the ordered map for logs and debugging
func (om *OrderedMap) String() string {
	var sb strings.Builder
	sb.WriteString("OrderedMap{")
	first := true
	om.Range(func(k, v any) bool {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%v: %v", k, v)
		return true
	})
	sb.WriteString("}")
	return sb.String()
}

// needsCompaction reports whether holes make up at least half of a vector of
// at least one full block
func needsCompaction(slots, live int) bool {
	return slots >= branching && slots >= live*2
}

// compactEntries rebuilds index and entries without holes and without the
// entry at position skip
func compactEntries(entries *Vector, skip int) (*Map, *Vector) {
	var index *Map
	compacted := emptyVector.WithMutations(func(vb *VectorBuilder) {
		index = emptyMap.WithMutations(func(mb *MapBuilder) {
			entries.Range(func(i int, e any) bool {
				if e == nil || i == skip {
					return true
				}
				mb.Set(e.(entry).key, vb.Len())
				vb.Push(e)
				return true
			})
		})
	})
	return index, compacted
}

// --------------------------------------------------------------------------
// OrderedMapBuilder
// --------------------------------------------------------------------------

// OrderedMapBuilder is the transient view of an OrderedMap handed to WithMutations.
type OrderedMapBuilder struct {
	owner   *owner
	index   *MapBuilder
	entries *VectorBuilder
}

// Len returns the current number of entries
func (b *OrderedMapBuilder) Len() int {
	return b.index.Len()
}

// Get returns the value currently stored under key
func (b *OrderedMapBuilder) Get(key any) (any, bool) {
	pos, ok := b.index.Get(key)
	if !ok {
		return nil, false
	}
	e, _ := b.entries.Get(pos.(int))
	return e.(entry).value, true
}

// Set stores value under key, appending new keys
func (b *OrderedMapBuilder) Set(key, value any) *OrderedMapBuilder {
	if pos, ok := b.index.Get(key); ok {
		b.entries.Set(pos.(int), entry{key, value})
		return b
	}
	b.index.Set(key, b.entries.Len())
	b.entries.Push(entry{key, value})
	return b
}

// Remove deletes key
func (b *OrderedMapBuilder) Remove(key any) *OrderedMapBuilder {
	pos, ok := b.index.Get(key)
	if !ok {
		return b
	}

	if needsCompaction(b.entries.Len(), b.index.Len()) {
		// snapshot the current entries and start over from the compacted form
		current := b.entries.t.snapshot()
		index, entries := compactEntries(current, pos.(int))
		b.index = index.builder(b.owner)
		b.index.altered = true
		b.entries = &VectorBuilder{t: entries.transient(b.owner)}
		b.entries.t.altered = true
		return b
	}

	b.index.Remove(key)
	if pos.(int) == b.entries.Len()-1 {
		b.entries.Pop()
	} else {
		b.entries.Set(pos.(int), nil)
	}
	return b
}
