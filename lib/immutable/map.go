package immutable

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/dFlux/lib/fault"
)

// --------------------------------------------------------------------------
// Map
// --------------------------------------------------------------------------

// Map is a persistent hash array mapped trie. Every "modifying" method
// returns a new Map that shares all untouched nodes with the receiver; the
// receiver itself never changes. A nil *Map behaves like the empty map.
//
// Thread-safety: a Map may be read from any number of goroutines.
type Map struct {
	size int
	root node
	hash hashCache
}

var emptyMap = &Map{}

// EmptyMap returns the shared empty map
func EmptyMap() *Map {
	return emptyMap
}

// MapOf builds a map from alternating keys and values.
// It panics if an odd number of arguments is given.
func MapOf(keyValues ...any) *Map {
	if len(keyValues)%2 != 0 {
		panic(fault.New(fault.CodeInvalidPath, "MapOf requires an even number of arguments"))
	}
	return emptyMap.WithMutations(func(b *MapBuilder) {
		for i := 0; i < len(keyValues); i += 2 {
			b.Set(keyValues[i], keyValues[i+1])
		}
	})
}

func newMap(size int, root node) *Map {
	if size == 0 || root == nil {
		return emptyMap
	}
	return &Map{size: size, root: root}
}

// Len returns the number of entries
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.size
}

// Get returns the value stored under key
func (m *Map) Get(key any) (any, bool) {
	if m == nil || m.root == nil {
		return nil, false
	}
	return m.root.get(0, Hash(key), key)
}

// GetOr returns the value stored under key or notSetValue if key is absent
func (m *Map) GetOr(key any, notSetValue any) any {
	if v, ok := m.Get(key); ok {
		return v
	}
	return notSetValue
}

// Has reports whether key is present
func (m *Map) Has(key any) bool {
	_, ok := m.Get(key)
	return ok
}

// Set returns a map with key set to value. If value is identical to the
// current value the receiver itself is returned.
func (m *Map) Set(key, value any) *Map {
	return m.update(key, value, false)
}

// Remove returns a map without key. If key is absent the receiver is returned.
func (m *Map) Remove(key any) *Map {
	return m.update(key, nil, true)
}

// Update applies fn to the value stored under key (or notSetValue) and stores the result
func (m *Map) Update(key any, notSetValue any, fn func(any) any) *Map {
	return m.Set(key, fn(m.GetOr(key, notSetValue)))
}

// Merge returns a map with all entries of other set on top of the receiver
func (m *Map) Merge(other *Map) *Map {
	if other.Len() == 0 {
		return m.orEmpty()
	}
	if m.Len() == 0 {
		return other
	}
	return m.WithMutations(func(b *MapBuilder) {
		other.Range(func(k, v any) bool {
			b.Set(k, v)
			return true
		})
	})
}

// Clear returns the empty map
func (m *Map) Clear() *Map {
	return emptyMap
}

func (m *Map) orEmpty() *Map {
	if m == nil {
		return emptyMap
	}
	return m
}

func (m *Map) update(key, value any, remove bool) *Map {
	m = m.orEmpty()
	var ch change
	root := updateNode(m.root, nil, 0, Hash(key), key, value, remove, &ch)
	if !ch.altered {
		return m
	}
	return newMap(m.size+sizeDelta(ch, remove), root)
}

func sizeDelta(ch change, remove bool) int {
	switch {
	case !ch.sizeChanged:
		return 0
	case remove:
		return -1
	default:
		return 1
	}
}

// Range calls fn for every entry until fn returns false.
// The iteration order is stable for a given map but otherwise unspecified.
func (m *Map) Range(fn func(key, value any) bool) {
	if m == nil || m.root == nil {
		return
	}
	m.root.iterate(fn)
}

// Keys returns all keys in iteration order
func (m *Map) Keys() []any {
	keys := make([]any, 0, m.Len())
	m.Range(func(k, _ any) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// WithMutations applies a batch of changes through a transient builder and
// returns the resulting map. Nodes created inside fn are edited in place,
// nodes shared with the receiver are copied on first write.
// The builder must not be used after fn returns.
func (m *Map) WithMutations(fn func(b *MapBuilder)) *Map {
	m = m.orEmpty()
	b := m.builder(&owner{})
	fn(b)
	return b.persist(m)
}

func (m *Map) builder(o *owner) *MapBuilder {
	return &MapBuilder{owner: o, size: m.size, root: m.root}
}

// --------------------------------------------------------------------------
// Equality & Hashing
// --------------------------------------------------------------------------

// Equals reports whether other is a *Map with equal keys and values
func (m *Map) Equals(other any) bool {
	o, ok := other.(*Map)
	if !ok {
		return false
	}
	if m.orEmpty() == o.orEmpty() {
		return true
	}
	if m.Len() != o.Len() {
		return false
	}
	if h1, ok1 := m.hash.load(); ok1 {
		if h2, ok2 := o.hash.load(); ok2 && h1 != h2 {
			return false
		}
	}

	equal := true
	m.Range(func(k, v any) bool {
		ov, found := o.Get(k)
		equal = found && Is(v, ov)
		return equal
	})
	return equal
}

// Hash returns the structural hash of the map (independent of iteration order).
// It is computed once and cached.
func (m *Map) Hash() uint32 {
	m = m.orEmpty()
	if h, ok := m.hash.load(); ok {
		return h
	}
	var h uint32
	m.Range(func(k, v any) bool {
		h += hashMerge(Hash(v), Hash(k))
		return true
	})
	h = murmurHashOfSize(m.size, h)
	m.hash.store(h)
	return h
}

// String renders the map for logs and debugging
func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteString("Map{")
	first := true
	m.Range(func(k, v any) bool {
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

// hashCache holds a lazily computed hash. The zero value is "not computed".
type hashCache struct {
	v atomic.Uint64
}

const hashSetFlag = 1 << 32

func (c *hashCache) load() (uint32, bool) {
	v := c.v.Load()
	return uint32(v), v&hashSetFlag != 0
}

func (c *hashCache) store(h uint32) {
	c.v.Store(hashSetFlag | uint64(h))
}

// --------------------------------------------------------------------------
// MapBuilder
// --------------------------------------------------------------------------

// MapBuilder is the transient (mutable) view of a Map handed to WithMutations.
//
// Thread-safety: a builder must only be used by the goroutine running WithMutations.
type MapBuilder struct {
	owner   *owner
	size    int
	root    node
	altered bool
}

func (b *MapBuilder) checkOwner() {
	if b.owner == nil {
		panic(fault.New(fault.CodeInvariant, "map builder used after WithMutations returned"))
	}
}

// Len returns the current number of entries
func (b *MapBuilder) Len() int {
	return b.size
}

// Get returns the value currently stored under key
func (b *MapBuilder) Get(key any) (any, bool) {
	if b.root == nil {
		return nil, false
	}
	return b.root.get(0, Hash(key), key)
}

// Set stores value under key
func (b *MapBuilder) Set(key, value any) *MapBuilder {
	b.apply(key, value, false)
	return b
}

// Remove deletes key
func (b *MapBuilder) Remove(key any) *MapBuilder {
	b.apply(key, nil, true)
	return b
}

func (b *MapBuilder) apply(key, value any, remove bool) {
	b.checkOwner()
	var ch change
	root := updateNode(b.root, b.owner, 0, Hash(key), key, value, remove, &ch)
	if !ch.altered {
		return
	}
	b.root = root
	b.size += sizeDelta(ch, remove)
	b.altered = true
}

// persist freezes the builder and returns the resulting map (orig if nothing changed)
func (b *MapBuilder) persist(orig *Map) *Map {
	b.owner = nil
	if !b.altered {
		return orig
	}
	return newMap(b.size, b.root)
}
