package immutable

import (
	"github.com/ValentinKolb/dFlux/lib/fault"
)

// --------------------------------------------------------------------------
// Container Access
// --------------------------------------------------------------------------

// notSetMarker stands in for an absent value while walking a key path
var notSetMarker any = &struct{ _ byte }{}

// IsCollection reports whether v is a *Map, *OrderedMap or *Vector
func IsCollection(v any) bool {
	switch v.(type) {
	case *Map, *OrderedMap, *Vector:
		return true
	}
	return false
}

func toIndex(key any) (int, bool) {
	n, ok := toNumber(key)
	if !ok || !n.isInt {
		return 0, false
	}
	return int(n.i), true
}

func getValue(c any, key any) (any, bool) {
	switch t := c.(type) {
	case *Map:
		return t.Get(key)
	case *OrderedMap:
		return t.Get(key)
	case *Vector:
		if i, ok := toIndex(key); ok {
			return t.Get(i)
		}
	}
	return nil, false
}

func setValue(c any, key, value any) any {
	switch t := c.(type) {
	case *Map:
		return t.Set(key, value)
	case *OrderedMap:
		return t.Set(key, value)
	case *Vector:
		i, ok := toIndex(key)
		if !ok {
			panic(fault.Newf(fault.CodeInvalidPath, "invalid vector index %v", key))
		}
		return t.Set(i, value)
	}
	panic(fault.Newf(fault.CodeInvalidPath, "cannot set %v within non-data-structure value %v", key, c))
}

func removeValue(c any, key any) any {
	switch t := c.(type) {
	case *Map:
		return t.Remove(key)
	case *OrderedMap:
		return t.Remove(key)
	case *Vector:
		if i, ok := toIndex(key); ok {
			return t.Remove(i)
		}
		return t
	}
	panic(fault.Newf(fault.CodeInvalidPath, "cannot remove %v from non-data-structure value %v", key, c))
}

// --------------------------------------------------------------------------
// Key Paths
// --------------------------------------------------------------------------

// GetIn follows path through nested collections starting at c.
// It returns false as soon as a key is missing or a non-collection is reached.
func GetIn(c any, path []any) (any, bool) {
	cur := c
	for _, key := range path {
		v, ok := getValue(cur, key)
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// HasIn reports whether path resolves to a value within c
func HasIn(c any, path []any) bool {
	_, ok := GetIn(c, path)
	return ok
}

// UpdateIn replaces the value at path with fn(current). Missing intermediate
// collections are created as empty Maps and a missing leaf passes notSetValue
// to fn. If fn returns its argument unchanged, c itself is returned.
//
// It panics with a fault.CodeInvalidPath error if path runs through a value
// that is not a collection.
func UpdateIn(c any, path []any, notSetValue any, fn func(any) any) any {
	res := updateIn(c, path, 0, notSetValue, fn)
	if res == notSetMarker {
		return nil
	}
	return res
}

// SetIn stores value at path, creating intermediate Maps as needed
func SetIn(c any, path []any, value any) any {
	return UpdateIn(c, path, nil, func(any) any { return value })
}

// RemoveIn removes the value at path. Missing paths leave c unchanged.
func RemoveIn(c any, path []any) any {
	return UpdateIn(c, path, notSetMarker, func(any) any { return notSetMarker })
}

func updateIn(existing any, path []any, i int, notSetValue any, fn func(any) any) any {
	wasNotSet := existing == notSetMarker

	if i == len(path) {
		current := existing
		if wasNotSet {
			current = notSetValue
		}
		updated := fn(current)
		if identical(updated, current) {
			return existing
		}
		return updated
	}

	if !wasNotSet && !IsCollection(existing) {
		panic(fault.Newf(fault.CodeInvalidPath, "cannot update within non-data-structure value in path %v: %v", path[:i], existing))
	}

	key := path[i]
	next := notSetMarker
	if !wasNotSet {
		if v, ok := getValue(existing, key); ok {
			next = v
		}
	}

	updated := updateIn(next, path, i+1, notSetValue, fn)
	switch {
	case identical(updated, next):
		return existing
	case updated == notSetMarker:
		return removeValue(existing, key)
	case wasNotSet:
		return setValue(emptyMap, key, updated)
	default:
		return setValue(existing, key, updated)
	}
}

// --------------------------------------------------------------------------
// Map Key Path Methods
// --------------------------------------------------------------------------

// GetIn returns the value at path
func (m *Map) GetIn(path []any) (any, bool) {
	return GetIn(m.orEmpty(), path)
}

// HasIn reports whether path resolves to a value
func (m *Map) HasIn(path []any) bool {
	return HasIn(m.orEmpty(), path)
}

// SetIn returns a map with value stored at path
func (m *Map) SetIn(path []any, value any) *Map {
	return m.UpdateIn(path, nil, func(any) any { return value })
}

// UpdateIn returns a map with the value at path replaced by fn(current)
func (m *Map) UpdateIn(path []any, notSetValue any, fn func(any) any) *Map {
	return asMap(UpdateIn(m.orEmpty(), path, notSetValue, fn))
}

// RemoveIn returns a map without the value at path
func (m *Map) RemoveIn(path []any) *Map {
	return asMap(RemoveIn(m.orEmpty(), path))
}

func asMap(v any) *Map {
	switch t := v.(type) {
	case nil:
		return emptyMap
	case *Map:
		return t
	}
	panic(fault.Newf(fault.CodeInvalidPath, "update of the root produced non-map value %v", v))
}
