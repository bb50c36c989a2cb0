package immutable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// --------------------------------------------------------------------------
// Native Conversion
// --------------------------------------------------------------------------

// FromNative deeply converts plain Go maps and slices into Maps and Vectors.
// json.Number values become int64 or float64, collections of this package
// and all other values are returned as they are.
func FromNative(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Map, *OrderedMap, *Vector:
		return t
	case json.Number:
		if n, ok := toNumber(t); ok {
			if n.isInt {
				return n.i
			}
			return n.f
		}
		return t.String()
	case map[string]any:
		return emptyMap.WithMutations(func(b *MapBuilder) {
			for k, e := range t {
				b.Set(k, FromNative(e))
			}
		})
	case map[any]any:
		return emptyMap.WithMutations(func(b *MapBuilder) {
			for k, e := range t {
				b.Set(FromNative(k), FromNative(e))
			}
		})
	case []any:
		return emptyVector.WithMutations(func(b *VectorBuilder) {
			for _, e := range t {
				b.Push(FromNative(e))
			}
		})
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return emptyMap.WithMutations(func(b *MapBuilder) {
			iter := rv.MapRange()
			for iter.Next() {
				b.Set(FromNative(iter.Key().Interface()), FromNative(iter.Value().Interface()))
			}
		})
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			// byte slices are values, not sequences
			return v
		}
		return emptyVector.WithMutations(func(b *VectorBuilder) {
			for i := 0; i < rv.Len(); i++ {
				b.Push(FromNative(rv.Index(i).Interface()))
			}
		})
	}
	return v
}

// ToNative deeply converts collections into plain Go values: Maps and
// OrderedMaps become map[string]any, Vectors become []any.
func ToNative(v any) any {
	switch t := v.(type) {
	case *Map:
		out := make(map[string]any, t.Len())
		t.Range(func(k, e any) bool {
			out[keyString(k)] = ToNative(e)
			return true
		})
		return out
	case *OrderedMap:
		out := make(map[string]any, t.Len())
		t.Range(func(k, e any) bool {
			out[keyString(k)] = ToNative(e)
			return true
		})
		return out
	case *Vector:
		out := make([]any, 0, t.Len())
		t.Range(func(_ int, e any) bool {
			out = append(out, ToNative(e))
			return true
		})
		return out
	}
	return v
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// IsImmutable reports whether v can be shared without defensive copies:
// nil, scalars, collections of this package and structs or arrays composed
// only of such values.
func IsImmutable(v any) bool {
	switch v.(type) {
	case nil, *Map, *OrderedMap, *Vector:
		return true
	}
	return immutableType(reflect.TypeOf(v), 0)
}

var collectionTypes = map[reflect.Type]bool{
	reflect.TypeOf((*Map)(nil)):        true,
	reflect.TypeOf((*OrderedMap)(nil)): true,
	reflect.TypeOf((*Vector)(nil)):     true,
}

func immutableType(t reflect.Type, depth int) bool {
	if depth > 16 {
		return false
	}
	if collectionTypes[t] {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return immutableType(t.Elem(), depth+1)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !immutableType(t.Field(i).Type, depth+1) {
				return false
			}
		}
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// JSON
// --------------------------------------------------------------------------

// ParseJSON decodes JSON into collections, keeping numbers exact
func ParseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return FromNative(v), nil
}

// MarshalJSON encodes the map as a JSON object
func (m *Map) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, m.Len())
	m.Range(func(k, v any) bool {
		out[keyString(k)] = v
		return true
	})
	return json.Marshal(out)
}

// MarshalJSON encodes the ordered map as a JSON object in insertion order
func (om *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	om.Range(func(k, v any) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var kb, vb []byte
		if kb, err = json.Marshal(keyString(k)); err != nil {
			return false
		}
		if vb, err = json.Marshal(v); err != nil {
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the vector as a JSON array
func (v *Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToSlice())
}
