package immutable

import "reflect"

// Is reports whether two values are equal by value.
//
// Identical values are always equal. Numbers compare by numeric value
// regardless of their Go type, Equaler implementations (all collections of
// this package) compare structurally, and any other non-comparable value
// (plain slices and maps) falls back to reflect.DeepEqual.
func Is(a, b any) bool {
	if identical(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	na, okA := toNumber(a)
	nb, okB := toNumber(b)
	if okA || okB {
		return okA && okB && na.equal(nb)
	}

	if ea, ok := a.(Equaler); ok {
		return ea.Equals(b)
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || ta.Comparable() {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// identical reports reference identity for pointer-like values and plain
// equality for comparable values. It never panics on non-comparable values.
func identical(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}

	if !ta.Comparable() {
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		switch ta.Kind() {
		case reflect.Map:
			return va.Pointer() == vb.Pointer()
		case reflect.Slice:
			return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
		default:
			return false
		}
	}

	// structs holding interfaces with non-comparable dynamic values panic on ==
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
