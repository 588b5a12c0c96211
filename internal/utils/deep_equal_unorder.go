package utils

import "reflect"

// DeepEqualUnordered reports whether two values carry the same content,
// treating slices and arrays as multisets.
func DeepEqualUnordered(a, b interface{}) bool {
	return unorderedEqual(reflect.ValueOf(a), reflect.ValueOf(b))
}

func unorderedEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		for _, key := range a.MapKeys() {
			other := b.MapIndex(key)
			if !other.IsValid() || !unorderedEqual(a.MapIndex(key), other) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		return unorderedSliceEqual(a, b)
	case reflect.Interface:
		return unorderedEqual(a.Elem(), b.Elem())
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}

// quadratic matching; parameter lists are tiny
func unorderedSliceEqual(a, b reflect.Value) bool {
	if a.Len() != b.Len() {
		return false
	}
	claimed := make([]bool, b.Len())
outer:
	for i := 0; i < a.Len(); i++ {
		for j := 0; j < b.Len(); j++ {
			if !claimed[j] && unorderedEqual(a.Index(i), b.Index(j)) {
				claimed[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}
