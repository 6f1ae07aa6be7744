// Package value implements deep clone, equality, and containment
// semantics over JSON-value-compatible Go values (nil, bool, float64,
// string, []any, map[string]any — the shapes produced by
// encoding/json's default decode into any). These are the primitive
// operators the filter package's Equals/NotEquals, Contains/NotContains,
// and In/NotIn conditions are built on, and the comparator Advertise
// round-trip tests use to assert deep-equality.
package value

import "sort"

// Clone returns a deep copy of v. Maps and slices are copied
// recursively; scalars (including strings) are returned as-is since Go
// strings are immutable. Clone is used before a source publishes a
// scalar or object IoValue, to freeze the snapshot actually sent.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// DeepEqual reports whether a and b are recursively structurally equal
// over JSON-value-compatible types. Numeric comparison normalizes
// int/int64/float64 representations so that a value decoded from JSON
// (always float64) compares equal to one constructed in Go code with an
// int literal. nil is only equal to nil; a missing key is not the same
// as a key mapped to nil (callers needing "absence" semantics should use
// Exists/NotExists in the filter package, not Equals).
func DeepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, aval := range av {
			bval, ok := bv[k]
			if !ok || !DeepEqual(aval, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		an, aok := asFloat(a)
		bn, bok := asFloat(b)
		if aok && bok {
			return an == bn
		}
		return false
	}
}

// asFloat normalizes the numeric Go types that show up in JSON-decoded
// (float64) and Go-literal (int, int64, float32...) value trees to a
// single float64 for comparison.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Contains reports whether container contains value per the spec's
// Contains/NotContains semantics:
//   - an empty array or empty object operand matches any array/object
//     container, regardless of the container's own kind
//   - primitives: identity (DeepEqual)
//   - objects: every key present in value (as a map) must be present in
//     container and map to a contained value
//   - arrays: every element of value (as a slice) must be contained
//     somewhere in container, order-insensitive, duplicates collapsed;
//     a toplevel array may also directly contain a primitive.
func Contains(container, val any) bool {
	if isEmptyArrayOrMap(val) {
		switch container.(type) {
		case map[string]any, []any:
			return true
		}
	}
	switch c := container.(type) {
	case map[string]any:
		vm, ok := val.(map[string]any)
		if !ok {
			return false
		}
		for k, want := range vm {
			have, ok := c[k]
			if !ok || !Contains(have, want) {
				return false
			}
		}
		return true
	case []any:
		if vm, ok := val.([]any); ok {
			seen := dedupeElements(vm)
			for _, want := range seen {
				if !arrayContainsElement(c, want) {
					return false
				}
			}
			return true
		}
		// A toplevel array may contain a primitive/object directly.
		return arrayContainsElement(c, val)
	default:
		return DeepEqual(container, val)
	}
}

// isEmptyArrayOrMap reports whether v is an empty []any or an empty
// map[string]any — the operand shape that matches any array/object
// container regardless of the container's own kind.
func isEmptyArrayOrMap(v any) bool {
	switch t := v.(type) {
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// arrayContainsElement reports whether want is contained by (Contains
// semantics, not just DeepEqual) at least one element of arr.
func arrayContainsElement(arr []any, want any) bool {
	for _, have := range arr {
		if Contains(have, want) {
			return true
		}
		if DeepEqual(have, want) {
			return true
		}
	}
	return false
}

// dedupeElements collapses duplicate elements (by DeepEqual) from a
// slice, preserving first-seen order.
func dedupeElements(in []any) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		dup := false
		for _, seen := range out {
			if DeepEqual(seen, v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

// In reports whether val deep-equals any member of values.
func In(val any, values []any) bool {
	for _, v := range values {
		if DeepEqual(val, v) {
			return true
		}
	}
	return false
}

// SortIndices returns the permutation of indices 0..n-1 that a stable
// sort over the comparator less would produce, without mutating the
// caller's backing slice, so several parallel slices can be reordered
// together.
func SortIndices(n int, less func(i, j int) bool) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return less(idx[i], idx[j])
	})
	return idx
}
