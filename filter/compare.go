package filter

import "golang.org/x/text/collate"

// defaultCollator is the shared default Intl collator spec §4.5
// requires for locale-sensitive string ordering comparisons
// (LessThan/LessThanOrEqual/GreaterThan/GreaterThanOrEqual and
// orderByProperties on string-valued properties). A single package-level
// instance matches "shared default" — callers needing a different
// locale go through the SQL-translation path instead, which is
// explicitly out of scope for the in-memory matcher's collation choice.
var defaultCollator = collate.New(defaultLocale)

func compareStrings(a, b string) int {
	return defaultCollator.CompareString(a, b)
}

// compareNumbers returns -1, 0, or 1 comparing a and b as float64s.
func compareNumbers(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// asFloat mirrors value.asFloat's numeric-type normalization for the
// comparison operators.
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
	}
	return 0, false
}

// compareOrdered compares a and b per spec §4.5: numeric compare if
// both are numbers, locale-sensitive string compare if both are
// strings. Any other type pairing has no defined order; ok is false.
func compareOrdered(a, b any) (cmp int, ok bool) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return compareNumbers(af, bf), true
		}
		return 0, false
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return compareStrings(as, bs), true
		}
		return 0, false
	}
	return 0, false
}
