package filter

import "github.com/coaty-io/coaty-go/value"

// resolve walks path into obj (a JSON-value-compatible tree, i.e. what
// encoding/json produces decoding into `any`: map[string]any, []any,
// string, float64, bool, nil). It returns the resolved value and
// whether the property was present. Traversal through nil or a
// non-object/non-indexable value yields "property absent" rather than
// panicking; an empty path segment ("") is a literal property name, so
// []string{"", "", ""} traverses three nested properties literally
// named "".
func resolve(obj any, path []string) (any, bool) {
	cur := obj
	for _, step := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[step]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Matches reports whether obj satisfies filter's condition tree. obj
// must already be a JSON-value-compatible tree (map[string]any,
// []any, scalars) — callers holding a typed domain object first
// round-trip it through encoding/json, exactly as the wire
// representation does.
func Matches(obj any, f ObjectFilter) bool {
	return evalNode(obj, f.Condition)
}

// MatchesNode evaluates a bare condition tree without the surrounding
// ObjectFilter's ordering/pagination — useful for IO router rule
// predicates and other call sites that only need the boolean test.
func MatchesNode(obj any, n Node) bool {
	return evalNode(obj, n)
}

func evalNode(obj any, n Node) bool {
	switch {
	case n.Cond != nil:
		return evalCondition(obj, n.Cond)
	case len(n.And) > 0:
		for _, child := range n.And {
			if !evalNode(obj, child) {
				return false
			}
		}
		return true
	case len(n.Or) > 0:
		for _, child := range n.Or {
			if evalNode(obj, child) {
				return true
			}
		}
		return false
	default:
		// Empty condition (no Cond, no And, no Or members) matches
		// everything, per spec §4.5 "Empty condition lists match
		// everything."
		return true
	}
}

func evalCondition(obj any, c *Condition) bool {
	resolved, present := resolve(obj, c.Path)

	switch c.Op {
	case OpExists:
		return present
	case OpNotExists:
		return !present
	}

	if !present {
		// Every operator other than Exists/NotExists requires the
		// property to resolve; absence makes the condition false
		// (including NotEquals/NotContains/NotIn — "undefined is
		// normalized to absence; do not use Equals/NotEquals to test
		// absence, use Exists/NotExists" per spec §4.5).
		return false
	}

	switch c.Op {
	case OpLessThan:
		cmp, ok := compareOrdered(resolved, c.Operand)
		return ok && cmp < 0
	case OpLessThanOrEqual:
		cmp, ok := compareOrdered(resolved, c.Operand)
		return ok && cmp <= 0
	case OpGreaterThan:
		cmp, ok := compareOrdered(resolved, c.Operand)
		return ok && cmp > 0
	case OpGreaterThanOrEqual:
		cmp, ok := compareOrdered(resolved, c.Operand)
		return ok && cmp >= 0
	case OpBetween:
		return evalBetween(resolved, c.Operand, c.Operand2, false)
	case OpNotBetween:
		return evalBetween(resolved, c.Operand, c.Operand2, true)
	case OpLike:
		s, ok := resolved.(string)
		if !ok {
			return false
		}
		pattern, ok := c.Operand.(string)
		if !ok {
			return false
		}
		return matchLike(s, pattern)
	case OpEquals:
		return value.DeepEqual(resolved, c.Operand)
	case OpNotEquals:
		return !value.DeepEqual(resolved, c.Operand)
	case OpContains:
		return value.Contains(resolved, c.Operand)
	case OpNotContains:
		return !value.Contains(resolved, c.Operand)
	case OpIn:
		values, _ := c.Operand.([]any)
		return value.In(resolved, values)
	case OpNotIn:
		values, _ := c.Operand.([]any)
		return !value.In(resolved, values)
	default:
		return false
	}
}

// evalBetween implements Between/NotBetween: the range is inclusive,
// and endpoints are swapped first if lo > hi, per spec §4.5 / §8
// boundary behavior ("Between(a,b) with a>b matches the same set as
// Between(b,a)").
func evalBetween(resolved, lo, hi any, negate bool) bool {
	loCmp, ok1 := compareOrdered(lo, hi)
	a, b := lo, hi
	if ok1 && loCmp > 0 {
		a, b = hi, lo
	}

	cmpLo, ok2 := compareOrdered(resolved, a)
	cmpHi, ok3 := compareOrdered(resolved, b)
	if !ok2 || !ok3 {
		return false
	}
	inRange := cmpLo >= 0 && cmpHi <= 0
	if negate {
		return !inRange
	}
	return inRange
}
