package filter

// Negate returns the logical negation of n and true, or a zero Node and
// false if n contains an operator with no defined negation (Like is the
// only such operator per spec §8; a NotLike is expressible only by
// wrapping a negated evaluation, not as a distinct operator). Compound
// nodes negate via De Morgan's laws: negate(And) = Or(negate(each)),
// negate(Or) = And(negate(each)).
func Negate(n Node) (Node, bool) {
	switch {
	case n.Cond != nil:
		inv, ok := n.Cond.Op.Negation()
		if !ok {
			return Node{}, false
		}
		return Node{Cond: &Condition{
			Path:     n.Cond.Path,
			Op:       inv,
			Operand:  n.Cond.Operand,
			Operand2: n.Cond.Operand2,
		}}, true

	case len(n.And) > 0:
		negated := make([]Node, 0, len(n.And))
		for _, child := range n.And {
			nc, ok := Negate(child)
			if !ok {
				return Node{}, false
			}
			negated = append(negated, nc)
		}
		return Node{Or: negated}, true

	case len(n.Or) > 0:
		negated := make([]Node, 0, len(n.Or))
		for _, child := range n.Or {
			nc, ok := Negate(child)
			if !ok {
				return Node{}, false
			}
			negated = append(negated, nc)
		}
		return Node{And: negated}, true

	default:
		// Empty condition matches everything; it has no expressible
		// negation within this DSL (there is no "matches nothing"
		// leaf), so report it as non-negatable.
		return Node{}, false
	}
}
