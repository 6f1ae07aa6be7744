package filter

// Apply filters objs against f's condition, orders the survivors per
// f.OrderBy, and applies Skip/Take — the full ObjectFilter pipeline
// used by local matching and mirrored by storage adapters' query
// translation. objs must already be JSON-value-compatible trees (see
// Matches).
func Apply(objs []any, f ObjectFilter) []any {
	matched := make([]any, 0, len(objs))
	for _, o := range objs {
		if Matches(o, f) {
			matched = append(matched, o)
		}
	}

	if len(f.OrderBy) > 0 {
		order(matched, f.OrderBy)
	}

	return paginate(matched, f.Skip, f.Take)
}

// order sorts objs in place per the lexicographic orderByProperties
// list. A property missing on either side sorts before any defined
// value, per spec §4.5.
func order(objs []any, orderBy []OrderBy) {
	less := func(i, j int) bool {
		for _, ob := range orderBy {
			av, aok := resolve(objs[i], ob.Path)
			bv, bok := resolve(objs[j], ob.Path)

			switch {
			case !aok && !bok:
				continue
			case !aok:
				return ob.Direction != Desc
			case !bok:
				return ob.Direction == Desc
			}

			cmp, ok := compareOrdered(av, bv)
			if !ok || cmp == 0 {
				continue
			}
			if ob.Direction == Desc {
				cmp = -cmp
			}
			return cmp < 0
		}
		return false
	}

	insertionStableSort(objs, less)
}

// insertionStableSort is a simple stable sort; ObjectFilter result sets
// in Coaty's usage are bounded (filter+skip+take on one container's
// managed object set), so O(n^2) worst case is an acceptable tradeoff
// for not pulling in sort.Slice's reflection-based comparator path for
// what is already a closure.
func insertionStableSort(objs []any, less func(i, j int) bool) {
	for i := 1; i < len(objs); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			objs[j], objs[j-1] = objs[j-1], objs[j]
		}
	}
}

func paginate(objs []any, skip, take int) []any {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(objs) {
		return []any{}
	}
	objs = objs[skip:]
	if take > 0 && take < len(objs) {
		objs = objs[:take]
	}
	return objs
}
