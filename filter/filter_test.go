package filter

import "testing"

func obj(kv map[string]any) any { return any(kv) }

func TestLikeEscapesExample(t *testing.T) {
	// Spec §8 scenario 6: pattern literal %a_c\\d\_ matches
	// "hello abc\\d_" and does not match "hello abc\\d_world".
	pattern := `%a_c\\d\_`
	if !matchLike(`hello abc\d_`, pattern) {
		t.Errorf("expected pattern %q to match %q", pattern, `hello abc\d_`)
	}
	if matchLike(`hello abc\d_world`, pattern) {
		t.Errorf("expected pattern %q NOT to match %q", pattern, `hello abc\d_world`)
	}
}

func TestLikeBoundary(t *testing.T) {
	if !matchLike("anything at all", "%") {
		t.Error(`Like("%") must match every non-null string`)
	}
	if !matchLike("", "") {
		t.Error(`Like("") must match the empty string`)
	}
	if matchLike("x", "") {
		t.Error(`Like("") must not match a non-empty string`)
	}
}

func TestLikeNonStringNeverMatches(t *testing.T) {
	if evalCondition(obj(map[string]any{"v": 42.0}), &Condition{Path: []string{"v"}, Op: OpLike, Operand: "%"}) {
		t.Error("Like must fail for non-string values")
	}
}

func TestBetweenSwapsEndpoints(t *testing.T) {
	o := obj(map[string]any{"v": 5.0})
	c1 := &Condition{Path: []string{"v"}, Op: OpBetween, Operand: 10.0, Operand2: 1.0}
	c2 := &Condition{Path: []string{"v"}, Op: OpBetween, Operand: 1.0, Operand2: 10.0}
	if evalCondition(o, c1) != evalCondition(o, c2) {
		t.Error("Between(a,b) with a>b must match the same set as Between(b,a)")
	}
	if !evalCondition(o, c1) {
		t.Error("5 should be between 1 and 10 inclusive")
	}
}

func TestContainsToplevelArrayExample(t *testing.T) {
	// Spec §8 scenario 5.
	o := obj(map[string]any{
		"a": []any{1.0, 2.0, 3.0},
		"b": map[string]any{"x": 42.0, "y": 43.0},
	})
	f := ObjectFilter{Condition: And(
		Leaf(Path("a"), OpContains, 3.0),
		Leaf(Path("b"), OpContains, map[string]any{"x": 42.0}),
	)}
	if !Matches(o, f) {
		t.Error("expected the containment conjunction to match")
	}

	f2 := ObjectFilter{Condition: Leaf(Path("a"), OpContains, 4.0)}
	if Matches(o, f2) {
		t.Error("expected Contains(4) on [1,2,3] to fail")
	}
}

func TestContainsEmptyArrayMatchesEverything(t *testing.T) {
	o := obj(map[string]any{"a": []any{1.0, 2.0}})
	f := ObjectFilter{Condition: Leaf(Path("a"), OpContains, []any{})}
	if !Matches(o, f) {
		t.Error("Contains([]) must match every array")
	}

	o2 := obj(map[string]any{"a": map[string]any{"k": 1.0}})
	f2 := ObjectFilter{Condition: Leaf(Path("a"), OpContains, map[string]any{})}
	if !Matches(o2, f2) {
		t.Error("Contains({}) must match every object")
	}
}

func TestContainsEmptyArrayMatchesAcrossKinds(t *testing.T) {
	// Contains([]) and Contains({}) must match regardless of whether the
	// operand's "shape" matches the container's own kind.
	o := obj(map[string]any{"a": map[string]any{"k": 1.0}})
	f := ObjectFilter{Condition: Leaf(Path("a"), OpContains, []any{})}
	if !Matches(o, f) {
		t.Error("Contains([]) must match an object container too")
	}

	o2 := obj(map[string]any{"a": []any{1.0, 2.0}})
	f2 := ObjectFilter{Condition: Leaf(Path("a"), OpContains, map[string]any{})}
	if !Matches(o2, f2) {
		t.Error("Contains({}) must match an array container too")
	}
}

func TestPropertyPathLiteralEmptySegments(t *testing.T) {
	o := obj(map[string]any{
		"": map[string]any{
			"": map[string]any{
				"": "deep",
			},
		},
	})
	v, ok := resolve(o, PathOf("", "", ""))
	if !ok || v != "deep" {
		t.Errorf(`path ["","",""] should resolve to "deep", got %v, ok=%v`, v, ok)
	}
}

func TestExistsVsEqualsForAbsence(t *testing.T) {
	o := obj(map[string]any{"a": 1.0})
	if Matches(o, ObjectFilter{Condition: Leaf(Path("b"), OpExists)}) {
		t.Error("NotExists property should fail Exists")
	}
	if !Matches(o, ObjectFilter{Condition: Leaf(Path("b"), OpNotExists)}) {
		t.Error("missing property should satisfy NotExists")
	}
	// NotEquals on an absent property is false, not true — absence is
	// not a substitute for NotExists.
	if Matches(o, ObjectFilter{Condition: Leaf(Path("b"), OpNotEquals, 5.0)}) {
		t.Error("NotEquals on an absent property must be false")
	}
}

func TestNegationUniversalProperty(t *testing.T) {
	o := obj(map[string]any{"a": 5.0, "b": "hello", "c": []any{1.0, 2.0}})
	cases := []Node{
		Leaf(Path("a"), OpEquals, 5.0),
		Leaf(Path("a"), OpIn, []any{1.0, 5.0, 9.0}),
		Leaf(Path("c"), OpContains, 1.0),
		Leaf(Path("a"), OpBetween, 1.0, 10.0),
		Leaf(Path("a"), OpExists),
	}
	for _, n := range cases {
		neg, ok := Negate(n)
		if !ok {
			t.Fatalf("expected %+v to be negatable", n)
		}
		got := evalNode(o, n)
		gotNeg := evalNode(o, neg)
		if got == gotNeg {
			t.Errorf("matches(o,f)=%v should differ from matches(o,negate(f))=%v for %+v", got, gotNeg, n)
		}
	}
}

func TestLikeHasNoNegation(t *testing.T) {
	n := Leaf(Path("a"), OpLike, "%")
	if _, ok := Negate(n); ok {
		t.Error("Like must not have a defined negation")
	}
}

func TestEmptyConditionMatchesEverything(t *testing.T) {
	if !Matches(obj(map[string]any{}), ObjectFilter{}) {
		t.Error("an empty condition tree must match everything")
	}
}

func TestOrderingMissingPropertiesSortFirst(t *testing.T) {
	objs := []any{
		obj(map[string]any{"name": "b", "rank": 2.0}),
		obj(map[string]any{"name": "a"}), // rank missing
		obj(map[string]any{"name": "c", "rank": 1.0}),
	}
	f := ObjectFilter{OrderBy: []OrderBy{{Path: Path("rank"), Direction: Asc}}}
	out := Apply(objs, f)
	first := out[0].(map[string]any)
	if first["name"] != "a" {
		t.Errorf("expected object with missing rank to sort first, got %v", first)
	}
}

func TestSkipTakeAfterOrdering(t *testing.T) {
	objs := []any{
		obj(map[string]any{"v": 3.0}),
		obj(map[string]any{"v": 1.0}),
		obj(map[string]any{"v": 2.0}),
	}
	f := ObjectFilter{
		OrderBy: []OrderBy{{Path: Path("v"), Direction: Asc}},
		Skip:    1,
		Take:    1,
	}
	out := Apply(objs, f)
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].(map[string]any)["v"] != 2.0 {
		t.Errorf("expected v=2 after skip 1 take 1 of [1,2,3], got %v", out[0])
	}
}

func TestInAndNotInDeepEqualMembership(t *testing.T) {
	o := obj(map[string]any{"tags": map[string]any{"a": 1.0}})
	f := ObjectFilter{Condition: Leaf(Path("tags"), OpIn, []any{
		map[string]any{"a": 1.0},
		map[string]any{"a": 2.0},
	})}
	if !Matches(o, f) {
		t.Error("In should deep-equal match a member")
	}
}

func TestDotPathVsArrayPath(t *testing.T) {
	o := obj(map[string]any{"a": map[string]any{"b.c": 1.0}})
	// Dot-notation would split on every ".", never reaching "b.c" as a
	// single segment — the array form is required for such names.
	if Matches(o, ObjectFilter{Condition: Leaf(Path("a.b.c"), OpExists)}) {
		t.Error("dot-notation must not find a property literally named b.c")
	}
	if !Matches(o, ObjectFilter{Condition: Leaf(PathOf("a", "b.c"), OpExists)}) {
		t.Error("array-form path must find a property literally named b.c")
	}
}
