package value

import "testing"

func TestCloneDeep(t *testing.T) {
	orig := map[string]any{
		"a": []any{1.0, 2.0, map[string]any{"x": "y"}},
		"b": "hello",
	}
	clone := Clone(orig).(map[string]any)

	inner := clone["a"].([]any)[2].(map[string]any)
	inner["x"] = "mutated"

	origInner := orig["a"].([]any)[2].(map[string]any)
	if origInner["x"] != "y" {
		t.Fatalf("mutating clone affected original: %v", origInner["x"])
	}
}

func TestDeepEqualNumericNormalization(t *testing.T) {
	if !DeepEqual(3, 3.0) {
		t.Error("int 3 should equal float64 3.0")
	}
	if !DeepEqual(int64(7), 7.0) {
		t.Error("int64 7 should equal float64 7.0")
	}
}

func TestDeepEqualNilSemantics(t *testing.T) {
	if !DeepEqual(nil, nil) {
		t.Error("nil should equal nil")
	}
	if DeepEqual(nil, 0.0) {
		t.Error("nil should not equal 0")
	}
}

func TestDeepEqualObjectsAndArrays(t *testing.T) {
	a := map[string]any{"x": 1.0, "y": []any{1.0, 2.0}}
	b := map[string]any{"y": []any{1.0, 2.0}, "x": 1.0}
	if !DeepEqual(a, b) {
		t.Error("maps with same keys in different order should be equal")
	}

	c := map[string]any{"x": 1.0, "y": []any{2.0, 1.0}}
	if DeepEqual(a, c) {
		t.Error("arrays are order-sensitive under DeepEqual")
	}
}

func TestContainsArrayElements(t *testing.T) {
	container := []any{1.0, 2.0, 3.0}
	if !Contains(container, 3.0) {
		t.Error("[1,2,3] should contain 3 (toplevel array containing a primitive)")
	}
	if Contains(container, 4.0) {
		t.Error("[1,2,3] should not contain 4")
	}
	if !Contains(container, []any{}) {
		t.Error("Contains([]) should match every array")
	}
}

func TestContainsObjectSubset(t *testing.T) {
	obj := map[string]any{"x": 42.0, "y": 43.0}
	if !Contains(obj, map[string]any{"x": 42.0}) {
		t.Error("object should contain a map naming a subset of its keys with matching values")
	}
	if Contains(obj, map[string]any{"x": 99.0}) {
		t.Error("object should not contain a map with a mismatched value")
	}
}

func TestContainsEmptyOperandMatchesAcrossKinds(t *testing.T) {
	if !Contains(map[string]any{"x": 1.0}, []any{}) {
		t.Error("Contains([]) should match an object container too")
	}
	if !Contains([]any{1.0, 2.0}, map[string]any{}) {
		t.Error("Contains({}) should match an array container too")
	}
}

func TestContainsArrayOfObjectsAndDedup(t *testing.T) {
	container := []any{
		map[string]any{"a": 1.0, "b": 2.0},
		map[string]any{"a": 1.0, "b": 2.0}, // duplicate
		map[string]any{"a": 3.0},
	}
	want := []any{
		map[string]any{"a": 1.0},
		map[string]any{"a": 1.0}, // duplicate in the query too
	}
	if !Contains(container, want) {
		t.Error("every specified element (deduplicated) must be contained somewhere")
	}
}

func TestInMembership(t *testing.T) {
	values := []any{"red", "green", "blue"}
	if !In("green", values) {
		t.Error("In should find an exact membership match")
	}
	if In("yellow", values) {
		t.Error("In should not find a non-member")
	}
}

func TestSortIndicesStable(t *testing.T) {
	keys := []int{3, 1, 1, 2}
	idx := SortIndices(len(keys), func(i, j int) bool { return keys[i] < keys[j] })
	want := []int{1, 2, 3, 0}
	for i, v := range want {
		if idx[i] != v {
			t.Fatalf("SortIndices = %v, want %v", idx, want)
		}
	}
}
