package object

import (
	"encoding/json"
	"testing"
)

func TestNewObjectIDUnique(t *testing.T) {
	a := NewObjectID()
	b := NewObjectID()
	if a == b {
		t.Fatal("NewObjectID must generate unique identifiers")
	}
	if a.Version() != 4 {
		t.Fatalf("NewObjectID version = %d, want 4 (UUID v4 identity invariant)", a.Version())
	}
}

func TestCoreTypeValidity(t *testing.T) {
	if !CoreTypeIoSource.IsValid() {
		t.Error("IoSource should be a valid core type")
	}
	if CoreType("Bogus").IsValid() {
		t.Error("an unrecognized core type string must not be valid")
	}
	if got := CoreTypeIoSource.CoatyObjectType(); got != "coaty.IoSource" {
		t.Errorf("CoatyObjectType() = %q, want %q", got, "coaty.IoSource")
	}
}

func TestDecodeKnownCoreType(t *testing.T) {
	src := IoSource{
		IoPoint: IoPoint{
			CoatyObject: CoatyObject{
				ObjectID:   NewObjectID(),
				CoreType:   CoreTypeIoSource,
				ObjectType: "coaty.IoSource",
				Name:       "temp-sensor",
			},
			ValueType: "coaty.temp",
		},
	}
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(*IoSource)
	if !ok {
		t.Fatalf("Decode returned %T, want *IoSource", decoded)
	}
	if got.ValueType != "coaty.temp" || got.Base().Name != "temp-sensor" {
		t.Errorf("decoded IoSource mismatch: %+v", got)
	}
}

func TestDecodeUnknownCoreTypeRoundTrips(t *testing.T) {
	raw := []byte(`{"objectId":"3fa85f64-5717-4562-b3fc-2c963f66afa6","coreType":"FutureThing","objectType":"acme.FutureThing","name":"mystery","extra":{"nested":true}}`)

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	u, ok := decoded.(*Unknown)
	if !ok {
		t.Fatalf("Decode returned %T, want *Unknown", decoded)
	}
	if u.Base().Name != "mystery" {
		t.Errorf("Unknown.Name = %q, want %q", u.Base().Name, "mystery")
	}

	reEncoded, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}

	var a, b map[string]any
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(reEncoded, &b); err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("round-trip lost/gained fields: got %v, want %v", b, a)
	}
	for k, v := range a {
		fv, ok := b[k]
		if !ok || !deepEqualAny(v, fv) {
			t.Errorf("round-trip field %q = %v, want %v", k, fv, v)
		}
	}
}

func mapsEqual(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok {
		return false
	}
	return deepEqualAny(am, bm)
}

func deepEqualAny(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		if len(am) != len(bm) {
			return false
		}
		for k, v := range am {
			if !deepEqualAny(v, bm[k]) {
				return false
			}
		}
		return true
	}
	return a == b
}
