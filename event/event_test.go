package event

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/object"
)

func TestAdvertiseValidate(t *testing.T) {
	var e AdvertiseEvent
	if err := e.Validate(); err == nil {
		t.Error("expected validation error for nil object")
	}

	e.Object = object.NewIdentity("agent-1")
	if err := e.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestDiscoverRequiresCriterion(t *testing.T) {
	var e DiscoverEvent
	if err := e.Validate(); err == nil {
		t.Error("expected validation error when no discovery criterion is set")
	}
	id := uuid.New()
	e.ObjectID = &id
	if err := e.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDiscoverResolveAtMostOnce(t *testing.T) {
	id := uuid.New()
	calls := 0
	d := DiscoverEvent{ObjectID: &id}
	d = d.WithResolver(func(r ResolveEvent) error {
		calls++
		return nil
	})

	resp := ResolveEvent{Object: object.NewIdentity("x")}
	if err := d.Resolve(resp); err != nil {
		t.Fatalf("first Resolve should succeed: %v", err)
	}
	if err := d.Resolve(resp); err == nil {
		t.Error("second Resolve call must fail")
	}
	if calls != 1 {
		t.Errorf("resolver should be invoked exactly once, got %d", calls)
	}
}

func TestDiscoverResolveWithoutResponderFails(t *testing.T) {
	var d DiscoverEvent
	if err := d.Resolve(ResolveEvent{}); err == nil {
		t.Error("Resolve without an attached responder must error")
	}
}

func TestReturnEventMutualExclusion(t *testing.T) {
	e := ReturnEvent{}
	if err := e.Validate(); err == nil {
		t.Error("expected error when neither result nor error set")
	}
	e.Result = "ok"
	e.Error = &CallError{Code: 1, Message: "x"}
	if err := e.Validate(); err == nil {
		t.Error("expected error when both result and error set")
	}
}
