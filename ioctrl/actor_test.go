package ioctrl

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/comm"
	"github.com/coaty-io/coaty-go/event"
	"github.com/coaty-io/coaty-go/object"
)

func newTestManager() *comm.Manager {
	return comm.New(object.NewIdentity("test-container"), comm.Options{})
}

func newTestActor(useRaw bool) object.IoActor {
	return object.IoActor{IoPoint: object.IoPoint{
		CoatyObject: object.CoatyObject{
			ObjectID:   object.NewObjectID(),
			CoreType:   object.CoreTypeIoActor,
			ObjectType: object.CoreTypeIoActor.CoatyObjectType(),
			Name:       "test-actor",
		},
		ValueType:      "coaty.temp",
		UseRawIoValues: useRaw,
	}}
}

func TestActorController_ObserveAssociation_StartsWithCurrentState(t *testing.T) {
	actor := newTestActor(false)
	c := NewActorController(newTestManager(), actor, nil)

	var got []bool
	c.ObserveAssociation(func(v bool) { got = append(got, v) })
	if len(got) != 1 || got[0] != false {
		t.Fatalf("initial delivery = %v, want [false]", got)
	}
}

func TestActorController_AssociationBecomesTrueThenFalse(t *testing.T) {
	actor := newTestActor(false)
	c := NewActorController(newTestManager(), actor, nil)

	var got []bool
	c.ObserveAssociation(func(v bool) { got = append(got, v) })

	sourceID := object.NewObjectID()
	c.onAssociateChangeForTest(event.AssociateEvent{
		SourceID: sourceID, ActorID: actor.ObjectID, Associated: true,
	})
	c.onAssociateChangeForTest(event.AssociateEvent{
		SourceID: sourceID, ActorID: actor.ObjectID, Associated: false,
	})

	want := []bool{false, true, false}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestActorController_IgnoresEventsForOtherActors(t *testing.T) {
	actor := newTestActor(false)
	c := NewActorController(newTestManager(), actor, nil)

	var got []bool
	c.ObserveAssociation(func(v bool) { got = append(got, v) })

	c.onAssociateChangeForTest(event.AssociateEvent{
		SourceID: object.NewObjectID(), ActorID: uuid.New(), Associated: true,
	})

	if len(got) != 1 {
		t.Fatalf("got %v, want only the initial delivery (event for a different actor ignored)", got)
	}
}

func TestActorController_DeliverDecodesJSON(t *testing.T) {
	actor := newTestActor(false)
	c := NewActorController(newTestManager(), actor, nil)

	c.deliver([]byte(`{"temp":21.5}`))

	v, ok := c.GetIoValue()
	if !ok {
		t.Fatal("GetIoValue: no value cached")
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("decoded value = %T, want map[string]any", v)
	}
	if m["temp"] != 21.5 {
		t.Errorf("temp = %v, want 21.5", m["temp"])
	}
}

func TestActorController_DeliverRawPassesBytesThrough(t *testing.T) {
	actor := newTestActor(true)
	c := NewActorController(newTestManager(), actor, nil)

	raw := []byte{0x01, 0x02, 0x03}
	c.deliver(raw)

	v, ok := c.GetIoValue()
	if !ok {
		t.Fatal("GetIoValue: no value cached")
	}
	b, ok := v.([]byte)
	if !ok || len(b) != 3 {
		t.Fatalf("decoded value = %v (%T), want raw []byte{1,2,3}", v, v)
	}
}

func TestActorController_DeliverDropsMalformedJSON(t *testing.T) {
	actor := newTestActor(false)
	c := NewActorController(newTestManager(), actor, nil)

	c.deliver([]byte(`not json`))

	if _, ok := c.GetIoValue(); ok {
		t.Fatal("GetIoValue: malformed payload should not populate the cache")
	}
}

func TestActorController_ValueCacheReplaysToNewSubscribers(t *testing.T) {
	actor := newTestActor(false)
	c := NewActorController(newTestManager(), actor, nil)

	c.deliver([]byte(`42`))

	var got any
	c.ObserveIoValue(func(v any) { got = v })
	if got != float64(42) {
		t.Fatalf("replayed value = %v, want 42", got)
	}
}

// onAssociateChangeForTest exposes onAssociateChange to this file's tests
// without widening ActorController's real API.
func (c *ActorController) onAssociateChangeForTest(evt event.AssociateEvent) {
	c.onAssociateChange(evt)
}
