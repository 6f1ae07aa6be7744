package ioctrl

import (
	"context"
	"testing"

	"github.com/coaty-io/coaty-go/event"
	"github.com/coaty-io/coaty-go/object"
)

func newTestSource(strategy object.UpdateStrategy, useRaw bool) object.IoSource {
	return object.IoSource{
		IoPoint: object.IoPoint{
			CoatyObject: object.CoatyObject{
				ObjectID:   object.NewObjectID(),
				CoreType:   object.CoreTypeIoSource,
				ObjectType: object.CoreTypeIoSource.CoatyObjectType(),
				Name:       "test-source",
			},
			ValueType:      "coaty.temp",
			UseRawIoValues: useRaw,
		},
		UpdateStrategy: strategy,
	}
}

func TestSourceController_PublishDiscardedWithoutAssociation(t *testing.T) {
	src := newTestSource(object.UpdateStrategyNone, false)
	c := NewSourceController(newTestManager(), src, nil)

	if err := c.Publish(context.Background(), 42); err != nil {
		t.Fatalf("Publish() error = %v, want nil (silently discarded)", err)
	}
	if c.assocCount != 0 {
		t.Fatalf("assocCount = %d, want 0", c.assocCount)
	}
}

func TestSourceController_TracksAssociationCountAndRate(t *testing.T) {
	src := newTestSource(object.UpdateStrategyNone, false)
	c := NewSourceController(newTestManager(), src, nil)

	actor1 := object.NewObjectID()
	actor2 := object.NewObjectID()
	rate := 250

	c.onAssociateChange(event.AssociateEvent{
		SourceID: src.ObjectID, ActorID: actor1, Associated: true, Rate: &rate,
	})
	c.mu.Lock()
	count, r := c.assocCount, c.rate
	c.mu.Unlock()
	if count != 1 || r == nil || *r != 250 {
		t.Fatalf("after one Associate: count=%d rate=%v, want 1 and 250", count, r)
	}

	c.onAssociateChange(event.AssociateEvent{
		SourceID: src.ObjectID, ActorID: actor2, Associated: true, Rate: &rate,
	})
	c.mu.Lock()
	count = c.assocCount
	c.mu.Unlock()
	if count != 2 {
		t.Fatalf("after two Associates: count=%d, want 2", count)
	}

	c.onAssociateChange(event.AssociateEvent{
		SourceID: src.ObjectID, ActorID: actor1, Associated: false,
	})
	c.mu.Lock()
	count = c.assocCount
	c.mu.Unlock()
	if count != 1 {
		t.Fatalf("after one Disassociate: count=%d, want 1", count)
	}

	c.onAssociateChange(event.AssociateEvent{
		SourceID: src.ObjectID, ActorID: actor2, Associated: false,
	})
	c.mu.Lock()
	count, r = c.assocCount, c.rate
	c.mu.Unlock()
	if count != 0 || r != nil {
		t.Fatalf("after last Disassociate: count=%d rate=%v, want 0 and nil", count, r)
	}
}

func TestSourceController_IgnoresEventsForOtherSources(t *testing.T) {
	src := newTestSource(object.UpdateStrategyNone, false)
	c := NewSourceController(newTestManager(), src, nil)

	c.onAssociateChange(event.AssociateEvent{
		SourceID: object.NewObjectID(), ActorID: object.NewObjectID(), Associated: true,
	})

	c.mu.Lock()
	count := c.assocCount
	c.mu.Unlock()
	if count != 0 {
		t.Fatalf("assocCount = %d after an event for a different source, want 0", count)
	}
}

func TestSourceController_PublishEncodesRawRequiresBytes(t *testing.T) {
	src := newTestSource(object.UpdateStrategyNone, true)
	c := NewSourceController(newTestManager(), src, nil)
	c.onAssociateChange(event.AssociateEvent{
		SourceID: src.ObjectID, ActorID: object.NewObjectID(), Associated: true,
	})

	if _, err := c.encode(42); err == nil {
		t.Fatal("encode(non-[]byte) on a useRawIoValues source should error")
	}
	if _, err := c.encode([]byte{1, 2, 3}); err != nil {
		t.Fatalf("encode([]byte) should succeed, got %v", err)
	}
}

func TestSourceController_RebuildsRegulatorOnAssociationChange(t *testing.T) {
	src := newTestSource(object.UpdateStrategySample, false)
	c := NewSourceController(newTestManager(), src, nil)

	rate := 100
	c.onAssociateChange(event.AssociateEvent{
		SourceID: src.ObjectID, ActorID: object.NewObjectID(), Associated: true, Rate: &rate,
	})

	c.mu.Lock()
	_, isSample := c.reg.(*sampleRegulator)
	c.mu.Unlock()
	if !isSample {
		t.Fatalf("regulator = %T, want *sampleRegulator while associated with rate=100", c.reg)
	}

	c.onAssociateChange(event.AssociateEvent{
		SourceID: src.ObjectID, ActorID: object.NewObjectID(), Associated: false,
	})
	c.mu.Lock()
	_, isPassthrough := c.reg.(*passthroughRegulator)
	c.mu.Unlock()
	if !isPassthrough {
		t.Fatalf("regulator = %T, want *passthroughRegulator once unassociated", c.reg)
	}
}
