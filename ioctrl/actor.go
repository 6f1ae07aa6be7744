package ioctrl

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/comm"
	"github.com/coaty-io/coaty-go/event"
	"github.com/coaty-io/coaty-go/object"
)

// ActorController is the IO Actor controller of spec §4.3: it maintains
// the actor's association state and a replay-caching IoValue feed,
// decoding inbound payloads per the actor's UseRawIoValues setting.
type ActorController struct {
	mgr    *comm.Manager
	actor  object.IoActor
	logger *slog.Logger

	mu          sync.Mutex
	started     bool
	assocSub    *comm.Subscription
	valueSubs   map[uuid.UUID]*comm.Subscription // sourceId -> active IoValue/Raw subscription
	valueTopics map[uuid.UUID]string             // sourceId -> ExternalRoute, "" for the default topic

	lastAssociated bool
	hasLastValue   bool
	lastValue      any

	assocHub *fanout[bool]
	valueHub *fanout[any]
}

// NewActorController creates a controller for actor, bound to mgr.
// logger defaults to slog.Default() if nil.
func NewActorController(mgr *comm.Manager, actor object.IoActor, logger *slog.Logger) *ActorController {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActorController{
		mgr:         mgr,
		actor:       actor,
		logger:      logger,
		valueSubs:   make(map[uuid.UUID]*comm.Subscription),
		valueTopics: make(map[uuid.UUID]string),
		assocHub:    newFanout[bool](),
		valueHub:    newFanout[any](),
	}
}

// Start subscribes to this actor's Associate/Disassociate notifications,
// attaching and detaching the underlying IoValue feed for each
// associated source as associations come and go. Calling Start twice is
// a no-op.
func (c *ActorController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	c.assocSub = c.mgr.ObserveAssociate(c.onAssociateChange)
	return nil
}

// Stop unsubscribes from every feed this controller established.
func (c *ActorController) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	if c.assocSub != nil {
		c.assocSub.Unsubscribe()
		c.assocSub = nil
	}
	for id, sub := range c.valueSubs {
		sub.Unsubscribe()
		delete(c.valueSubs, id)
	}
	c.valueTopics = make(map[uuid.UUID]string)
	return nil
}

func (c *ActorController) onAssociateChange(evt event.AssociateEvent) {
	if evt.ActorID != c.actor.ObjectID {
		return
	}

	c.mu.Lock()
	if evt.Associated {
		if _, already := c.valueSubs[evt.SourceID]; !already {
			c.valueTopics[evt.SourceID] = evt.Topic
			c.valueSubs[evt.SourceID] = c.subscribeSourceLocked(evt.SourceID, evt.Topic)
		}
	} else {
		if sub, ok := c.valueSubs[evt.SourceID]; ok {
			sub.Unsubscribe()
			delete(c.valueSubs, evt.SourceID)
			delete(c.valueTopics, evt.SourceID)
		}
	}
	associated := len(c.valueSubs) > 0
	changed := associated != c.lastAssociated
	c.lastAssociated = associated
	c.mu.Unlock()

	if changed {
		c.assocHub.publish(associated)
	}
}

// subscribeSourceLocked wires the underlying feed for one associated
// source: the router-negotiated IoValue topic by default, or the
// source's own ExternalRoute when the router reported one (spec §9 Open
// Question on external-topic routing precedence — the actor bypasses
// the default topic exactly like the source bypasses it on publish).
func (c *ActorController) subscribeSourceLocked(sourceID uuid.UUID, topic string) *comm.Subscription {
	if topic != "" {
		return c.mgr.ObserveRaw(topic, func(evt event.RawEvent) {
			c.deliver(evt.Payload)
		})
	}
	return c.mgr.ObserveIoValue(sourceID, func(evt event.IoValueEvent) {
		c.deliver(evt.Raw)
	})
}

// deliver decodes raw per the actor's UseRawIoValues setting and fans
// the result out to observers, caching it for GetIoValue/new
// subscribers (§4.3: "last-delivered value is replayed to each new
// subscriber. Cache survives reassociation"). Decode errors are dropped
// with a warning, never surfaced to observers.
func (c *ActorController) deliver(raw []byte) {
	var val any
	if c.actor.UseRawIoValues {
		val = raw
	} else {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			c.logger.Warn("ioctrl: dropping malformed IoValue", "actorId", c.actor.ObjectID, "error", err)
			return
		}
		val = decoded
	}

	c.mu.Lock()
	c.lastValue = val
	c.hasLastValue = true
	c.mu.Unlock()

	c.valueHub.publish(val)
}

// ObserveAssociation delivers the actor's current association state
// immediately, then every subsequent distinct change (§4.3: "distinct
// boolean; starts with current association count > 0").
func (c *ActorController) ObserveAssociation(fn func(bool)) *Subscription {
	c.mu.Lock()
	current := c.lastAssociated
	c.mu.Unlock()

	sub := c.assocHub.subscribe(fn)
	deliverSafely(fn, current)
	return sub
}

// ObserveIoValue delivers the last cached value immediately (if any),
// then every subsequent decoded value, including across
// disassociation/reassociation.
func (c *ActorController) ObserveIoValue(fn func(any)) *Subscription {
	c.mu.Lock()
	v, ok := c.lastValue, c.hasLastValue
	c.mu.Unlock()

	sub := c.valueHub.subscribe(fn)
	if ok {
		deliverSafely(fn, v)
	}
	return sub
}

// GetIoValue returns a synchronous snapshot of the cached value.
func (c *ActorController) GetIoValue() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastValue, c.hasLastValue
}
