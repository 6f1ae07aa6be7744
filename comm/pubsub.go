package comm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/event"
	"github.com/coaty-io/coaty-go/object"
)

// encodeTopic renders t using this Manager's namespace, substituting the
// container Identity's Name for its ObjectID in the source-id segment
// when ReadableTopics is enabled (spec §4.1 "Readable-topic mode...
// debugging only", §9 Open Question: left to the operator to avoid
// name collisions in production).
func (m *Manager) encodeTopic(t topic) string {
	t.Namespace = m.opts.Namespace
	if m.opts.ReadableTopics && t.SourceID == m.identity.ObjectID.String() && m.identity.Name != "" {
		t.SourceID = m.identity.Name
	}
	return encodeTopic(t)
}

// --- Advertise / Deadvertise ---

// PublishAdvertise publishes evt as a one-shot, at-most-once
// fire-and-forget envelope keyed by the object's coreType and
// objectType (spec §4.1).
func (m *Manager) PublishAdvertise(ctx context.Context, evt event.AdvertiseEvent) error {
	evt.Base.SourceID = m.identity.ObjectID
	if err := evt.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("comm: marshal Advertise: %w", err)
	}
	t := m.encodeTopic(topic{EventType: event.TypeAdvertise, SourceID: evt.Base.SourceID.String()})
	return m.publish(ctx, t, payload, 1, false)
}

// ObserveAdvertiseWithCoreType returns a lazy, restartable subscription
// delivering every Advertise whose object has coreType. The broker
// subscription is installed on the first observer and torn down when
// the last detaches.
func (m *Manager) ObserveAdvertiseWithCoreType(coreType object.CoreType, fn func(event.AdvertiseEvent)) *Subscription {
	key := string(coreType)
	return m.advertiseCoreHub.subscribe(key, func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeAdvertise, "", "", "")
		return m.subscribeFilter(filter)
	}, fn)
}

// ObserveAdvertiseWithObjectType returns the same subscription shape as
// ObserveAdvertiseWithCoreType, additionally filtered by objectType.
// Filtering happens locally: the wire subscription is the same
// Advertise wildcard filter ObserveAdvertiseWithCoreType uses, and
// objectType discrimination adds no distinct wire filter.
func (m *Manager) ObserveAdvertiseWithObjectType(coreType object.CoreType, objectType string, fn func(event.AdvertiseEvent)) *Subscription {
	key := advertiseFilterTag(string(coreType), objectType)
	return m.advertiseTypeHub.subscribe(key, func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeAdvertise, "", "", "")
		return m.subscribeFilter(filter)
	}, fn)
}

// PublishDeadvertise retracts objectIDs.
func (m *Manager) PublishDeadvertise(ctx context.Context, evt event.DeadvertiseEvent) error {
	evt.Base.SourceID = m.identity.ObjectID
	if err := evt.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("comm: marshal Deadvertise: %w", err)
	}
	t := m.encodeTopic(topic{EventType: event.TypeDeadvertise, SourceID: evt.Base.SourceID.String()})
	return m.publish(ctx, t, payload, 1, false)
}

// ObserveDeadvertise delivers every Deadvertise seen by this container,
// used by the IO Router to stop managing a node without waiting for the
// publishing container to go offline.
func (m *Manager) ObserveDeadvertise(fn func(event.DeadvertiseEvent)) *Subscription {
	return m.deadvertiseHub.subscribe("", func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeDeadvertise, "", "", "")
		return m.subscribeFilter(filter)
	}, fn)
}

// --- Channel ---

// PublishChannel broadcasts obj on the named channel.
func (m *Manager) PublishChannel(ctx context.Context, channelID string, obj object.Object) error {
	evt := event.ChannelEvent{Base: event.Base{SourceID: m.identity.ObjectID}, ChannelID: channelID, Object: obj}
	if err := evt.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("comm: marshal Channel: %w", err)
	}
	t := m.encodeTopic(topic{EventType: event.TypeChannel, SourceID: evt.Base.SourceID.String(), FilterTag: channelID})
	return m.publish(ctx, t, payload, 0, false)
}

// ObserveChannel delivers every Channel event published on channelID.
func (m *Manager) ObserveChannel(channelID string, fn func(event.ChannelEvent)) *Subscription {
	return m.channelHub.subscribe(channelID, func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeChannel, "", "", channelID)
		return m.subscribeFilter(filter)
	}, fn)
}

// --- Discover / Resolve ---

// PublishDiscover publishes evt and delivers every correlated Resolve to
// onResolve. The returned Subscription never tears down on its own
// (spec §4.1 "does not terminate on its own"); callers apply a timeout
// and call Unsubscribe explicitly.
func (m *Manager) PublishDiscover(ctx context.Context, evt event.DiscoverEvent, onResolve func(event.ResolveEvent)) (*Subscription, error) {
	evt.Base.SourceID = m.identity.ObjectID
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	corrID := event.NewCorrelationID()
	evt.Base.CorrelationID = &corrID
	m.corr.register(corrID)

	sub := m.resolveHub.subscribe(corrID.String(), func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeResolve, "", corrID.String(), "")
		teardown := m.subscribeFilter(filter)
		return func() {
			teardown()
			m.corr.dispose(corrID)
		}
	}, onResolve)

	payload, err := json.Marshal(evt)
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("comm: marshal Discover: %w", err)
	}
	t := m.encodeTopic(topic{EventType: event.TypeDiscover, SourceID: evt.Base.SourceID.String()})
	if err := m.publish(ctx, t, payload, 0, false); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// ObserveDiscover delivers every Discover event; the receiver replies by
// calling evt.Resolve at most once.
func (m *Manager) ObserveDiscover(fn func(event.DiscoverEvent)) *Subscription {
	return m.discoverHub.subscribe("", func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeDiscover, "", "", "")
		return m.subscribeFilter(filter)
	}, fn)
}

// --- Query / Retrieve ---

// PublishQuery has the same streaming semantics as PublishDiscover, with
// Retrieve responses.
func (m *Manager) PublishQuery(ctx context.Context, evt event.QueryEvent, onRetrieve func(event.RetrieveEvent)) (*Subscription, error) {
	evt.Base.SourceID = m.identity.ObjectID
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	corrID := event.NewCorrelationID()
	evt.Base.CorrelationID = &corrID
	m.corr.register(corrID)

	sub := m.retrieveHub.subscribe(corrID.String(), func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeRetrieve, "", corrID.String(), "")
		teardown := m.subscribeFilter(filter)
		return func() {
			teardown()
			m.corr.dispose(corrID)
		}
	}, onRetrieve)

	payload, err := json.Marshal(evt)
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("comm: marshal Query: %w", err)
	}
	t := m.encodeTopic(topic{EventType: event.TypeQuery, SourceID: evt.Base.SourceID.String()})
	if err := m.publish(ctx, t, payload, 0, false); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// ObserveQuery delivers every Query event; the receiver replies by
// calling evt.Retrieve at most once.
func (m *Manager) ObserveQuery(fn func(event.QueryEvent)) *Subscription {
	return m.queryHub.subscribe("", func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeQuery, "", "", "")
		return m.subscribeFilter(filter)
	}, fn)
}

// --- Update / Complete ---

// PublishUpdate is correlated with Complete responses.
func (m *Manager) PublishUpdate(ctx context.Context, evt event.UpdateEvent, onComplete func(event.CompleteEvent)) (*Subscription, error) {
	evt.Base.SourceID = m.identity.ObjectID
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	corrID := event.NewCorrelationID()
	evt.Base.CorrelationID = &corrID
	m.corr.register(corrID)

	sub := m.completeHub.subscribe(corrID.String(), func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeComplete, "", corrID.String(), "")
		teardown := m.subscribeFilter(filter)
		return func() {
			teardown()
			m.corr.dispose(corrID)
		}
	}, onComplete)

	payload, err := json.Marshal(evt)
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("comm: marshal Update: %w", err)
	}
	t := m.encodeTopic(topic{EventType: event.TypeUpdate, SourceID: evt.Base.SourceID.String()})
	if err := m.publish(ctx, t, payload, 0, false); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// ObserveUpdate delivers every Update event; the receiver replies by
// calling evt.Complete at most once.
func (m *Manager) ObserveUpdate(fn func(event.UpdateEvent)) *Subscription {
	return m.updateHub.subscribe("", func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeUpdate, "", "", "")
		return m.subscribeFilter(filter)
	}, fn)
}

// --- Call / Return ---

// PublishCall invokes operation, correlated with Return responses.
func (m *Manager) PublishCall(ctx context.Context, evt event.CallEvent, onReturn func(event.ReturnEvent)) (*Subscription, error) {
	evt.Base.SourceID = m.identity.ObjectID
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	corrID := event.NewCorrelationID()
	evt.Base.CorrelationID = &corrID
	m.corr.register(corrID)

	sub := m.returnHub.subscribe(corrID.String(), func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeReturn, "", corrID.String(), "")
		teardown := m.subscribeFilter(filter)
		return func() {
			teardown()
			m.corr.dispose(corrID)
		}
	}, onReturn)

	payload, err := json.Marshal(evt)
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("comm: marshal Call: %w", err)
	}
	t := m.encodeTopic(topic{
		EventType: event.TypeCall,
		SourceID:  evt.Base.SourceID.String(),
		FilterTag: evt.Operation,
	})
	if err := m.publish(ctx, t, payload, 0, false); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// ObserveCall delivers every Call event invoking operation; the
// receiver replies by calling evt.Return at most once.
func (m *Manager) ObserveCall(operation string, fn func(event.CallEvent)) *Subscription {
	return m.callHub.subscribe(operation, func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeCall, "", "", operation)
		return m.subscribeFilter(filter)
	}, fn)
}

// --- IoValue ---

// PublishIoValue publishes raw on sourceID's negotiated IO-value topic.
// Encoding (raw bytes vs. JSON) is the IO Source controller's
// responsibility (§4.4); the Communication Manager only moves bytes.
func (m *Manager) PublishIoValue(ctx context.Context, sourceID uuid.UUID, raw []byte) error {
	t := m.encodeTopic(topic{EventType: event.TypeIoValue, SourceID: sourceID.String()})
	return m.publish(ctx, t, raw, 0, false)
}

// ObserveIoValue delivers every IoValue published for sourceID. The
// hub behind it is a replay hub: it keeps the last value per source and
// delivers it immediately to each new subscriber. The IO Actor
// controller wraps this subscription with its own value cache.
func (m *Manager) ObserveIoValue(sourceID uuid.UUID, fn func(event.IoValueEvent)) *Subscription {
	key := sourceID.String()
	return m.ioValueHub.subscribe(key, func() func() {
		filter := m.encodeTopic(topic{EventType: event.TypeIoValue, SourceID: sourceID.String()})
		return m.subscribeFilter(filter)
	}, fn)
}

// --- IoState ---

// SetIoState publishes the current {hasAssociations, updateRate} tuple
// for endpointID. Called by the IO Router/controllers whenever an
// association changes; ObserveIoState subscribers receive it
// immediately plus every subsequent update.
func (m *Manager) SetIoState(endpointID uuid.UUID, state IoState) {
	m.ioStateHub.publish(endpointID.String(), state)
}

// ObserveIoState returns a hot observable carrying endpointID's current
// {hasAssociations, updateRate} tuple; a new subscriber receives the
// current value immediately if one has been set.
func (m *Manager) ObserveIoState(endpointID uuid.UUID, fn func(IoState)) *Subscription {
	return m.ioStateHub.subscribe(endpointID.String(), nil, fn)
}

// --- Associate ---

// PublishAssociate publishes an IO Router's Associate/Disassociate
// notification, fire-and-forget like Advertise (spec §4.2). The
// publishing identity is the router's own container, not
// evt.SourceID/evt.ActorID (those name the IO endpoints the
// notification concerns, not its publisher).
func (m *Manager) PublishAssociate(ctx context.Context, evt event.AssociateEvent) error {
	evt.Base.SourceID = m.identity.ObjectID
	if err := evt.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("comm: marshal Associate: %w", err)
	}
	t := m.encodeTopic(topic{EventType: event.TypeAssociate, SourceID: evt.Base.SourceID.String()})
	return m.publish(ctx, t, payload, 1, false)
}

// ObserveAssociate delivers every Associate/Disassociate notification
// seen by this container. IO Source and IO Actor controllers each
// filter locally by their own endpoint ID — the wire subscription is a
// single wildcard filter shared by every observer, exactly like
// ObserveDeadvertise.
func (m *Manager) ObserveAssociate(fn func(event.AssociateEvent)) *Subscription {
	return m.associateHub.subscribe("", func() func() {
		filter := subscriptionFilter(m.opts.Namespace, event.TypeAssociate, "", "", "")
		return m.subscribeFilter(filter)
	}, fn)
}

// --- Raw ---

// PublishRaw publishes payload directly on topicSuffix, bypassing the
// §4.1 Coaty topic grammar entirely. Used for binding-native traffic,
// e.g. an IoSource's externalRoute (spec §9 Open Question on
// external-topic routing precedence: a source with ExternalRoute set
// bypasses router-assigned topic allocation and is published here
// rather than through PublishIoValue).
func (m *Manager) PublishRaw(ctx context.Context, topicSuffix string, payload []byte) error {
	return m.publish(ctx, topicSuffix, payload, 0, false)
}

// ObserveRaw delivers every Raw message received on exactly
// topicSuffix. Unlike the grammar-aware observers, no MQTT wildcard
// expansion is performed: topicSuffix is subscribed verbatim.
func (m *Manager) ObserveRaw(topicSuffix string, fn func(event.RawEvent)) *Subscription {
	return m.rawHub.subscribe(topicSuffix, func() func() {
		return m.subscribeFilter(topicSuffix)
	}, fn)
}

// IoStateSnapshot returns endpointID's last published state, if any.
func (m *Manager) IoStateSnapshot(endpointID uuid.UUID) (IoState, bool) {
	return m.ioStateHub.snapshot(endpointID.String())
}
