package comm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/event"
	"github.com/coaty-io/coaty-go/object"
)

const replyTimeout = 10 * time.Second

var errBadCorrelation = errors.New("comm: missing or malformed correlationId segment")

// handleMessage is the sole entry point for inbound broker messages. It
// decodes the topic, drops anything malformed with a warning (spec
// §4.1 "malformed inbound payloads are dropped with a warning; they
// never propagate to observers"), and fans the decoded event out to the
// matching hub.
func (m *Manager) handleMessage(topicStr string, payload []byte) {
	if !strings.HasPrefix(topicStr, protocolName+"/") {
		// Not a Coaty-grammar topic: this is externalRoute/binding-native
		// traffic, Coaty's Raw escape hatch (spec §9 Open Question on
		// external-topic routing precedence).
		m.rawHub.publish(topicStr, event.RawEvent{TopicSuffix: topicStr, Payload: payload})
		return
	}

	t, err := decodeTopic(topicStr)
	if err != nil {
		m.logger.Warn("comm: dropping message on malformed topic", "topic", topicStr, "error", err)
		return
	}

	sourceID, ok := parseUUIDSegment(t.SourceID)
	if !ok {
		m.logger.Warn("comm: dropping message with non-UUID source segment", "topic", topicStr)
		return
	}

	switch t.EventType {
	case event.TypeAdvertise:
		m.handleAdvertise(sourceID, payload)
	case event.TypeDeadvertise:
		m.handleDeadvertise(sourceID, payload)
	case event.TypeChannel:
		m.handleChannel(t, sourceID, payload)
	case event.TypeDiscover:
		m.handleDiscover(t, sourceID, payload)
	case event.TypeResolve:
		m.handleResolve(t, sourceID, payload)
	case event.TypeQuery:
		m.handleQuery(t, sourceID, payload)
	case event.TypeRetrieve:
		m.handleRetrieve(t, sourceID, payload)
	case event.TypeUpdate:
		m.handleUpdate(t, sourceID, payload)
	case event.TypeComplete:
		m.handleComplete(t, sourceID, payload)
	case event.TypeCall:
		m.handleCall(t, sourceID, payload)
	case event.TypeReturn:
		m.handleReturn(t, sourceID, payload)
	case event.TypeIoValue:
		m.ioValueHub.publish(t.SourceID, event.IoValueEvent{
			Base: event.Base{SourceID: sourceID},
			Raw:  payload,
		})
	case event.TypeAssociate:
		m.handleAssociate(sourceID, payload)
	default:
		m.logger.Warn("comm: dropping message of unknown event type", "topic", topicStr)
	}
}

func (m *Manager) warnDecode(kind string, err error) {
	m.logger.Warn("comm: dropping malformed "+kind+" payload", "error", err)
}

func (m *Manager) handleAdvertise(sourceID uuid.UUID, payload []byte) {
	obj, err := object.Decode(payload)
	if err != nil {
		m.warnDecode("Advertise", err)
		return
	}
	adv := event.AdvertiseEvent{Base: event.Base{SourceID: sourceID}, Object: obj}
	m.advertiseCoreHub.publish(string(obj.Base().CoreType), adv)
	m.advertiseTypeHub.publish(advertiseFilterTag(string(obj.Base().CoreType), obj.Base().ObjectType), adv)
}

// handleDeadvertise decodes a Deadvertise straight into the public
// event.DeadvertiseEvent, which has no unexported fields to lose in the
// round trip.
func (m *Manager) handleDeadvertise(sourceID uuid.UUID, payload []byte) {
	var dad event.DeadvertiseEvent
	if err := json.Unmarshal(payload, &dad); err != nil {
		m.warnDecode("Deadvertise", err)
		return
	}
	dad.Base.SourceID = sourceID
	m.deadvertiseHub.publish("", dad)
}

func (m *Manager) handleAssociate(sourceID uuid.UUID, payload []byte) {
	var a event.AssociateEvent
	if err := json.Unmarshal(payload, &a); err != nil {
		m.warnDecode("Associate", err)
		return
	}
	a.Base.SourceID = sourceID
	m.associateHub.publish("", a)
}

func (m *Manager) handleChannel(t topic, sourceID uuid.UUID, payload []byte) {
	obj, err := object.Decode(payload)
	if err != nil {
		m.warnDecode("Channel", err)
		return
	}
	ch := event.ChannelEvent{Base: event.Base{SourceID: sourceID}, ChannelID: t.FilterTag, Object: obj}
	m.channelHub.publish(t.FilterTag, ch)
}

func (m *Manager) handleDiscover(t topic, sourceID uuid.UUID, payload []byte) {
	var d event.DiscoverEvent
	if err := json.Unmarshal(payload, &d); err != nil {
		m.warnDecode("Discover", err)
		return
	}
	d.Base.SourceID = sourceID
	corrID := sourceID
	if d.Base.CorrelationID != nil {
		corrID = *d.Base.CorrelationID
	}
	d = d.WithResolver(func(r event.ResolveEvent) error {
		r.Base.SourceID = m.identity.ObjectID
		cid := corrID
		r.Base.CorrelationID = &cid
		if err := r.Validate(); err != nil {
			return err
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		rt := m.encodeTopic(topic{
			EventType:     event.TypeResolve,
			SourceID:      m.identity.ObjectID.String(),
			CorrelationID: cid.String(),
		})
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		return m.publish(ctx, rt, payload, 0, false)
	})
	m.discoverHub.publish("", d)
}

func (m *Manager) handleResolve(t topic, sourceID uuid.UUID, payload []byte) {
	var r event.ResolveEvent
	if err := json.Unmarshal(payload, &r); err != nil {
		m.warnDecode("Resolve", err)
		return
	}
	r.Base.SourceID = sourceID
	corrID, ok := parseUUIDSegment(t.CorrelationID)
	if !ok {
		m.warnDecode("Resolve", errBadCorrelation)
		return
	}
	if !m.corr.admit(corrID, sourceID) {
		return
	}
	r.Base.CorrelationID = &corrID
	m.resolveHub.publish(t.CorrelationID, r)
}

func (m *Manager) handleQuery(t topic, sourceID uuid.UUID, payload []byte) {
	var q event.QueryEvent
	if err := json.Unmarshal(payload, &q); err != nil {
		m.warnDecode("Query", err)
		return
	}
	q.Base.SourceID = sourceID
	corrID := sourceID
	if q.Base.CorrelationID != nil {
		corrID = *q.Base.CorrelationID
	}
	q = q.WithRetriever(func(r event.RetrieveEvent) error {
		r.Base.SourceID = m.identity.ObjectID
		cid := corrID
		r.Base.CorrelationID = &cid
		if err := r.Validate(); err != nil {
			return err
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		rt := m.encodeTopic(topic{
			EventType:     event.TypeRetrieve,
			SourceID:      m.identity.ObjectID.String(),
			CorrelationID: cid.String(),
		})
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		return m.publish(ctx, rt, payload, 0, false)
	})
	m.queryHub.publish("", q)
}

func (m *Manager) handleRetrieve(t topic, sourceID uuid.UUID, payload []byte) {
	var r event.RetrieveEvent
	if err := json.Unmarshal(payload, &r); err != nil {
		m.warnDecode("Retrieve", err)
		return
	}
	r.Base.SourceID = sourceID
	corrID, ok := parseUUIDSegment(t.CorrelationID)
	if !ok {
		m.warnDecode("Retrieve", errBadCorrelation)
		return
	}
	if !m.corr.admit(corrID, sourceID) {
		return
	}
	r.Base.CorrelationID = &corrID
	m.retrieveHub.publish(t.CorrelationID, r)
}

func (m *Manager) handleUpdate(t topic, sourceID uuid.UUID, payload []byte) {
	var u event.UpdateEvent
	if err := json.Unmarshal(payload, &u); err != nil {
		m.warnDecode("Update", err)
		return
	}
	u.Base.SourceID = sourceID
	corrID := sourceID
	if u.Base.CorrelationID != nil {
		corrID = *u.Base.CorrelationID
	}
	u = u.WithCompleter(func(c event.CompleteEvent) error {
		c.Base.SourceID = m.identity.ObjectID
		cid := corrID
		c.Base.CorrelationID = &cid
		if err := c.Validate(); err != nil {
			return err
		}
		payload, err := json.Marshal(c)
		if err != nil {
			return err
		}
		rt := m.encodeTopic(topic{
			EventType:     event.TypeComplete,
			SourceID:      m.identity.ObjectID.String(),
			CorrelationID: cid.String(),
		})
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		return m.publish(ctx, rt, payload, 0, false)
	})
	m.updateHub.publish("", u)
}

func (m *Manager) handleComplete(t topic, sourceID uuid.UUID, payload []byte) {
	var c event.CompleteEvent
	if err := json.Unmarshal(payload, &c); err != nil {
		m.warnDecode("Complete", err)
		return
	}
	c.Base.SourceID = sourceID
	corrID, ok := parseUUIDSegment(t.CorrelationID)
	if !ok {
		m.warnDecode("Complete", errBadCorrelation)
		return
	}
	if !m.corr.admit(corrID, sourceID) {
		return
	}
	c.Base.CorrelationID = &corrID
	m.completeHub.publish(t.CorrelationID, c)
}

func (m *Manager) handleCall(t topic, sourceID uuid.UUID, payload []byte) {
	var c event.CallEvent
	if err := json.Unmarshal(payload, &c); err != nil {
		m.warnDecode("Call", err)
		return
	}
	c.Base.SourceID = sourceID
	c.Operation = t.FilterTag
	corrID := sourceID
	if c.Base.CorrelationID != nil {
		corrID = *c.Base.CorrelationID
	}
	c = c.WithReturner(func(r event.ReturnEvent) error {
		r.Base.SourceID = m.identity.ObjectID
		cid := corrID
		r.Base.CorrelationID = &cid
		if err := r.Validate(); err != nil {
			return err
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		rt := m.encodeTopic(topic{
			EventType:     event.TypeReturn,
			SourceID:      m.identity.ObjectID.String(),
			CorrelationID: cid.String(),
		})
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		return m.publish(ctx, rt, payload, 0, false)
	})
	m.callHub.publish(t.FilterTag, c)
}

func (m *Manager) handleReturn(t topic, sourceID uuid.UUID, payload []byte) {
	var r event.ReturnEvent
	if err := json.Unmarshal(payload, &r); err != nil {
		m.warnDecode("Return", err)
		return
	}
	r.Base.SourceID = sourceID
	corrID, ok := parseUUIDSegment(t.CorrelationID)
	if !ok {
		m.warnDecode("Return", errBadCorrelation)
		return
	}
	if !m.corr.admit(corrID, sourceID) {
		return
	}
	r.Base.CorrelationID = &corrID
	m.returnHub.publish(t.CorrelationID, r)
}
