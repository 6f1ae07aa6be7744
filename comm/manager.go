package comm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/event"
	"github.com/coaty-io/coaty-go/object"
)

// Manager is the Communication Manager: the sole owner of a container's
// broker connection and subscription state (spec §4.1). One Manager
// serves one container.
type Manager struct {
	opts     Options
	identity *object.Identity

	mu sync.Mutex
	br broker

	sm     *stateMachine
	outbox *outbox
	corr   *correlator

	subsMu   sync.Mutex
	subs     map[string]bool // desired MQTT subscription filters, resubscribed on reconnect
	qosByTag map[string]byte

	advertiseCoreHub *hub[event.AdvertiseEvent]
	advertiseTypeHub *hub[event.AdvertiseEvent]
	channelHub       *hub[event.ChannelEvent]
	deadvertiseHub   *hub[event.DeadvertiseEvent]
	discoverHub      *hub[event.DiscoverEvent]
	queryHub         *hub[event.QueryEvent]
	updateHub        *hub[event.UpdateEvent]
	callHub          *hub[event.CallEvent]
	resolveHub       *hub[event.ResolveEvent]
	retrieveHub      *hub[event.RetrieveEvent]
	completeHub      *hub[event.CompleteEvent]
	returnHub        *hub[event.ReturnEvent]
	ioValueHub       *replayHub[event.IoValueEvent]
	ioStateHub       *replayHub[IoState]
	rawHub           *hub[event.RawEvent]
	associateHub     *hub[event.AssociateEvent]

	logger *slog.Logger
}

// IoState is the value carried by observeIoState: whether the endpoint
// currently has at least one association and, if so, its cumulative
// update rate (spec §4.1 "observeIoState").
type IoState struct {
	HasAssociations bool
	UpdateRate      *int
}

// New creates a Manager for identity, which is advertised on Start and
// deadvertised on Stop. The Manager does not connect until Start is
// called.
func New(identity *object.Identity, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		opts:     opts,
		identity: identity,
		sm:       newStateMachine(),
		outbox:   newOutbox(opts.OfflineBufferSize, opts.Logger),
		corr:     newCorrelator(),
		subs:     make(map[string]bool),
		qosByTag: make(map[string]byte),

		advertiseCoreHub: newHub[event.AdvertiseEvent](),
		advertiseTypeHub: newHub[event.AdvertiseEvent](),
		channelHub:       newHub[event.ChannelEvent](),
		deadvertiseHub:   newHub[event.DeadvertiseEvent](),
		discoverHub:      newHub[event.DiscoverEvent](),
		queryHub:         newHub[event.QueryEvent](),
		updateHub:        newHub[event.UpdateEvent](),
		callHub:          newHub[event.CallEvent](),
		resolveHub:       newHub[event.ResolveEvent](),
		retrieveHub:      newHub[event.RetrieveEvent](),
		completeHub:      newHub[event.CompleteEvent](),
		returnHub:        newHub[event.ReturnEvent](),
		ioValueHub:       newReplayHub[event.IoValueEvent](),
		ioStateHub:       newReplayHub[IoState](),
		rawHub:           newHub[event.RawEvent](),
		associateHub:     newHub[event.AssociateEvent](),

		logger: opts.Logger,
	}
}

// State reports the Manager's current connection state.
func (m *Manager) State() State {
	return m.sm.get()
}

// Identity returns the container Identity this Manager advertises.
func (m *Manager) Identity() *object.Identity {
	return m.identity
}

// Start connects to the broker, publishes an Identity Advertise, and
// transitions to Online on first successful connect. Calling Start more
// than once is a no-op once past Initial.
func (m *Manager) Start(ctx context.Context) error {
	if m.sm.get() != StateInitial {
		return nil
	}
	if err := m.sm.transition(StateStarting); err != nil {
		return err
	}

	willTopic := m.encodeTopic(topic{
		EventType: event.TypeDeadvertise,
		SourceID:  m.identity.ObjectID.String(),
	})
	willPayload, _ := json.Marshal(event.DeadvertiseEvent{
		Base:      event.Base{SourceID: m.identity.ObjectID},
		ObjectIDs: []uuid.UUID{m.identity.ObjectID},
	})

	clientID := fmt.Sprintf("%s-%s", m.opts.ClientIDPrefix, m.identity.ObjectID.String())

	br, err := connectBroker(ctx, dialOptions{
		BrokerURL:   m.opts.BrokerURL,
		ClientID:    clientID,
		Username:    m.opts.Username,
		Password:    m.opts.Password,
		KeepAlive:   m.opts.KeepAliveSec,
		WillTopic:   willTopic,
		WillPayload: willPayload,
		Logger:      m.logger,
		OnOnline: func() {
			m.onConnectionUp(ctx)
		},
		OnOffline: func(err error) {
			m.logger.Warn("comm: connection error", "error", err)
			_ = m.sm.transition(StateOffline)
		},
		OnMessage: m.handleMessage,
	})
	if err != nil {
		return fmt.Errorf("comm: connect: %w", err)
	}

	m.mu.Lock()
	m.br = br
	m.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, defaultAwaitConnectionTimeout)
	defer cancel()
	if err := br.AwaitConnection(connCtx); err != nil {
		m.logger.Warn("comm: initial connection timed out, will retry in background", "error", err)
	}

	return nil
}

// onConnectionUp runs on every (re-)connect: it resubscribes every
// desired filter (autopaho does not do this automatically), drains the
// offline outbox, transitions to Online, and publishes the Identity
// Advertise.
func (m *Manager) onConnectionUp(ctx context.Context) {
	m.resubscribeAll(ctx)

	wasOffline := m.sm.get() == StateOffline
	if err := m.sm.transition(StateOnline); err != nil {
		m.logger.Error("comm: state transition failed", "error", err)
		return
	}
	if wasOffline {
		m.logger.Info("comm: reconnected, draining offline buffer", "buffered", m.outbox.len())
	}
	m.drainOutbox(ctx)

	adv := event.AdvertiseEvent{
		Base:   event.Base{SourceID: m.identity.ObjectID},
		Object: m.identity,
	}
	if err := m.PublishAdvertise(ctx, adv); err != nil {
		m.logger.Warn("comm: identity advertise failed", "error", err)
	}
}

// Stop publishes a Deadvertise for the container Identity, drains the
// outbox up to StopGracePeriod, then disconnects and transitions to
// Stopped. Calling Stop more than once is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	cur := m.sm.get()
	if cur == StateStopped || cur == StateStopping {
		return nil
	}
	if err := m.sm.transition(StateStopping); err != nil {
		return err
	}

	m.mu.Lock()
	br := m.br
	m.mu.Unlock()

	if br != nil {
		drainCtx, cancel := context.WithTimeout(ctx, m.opts.StopGracePeriod)
		m.drainOutbox(drainCtx)
		cancel()

		dead := event.DeadvertiseEvent{
			Base:      event.Base{SourceID: m.identity.ObjectID},
			ObjectIDs: []uuid.UUID{m.identity.ObjectID},
		}
		payload, _ := json.Marshal(dead)
		t := m.encodeTopic(topic{EventType: event.TypeDeadvertise, SourceID: m.identity.ObjectID.String()})
		pubCtx, cancel := context.WithTimeout(ctx, m.opts.StopGracePeriod)
		_, _ = br.Publish(pubCtx, pahoPublish(t, payload, 1, true))
		cancel()

		disCtx, cancel := context.WithTimeout(ctx, m.opts.StopGracePeriod)
		_ = br.Disconnect(disCtx)
		cancel()
	}

	return m.sm.transition(StateStopped)
}

// resubscribeAll re-issues every desired MQTT subscription filter,
// called on every connect/reconnect since autopaho (like the teacher's
// Publisher) does not automatically resubscribe after a reconnection.
func (m *Manager) resubscribeAll(ctx context.Context) {
	m.subsMu.Lock()
	filters := make([]string, 0, len(m.subs))
	for f := range m.subs {
		filters = append(filters, f)
	}
	m.subsMu.Unlock()

	for _, f := range filters {
		if err := m.rawSubscribe(ctx, f); err != nil {
			m.logger.Error("comm: resubscribe failed", "filter", f, "error", err)
		}
	}
}

// subscribeFilter adds filter to the desired-subscriptions set and
// issues the MQTT SUBSCRIBE immediately if currently connected. Returns
// a teardown func that removes the filter and unsubscribes.
func (m *Manager) subscribeFilter(filter string) func() {
	m.subsMu.Lock()
	m.subs[filter] = true
	m.subsMu.Unlock()

	if m.sm.get() == StateOnline {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := m.rawSubscribe(ctx, filter); err != nil {
			m.logger.Error("comm: subscribe failed", "filter", filter, "error", err)
		}
		cancel()
	}

	return func() {
		m.subsMu.Lock()
		delete(m.subs, filter)
		m.subsMu.Unlock()

		m.mu.Lock()
		br := m.br
		m.mu.Unlock()
		if br == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := br.Unsubscribe(ctx, pahoUnsubscribe(filter)); err != nil {
			m.logger.Warn("comm: unsubscribe failed", "filter", filter, "error", err)
		}
	}
}

func (m *Manager) rawSubscribe(ctx context.Context, filter string) error {
	m.mu.Lock()
	br := m.br
	m.mu.Unlock()
	if br == nil {
		return fmt.Errorf("comm: not connected")
	}
	_, err := br.Subscribe(ctx, pahoSubscribe(filter))
	return err
}

// publish writes an envelope to the wire if Online, or buffers it
// otherwise (spec §4.1 "Failure semantics").
func (m *Manager) publish(ctx context.Context, t string, payload []byte, qos byte, retain bool) error {
	if !m.sm.get().canPublishDirectly() {
		m.outbox.push(outboxEnvelope{topic: t, payload: payload, qos: qos, retain: retain})
		return nil
	}

	m.mu.Lock()
	br := m.br
	m.mu.Unlock()
	if br == nil {
		m.outbox.push(outboxEnvelope{topic: t, payload: payload, qos: qos, retain: retain})
		return nil
	}

	if _, err := br.Publish(ctx, pahoPublish(t, payload, qos, retain)); err != nil {
		m.outbox.push(outboxEnvelope{topic: t, payload: payload, qos: qos, retain: retain})
		return fmt.Errorf("comm: publish: %w", err)
	}
	return nil
}

func (m *Manager) drainOutbox(ctx context.Context) {
	m.mu.Lock()
	br := m.br
	m.mu.Unlock()
	if br == nil {
		return
	}
	for _, e := range m.outbox.drain() {
		if _, err := br.Publish(ctx, pahoPublish(e.topic, e.payload, e.qos, e.retain)); err != nil {
			m.logger.Warn("comm: drained publish failed", "topic", e.topic, "error", err)
		}
	}
}
