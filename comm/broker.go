package comm

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// broker is the narrow surface the Communication Manager needs from an
// MQTT client. Its method set mirrors *autopaho.ConnectionManager
// exactly (Publish/Subscribe/Unsubscribe/Disconnect/AwaitConnection all
// operate on the same *paho.* request/response types) so the real
// autopaho connection manager satisfies broker with no adapter. The
// package's tests set no broker at all: an unconnected Manager buffers
// every publication in its outbox, which the tests inspect.
type broker interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Subscribe(ctx context.Context, s *paho.Subscribe) (*paho.Suback, error)
	Unsubscribe(ctx context.Context, u *paho.Unsubscribe) (*paho.Unsuback, error)
	Disconnect(ctx context.Context) error
	AwaitConnection(ctx context.Context) error
}

var _ broker = (*autopaho.ConnectionManager)(nil)

// dialOptions configures how connectBroker reaches a live MQTT broker.
type dialOptions struct {
	BrokerURL    string
	ClientID     string
	Username     string
	Password     string
	KeepAlive    uint16
	WillTopic    string
	WillPayload  []byte
	OnOnline     func()
	OnOffline    func(error)
	OnMessage    func(topic string, payload []byte)
	ConnectRetry bool
	Logger       *slog.Logger
}

// connectBroker dials the broker described by opts using autopaho,
// mirroring the teacher's Publisher.Start wiring: TLS is enabled for
// mqtts/ssl schemes, OnConnectionUp/OnConnectError drive the manager's
// online/offline transitions, and inbound messages are dispatched
// through a recover()-guarded callback so a panicking observer can
// never take down the connection's read loop.
func connectBroker(ctx context.Context, opts dialOptions) (*autopaho.ConnectionManager, error) {
	brokerURL, err := url.Parse(opts.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("comm: parse broker URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       opts.KeepAlive,
		ConnectUsername: opts.Username,
		ConnectPassword: []byte(opts.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			if opts.OnOnline != nil {
				opts.OnOnline()
			}
		},
		OnConnectError: func(err error) {
			if opts.OnOffline != nil {
				opts.OnOffline(err)
			}
		},
		ClientConfig: paho.ClientConfig{
			ClientID: opts.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					dispatchSafely(opts.Logger, opts.OnMessage, pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
		},
	}

	if opts.WillTopic != "" {
		cfg.WillMessage = &paho.WillMessage{
			Topic:   opts.WillTopic,
			Payload: opts.WillPayload,
			QoS:     1,
			Retain:  true,
		}
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		cfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return autopaho.NewConnection(ctx, cfg)
}

// dispatchSafely invokes h and converts a panic into nothing worse than
// a dropped message; the broker connection's read loop must survive a
// misbehaving observer.
func dispatchSafely(logger *slog.Logger, h func(topic string, payload []byte), topic string, payload []byte) {
	if h == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("comm: inbound message handler panicked", "topic", topic, "panic", r)
		}
	}()
	h(topic, payload)
}

const defaultAwaitConnectionTimeout = 30 * time.Second

func pahoPublish(topic string, payload []byte, qos byte, retain bool) *paho.Publish {
	return &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	}
}

func pahoSubscribe(filter string) *paho.Subscribe {
	return &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: 0}},
	}
}

func pahoUnsubscribe(filter string) *paho.Unsubscribe {
	return &paho.Unsubscribe{Topics: []string{filter}}
}
