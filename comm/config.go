package comm

import (
	"log/slog"
	"time"
)

// Options configures a Manager. Zero-value fields fall back to the
// documented defaults, mirroring the teacher's config.MQTTConfig +
// applyDefaults() pipeline.
type Options struct {
	// BrokerURL is the MQTT broker address, e.g. "mqtt://localhost:1883"
	// or "mqtts://broker.example.com:8883" for TLS.
	BrokerURL string

	// Namespace scopes topic segment 1. Empty uses "-".
	Namespace string

	// Username/Password authenticate the MQTT connection, if the broker
	// requires it.
	Username string
	Password string

	// ClientIDPrefix is combined with the container Identity's object ID
	// to form the MQTT client identifier.
	ClientIDPrefix string

	// KeepAliveSec is the MQTT keep-alive interval in seconds. Zero uses
	// a conservative default.
	KeepAliveSec uint16

	// ReadableTopics replaces the container Identity's UUID in the
	// source segment of its own topics with the Identity's Name, for
	// debugging. Off by default (spec §4.1).
	ReadableTopics bool

	// OfflineBufferSize bounds the outbox. Zero uses defaultBufferSize.
	OfflineBufferSize int

	// StopGracePeriod bounds how long Stop waits for the outbox to drain
	// before forcing the transition to Stopped (spec §4.1 "Stopping
	// drains with a configurable grace period, then forces").
	StopGracePeriod time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = defaultNamespace
	}
	if o.ClientIDPrefix == "" {
		o.ClientIDPrefix = "coaty"
	}
	if o.KeepAliveSec == 0 {
		o.KeepAliveSec = 30
	}
	if o.OfflineBufferSize <= 0 {
		o.OfflineBufferSize = defaultBufferSize
	}
	if o.StopGracePeriod <= 0 {
		o.StopGracePeriod = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
