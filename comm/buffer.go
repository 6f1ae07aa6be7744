package comm

import (
	"log/slog"
	"sync"
)

// defaultBufferSize is the bounded offline publish queue's default
// capacity (spec §4.1 "default 1,000 envelopes").
const defaultBufferSize = 1000

// outboxEnvelope is one queued publication awaiting the broker
// connection to become Online.
type outboxEnvelope struct {
	topic   string
	payload []byte
	qos     byte
	retain  bool
}

// outbox buffers publications attempted while the connection is
// Offline. On overflow the oldest envelope is dropped and a warning
// logged (spec §4.1 "Failure semantics").
type outbox struct {
	mu       sync.Mutex
	cap      int
	envelope []outboxEnvelope
	logger   *slog.Logger
}

func newOutbox(capacity int, logger *slog.Logger) *outbox {
	if capacity <= 0 {
		capacity = defaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &outbox{cap: capacity, logger: logger}
}

// push appends e, dropping the oldest queued envelope first if the
// buffer is already at capacity.
func (o *outbox) push(e outboxEnvelope) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.envelope) >= o.cap {
		dropped := o.envelope[0]
		o.envelope = o.envelope[1:]
		o.logger.Warn("comm: offline publish buffer full, dropping oldest envelope",
			"topic", dropped.topic, "capacity", o.cap)
	}
	o.envelope = append(o.envelope, e)
}

// drain removes and returns every buffered envelope in FIFO order,
// called when the connection transitions back to Online.
func (o *outbox) drain() []outboxEnvelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.envelope
	o.envelope = nil
	return out
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.envelope)
}
