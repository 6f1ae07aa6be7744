package ioctrl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coaty-io/coaty-go/comm"
	"github.com/coaty-io/coaty-go/event"
	"github.com/coaty-io/coaty-go/object"
	"github.com/coaty-io/coaty-go/value"
)

const publishTimeout = 10 * time.Second

// SourceController is the IO Source controller of spec §4.4: it accepts
// application calls to Publish, discards them while unassociated,
// deep-clones the value, and applies the backpressure regulator
// selected by the source's UpdateStrategy and the currently-associated
// cumulative rate.
type SourceController struct {
	mgr    *comm.Manager
	source object.IoSource
	logger *slog.Logger

	mu         sync.Mutex
	started    bool
	subs       []*comm.Subscription
	assocCount int
	rate       *int
	topic      string
	reg        regulator
}

// NewSourceController creates a controller for source, bound to mgr.
// logger defaults to slog.Default() if nil.
func NewSourceController(mgr *comm.Manager, source object.IoSource, logger *slog.Logger) *SourceController {
	if logger == nil {
		logger = slog.Default()
	}
	c := &SourceController{mgr: mgr, source: source, logger: logger}
	c.reg = newRegulator(source.EffectiveUpdateStrategy(), nil, c.doEmit)
	return c
}

// Start subscribes to this source's Associate/Disassociate notifications.
// Calling Start twice is a no-op.
func (c *SourceController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	sub := c.mgr.ObserveAssociate(c.onAssociateChange)
	c.subs = []*comm.Subscription{sub}
	return nil
}

// Stop unsubscribes from every feed this controller established and
// cancels any in-flight scheduled emission.
func (c *SourceController) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
	c.reg.stop()
	return nil
}

// onAssociateChange tracks the source's association count and the
// cumulative rate/topic reported by the router, rebuilding the
// regulator whenever either changes (§4.4: "reconstructed ... whenever
// R or association-state changes").
func (c *SourceController) onAssociateChange(evt event.AssociateEvent) {
	if evt.SourceID != c.source.ObjectID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if evt.Associated {
		c.assocCount++
		c.rate = evt.Rate
		c.topic = evt.Topic
	} else {
		if c.assocCount > 0 {
			c.assocCount--
		}
		if c.assocCount == 0 {
			c.rate = nil
			c.topic = ""
		}
	}

	c.reg.stop()
	effectiveRate := c.rate
	if c.assocCount == 0 {
		effectiveRate = nil
	}
	c.reg = newRegulator(c.source.EffectiveUpdateStrategy(), effectiveRate, c.doEmit)
}

// Publish submits value for publication on this source's negotiated
// IO-value topic (§4.4). Discarded silently if no current association.
// value must be a []byte if the source's UseRawIoValues is true, and
// any JSON-marshalable value otherwise.
func (c *SourceController) Publish(ctx context.Context, val any) error {
	c.mu.Lock()
	if c.assocCount == 0 {
		c.mu.Unlock()
		return nil
	}
	reg := c.reg
	c.mu.Unlock()

	reg.input(cloneValue(val))
	return nil
}

// cloneValue freezes the snapshot actually sent (§4.4 step 2): deep
// clone for scalar/object JSON values, a defensive copy for raw byte
// slices.
func cloneValue(v any) any {
	if b, ok := v.([]byte); ok {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	return value.Clone(v)
}

// doEmit is the regulator's emit callback: it encodes val and publishes
// it on the source's negotiated topic, or its ExternalRoute if the
// router reported one (spec §9 Open Question on external-topic routing
// precedence).
func (c *SourceController) doEmit(val any) {
	raw, err := c.encode(val)
	if err != nil {
		c.logger.Warn("ioctrl: encode IoValue failed", "sourceId", c.source.ObjectID, "error", err)
		return
	}

	c.mu.Lock()
	topic := c.topic
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	var pubErr error
	if topic != "" {
		pubErr = c.mgr.PublishRaw(ctx, topic, raw)
	} else {
		pubErr = c.mgr.PublishIoValue(ctx, c.source.ObjectID, raw)
	}
	if pubErr != nil {
		c.logger.Warn("ioctrl: publish IoValue failed", "sourceId", c.source.ObjectID, "error", pubErr)
	}
}

func (c *SourceController) encode(v any) ([]byte, error) {
	if c.source.UseRawIoValues {
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("ioctrl: source %s has useRawIoValues=true, Publish requires []byte", c.source.ObjectID)
		}
		return b, nil
	}
	return json.Marshal(v)
}
