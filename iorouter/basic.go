package iorouter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coaty-io/coaty-go/comm"
	"github.com/coaty-io/coaty-go/event"
	"github.com/coaty-io/coaty-go/object"
)

const ioContextObjectType = "coaty.IoContext"
const publishTimeout = 10 * time.Second

// Controller is a container component that drives a Router from a
// Communication Manager's event feed and announces the Router's
// resulting associations to the fleet (spec §4.2): it observes IoNode
// Advertise and Deadvertise events, Update/Complete for the managed
// IoContext, and republishes every Router Change as an Associate event.
type Controller struct {
	mgr    *comm.Manager
	router *Router
	logger *slog.Logger

	mu      sync.Mutex
	subs    []*comm.Subscription
	started bool
}

// NewController creates a Controller for mgr and router. Both must
// already exist; the Controller only wires them together.
func NewController(mgr *comm.Manager, router *Router) *Controller {
	return &Controller{
		mgr:    mgr,
		router: router,
		logger: slog.Default(),
	}
}

// Start subscribes to the event feeds the Router needs and begins
// publishing its Changes as Associate events. Calling Start twice is a
// no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	c.router.OnChange(func(ch Change) {
		c.publishChange(ch)
	})

	nodeSub := c.mgr.ObserveAdvertiseWithCoreType(object.CoreTypeIoNode, func(evt event.AdvertiseEvent) {
		node, ok := evt.Object.(*object.IoNode)
		if !ok {
			return
		}
		if err := c.router.AdvertiseNode(node); err != nil {
			c.logger.Warn("iorouter: rejected IoNode advertisement", "objectId", node.ObjectID, "error", err)
		}
	})

	deadvSub := c.mgr.ObserveDeadvertise(func(evt event.DeadvertiseEvent) {
		for _, id := range evt.ObjectIDs {
			c.router.DeadvertiseNode(id)
		}
	})

	updateSub := c.mgr.ObserveUpdate(func(evt event.UpdateEvent) {
		co := evt.Object.Base()
		if co.ObjectType != ioContextObjectType {
			return
		}
		ctxObj := &object.IoContext{CoatyObject: *co}
		c.router.SetIoContext(ctxObj)

		_ = evt.Complete(event.CompleteEvent{Object: evt.Object})
	})

	c.subs = []*comm.Subscription{nodeSub, deadvSub, updateSub}
	return nil
}

// Stop unsubscribes from every feed the Controller established. The
// Router's own state (managed nodes, associations) is left untouched;
// callers discarding the Router too should simply drop both references.
func (c *Controller) Stop(ctx context.Context) error {
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
	return nil
}

func (c *Controller) publishChange(ch Change) {
	evt := event.AssociateEvent{
		Base:       event.Base{SourceID: c.mgr.Identity().ObjectID},
		SourceID:   ch.SourceID,
		ActorID:    ch.ActorID,
		Associated: ch.Associated,
		Rate:       ch.Rate,
		Topic:      ch.Topic,
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.mgr.PublishAssociate(ctx, evt); err != nil {
		c.logger.Warn("iorouter: failed to publish Associate", "sourceId", ch.SourceID, "actorId", ch.ActorID, "error", err)
	}
}
