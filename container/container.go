// Package container wires a Communication Manager, a storage adapter,
// and a set of controllers into one lifecycle: construct from options,
// start in registration order, stop in reverse. It generalizes the
// inline bring-up sequence a long-running agent process otherwise
// repeats by hand into a reusable type.
package container

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/coaty-io/coaty-go/comm"
	"github.com/coaty-io/coaty-go/object"
	"github.com/coaty-io/coaty-go/store"
)

// Controller is anything a Container can start and stop alongside the
// Communication Manager: iorouter.Controller, ioctrl.SourceController,
// ioctrl.ActorController, and any application-defined controller that
// satisfies this pair of methods.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type namedController struct {
	name string
	ctrl Controller
}

// Container owns one Communication Manager, one storage Adapter, and
// the controllers registered on it. It is not safe to register
// controllers after Start.
type Container struct {
	mu          sync.Mutex
	identity    *object.Identity
	comm        *comm.Manager
	store       store.Adapter
	controllers []namedController
	started     bool
}

// New constructs a Container with a fresh Communication Manager bound
// to identity and commOpts, and adapter as its storage backend.
// adapter may be nil for containers with no controller that needs
// persistence.
func New(identity *object.Identity, commOpts comm.Options, adapter store.Adapter) *Container {
	return &Container{
		identity: identity,
		comm:     comm.New(identity, commOpts),
		store:    adapter,
	}
}

// CommunicationManager returns the Container's Communication Manager,
// for controllers constructed outside RegisterController that still
// need it (or for tests observing events directly).
func (c *Container) CommunicationManager() *comm.Manager {
	return c.comm
}

// Store returns the Container's storage adapter, or nil if none was
// configured.
func (c *Container) Store() store.Adapter {
	return c.store
}

// Identity returns the container's self-identifier.
func (c *Container) Identity() *object.Identity {
	return c.identity
}

// RegisterController adds ctrl under name, to be started in
// registration order by Start and stopped in reverse order by Stop.
// Returns an error if the Container has already started, or if name
// is already registered.
func (c *Container) RegisterController(name string, ctrl Controller) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("container: cannot register controller %q after Start", name)
	}
	for _, nc := range c.controllers {
		if nc.name == name {
			return fmt.Errorf("container: controller %q already registered", name)
		}
	}
	c.controllers = append(c.controllers, namedController{name, ctrl})
	return nil
}

// Start brings the Container up: the Communication Manager first,
// then every registered controller in registration order. If any
// controller fails to start, every component started so far (in
// reverse order, including the Manager) is stopped before Start
// returns the error — no partially-started Container is left behind.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	controllers := append([]namedController(nil), c.controllers...)
	c.mu.Unlock()

	if err := c.comm.Start(ctx); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("container: start communication manager: %w", err)
	}

	started := make([]namedController, 0, len(controllers))
	for _, nc := range controllers {
		if err := nc.ctrl.Start(ctx); err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				_ = started[i].ctrl.Stop(ctx)
			}
			_ = c.comm.Stop(ctx)
			c.mu.Lock()
			c.started = false
			c.mu.Unlock()
			return fmt.Errorf("container: start controller %q: %w", nc.name, err)
		}
		started = append(started, nc)
	}
	return nil
}

// Stop shuts the Container down: every controller in reverse
// registration order, then the Communication Manager, then the
// storage adapter if one was configured. It collects and returns
// every error encountered rather than stopping at the first.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	controllers := append([]namedController(nil), c.controllers...)
	c.mu.Unlock()

	var errs []error
	for i := len(controllers) - 1; i >= 0; i-- {
		nc := controllers[i]
		if err := nc.ctrl.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop controller %q: %w", nc.name, err))
		}
	}
	if err := c.comm.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop communication manager: %w", err))
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage adapter: %w", err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined = fmt.Errorf("%w; %v", joined, e)
	}
	return joined
}

// RunUntilSignal starts the Container, blocks until SIGINT or SIGTERM
// arrives, then stops it. It is the agent-process convenience wrapper
// around Start/Stop for a cmd/ entry point's main loop.
func RunUntilSignal(ctx context.Context, c *Container) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	return c.Stop(context.Background())
}
