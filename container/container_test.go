package container

import (
	"context"
	"errors"
	"testing"

	"github.com/coaty-io/coaty-go/comm"
	"github.com/coaty-io/coaty-go/object"
	"github.com/coaty-io/coaty-go/store"
)

type fakeController struct {
	name        string
	startErr    error
	stopErr     error
	startCalled bool
	stopCalled  bool
	events      *[]string
}

func (f *fakeController) Start(ctx context.Context) error {
	f.startCalled = true
	*f.events = append(*f.events, "start:"+f.name)
	return f.startErr
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.stopCalled = true
	*f.events = append(*f.events, "stop:"+f.name)
	return f.stopErr
}

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	identity := object.NewIdentity("test-agent")
	return New(identity, comm.Options{BrokerURL: "mqtt://localhost:1883"}, store.NewMemoryAdapter())
}

func TestContainer_StartsControllersInOrderStopsInReverse(t *testing.T) {
	c := newTestContainer(t)
	var events []string
	a := &fakeController{name: "a", events: &events}
	b := &fakeController{name: "b", events: &events}

	if err := c.RegisterController("a", a); err != nil {
		t.Fatalf("RegisterController(a) error = %v", err)
	}
	if err := c.RegisterController("b", b); err != nil {
		t.Fatalf("RegisterController(b) error = %v", err)
	}

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("events[%d] = %q, want %q", i, events[i], w)
		}
	}
}

func TestContainer_StartRollsBackOnControllerFailure(t *testing.T) {
	c := newTestContainer(t)
	var events []string
	a := &fakeController{name: "a", events: &events}
	b := &fakeController{name: "b", events: &events, startErr: errors.New("boom")}

	if err := c.RegisterController("a", a); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterController("b", b); err != nil {
		t.Fatal(err)
	}

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("Start() should fail when a controller fails to start")
	}
	if !a.stopCalled {
		t.Error("already-started controller a should be stopped on rollback")
	}

	// Container should be left in a not-started state: a second Start
	// attempt (after fixing b) should run again from scratch.
	b.startErr = nil
	events = nil
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if events[0] != "start:a" || events[1] != "start:b" {
		t.Errorf("events after retry = %v", events)
	}
}

func TestContainer_StartAndStopAreIdempotent(t *testing.T) {
	c := newTestContainer(t)
	var events []string
	a := &fakeController{name: "a", events: &events}
	if err := c.RegisterController("a", a); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("second Start() should be a no-op, got error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("controller should start exactly once, got events = %v", events)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("second Stop() should be a no-op, got error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("controller should stop exactly once, got events = %v", events)
	}
}

func TestContainer_RegisterControllerRejectsDuplicateNameAndAfterStart(t *testing.T) {
	c := newTestContainer(t)
	var events []string
	a := &fakeController{name: "a", events: &events}
	if err := c.RegisterController("a", a); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterController("a", a); err == nil {
		t.Error("RegisterController should reject a duplicate name")
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	b := &fakeController{name: "b", events: &events}
	if err := c.RegisterController("b", b); err == nil {
		t.Error("RegisterController should reject registration after Start")
	}
}

func TestContainer_AccessorsReturnWiredComponents(t *testing.T) {
	c := newTestContainer(t)
	if c.CommunicationManager() == nil {
		t.Error("CommunicationManager() should not be nil")
	}
	if c.Store() == nil {
		t.Error("Store() should not be nil")
	}
	if c.Identity() == nil || c.Identity().Name != "test-agent" {
		t.Errorf("Identity() = %+v, want Name test-agent", c.Identity())
	}
}
