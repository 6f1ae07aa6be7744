package comm

import "sync"

// Subscription is returned by a hub subscribe call. Calling Unsubscribe
// more than once is a no-op.
type Subscription struct {
	unsub func()
	once  sync.Once
}

// Unsubscribe detaches the observer. If it was the last observer on its
// hub entry, the hub's teardown callback runs synchronously.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.unsub != nil {
			s.unsub()
		}
	})
}

// hub is a lazy, restartable broadcast point keyed by an arbitrary
// string (a topic filter, a correlationId, a channel name). The first
// Subscribe for a key runs install; the key's last Unsubscribe runs
// teardown. Publish fans a value out to every live observer for a key;
// a panicking observer callback is recovered so one bad subscriber
// never breaks delivery to the others.
type hub[T any] struct {
	mu      sync.Mutex
	entries map[string]*hubEntry[T]
}

type hubEntry[T any] struct {
	observers map[int]func(T)
	nextID    int
	teardown  func()
}

func newHub[T any]() *hub[T] {
	return &hub[T]{entries: make(map[string]*hubEntry[T])}
}

// subscribe registers fn under key. install is called exactly once,
// the first time key transitions from zero to one observers; its
// returned teardown func is called exactly once, when key transitions
// back from one to zero observers. install may be nil when key needs no
// wire subscription (e.g. the IO state hub, fed locally by SetIoState).
func (h *hub[T]) subscribe(key string, install func() func(), fn func(T)) *Subscription {
	h.mu.Lock()
	e, ok := h.entries[key]
	if !ok {
		e = &hubEntry[T]{observers: make(map[int]func(T))}
		if install != nil {
			e.teardown = install()
		}
		h.entries[key] = e
	}
	id := e.nextID
	e.nextID++
	e.observers[id] = fn
	h.mu.Unlock()

	return &Subscription{unsub: func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		e, ok := h.entries[key]
		if !ok {
			return
		}
		delete(e.observers, id)
		if len(e.observers) == 0 {
			delete(h.entries, key)
			if e.teardown != nil {
				e.teardown()
			}
		}
	}}
}

// publish fans value out to every current observer of key. Unknown keys
// are silently ignored (no observer is currently interested).
func (h *hub[T]) publish(key string, value T) {
	h.mu.Lock()
	e, ok := h.entries[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	observers := make([]func(T), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	h.mu.Unlock()

	for _, fn := range observers {
		deliverSafely(fn, value)
	}
}

// hasObservers reports whether key currently has at least one live
// subscriber.
func (h *hub[T]) hasObservers(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[key]
	return ok && len(e.observers) > 0
}

func deliverSafely[T any](fn func(T), value T) {
	defer func() { recover() }()
	fn(value)
}

// replayHub is a hub variant that remembers the last published value
// per key and replays it immediately to every new subscriber, used by
// observeIoValue (§4.3, cache survives reassociation) and observeIoState
// (a new subscriber receives the current value immediately).
type replayHub[T any] struct {
	mu       sync.Mutex
	inner    *hub[T]
	last     map[string]T
	hasValue map[string]bool
}

func newReplayHub[T any]() *replayHub[T] {
	return &replayHub[T]{
		inner:    newHub[T](),
		last:     make(map[string]T),
		hasValue: make(map[string]bool),
	}
}

func (r *replayHub[T]) subscribe(key string, install func() func(), fn func(T)) *Subscription {
	r.mu.Lock()
	v, ok := r.last[key], r.hasValue[key]
	r.mu.Unlock()

	sub := r.inner.subscribe(key, install, fn)
	if ok {
		deliverSafely(fn, v)
	}
	return sub
}

func (r *replayHub[T]) publish(key string, value T) {
	r.mu.Lock()
	r.last[key] = value
	r.hasValue[key] = true
	r.mu.Unlock()
	r.inner.publish(key, value)
}

func (r *replayHub[T]) snapshot(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.last[key]
	return v, ok
}
