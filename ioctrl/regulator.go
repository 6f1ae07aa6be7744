package ioctrl

import (
	"sync"
	"time"

	"github.com/coaty-io/coaty-go/object"
)

// regulator implements one of the §4.4 backpressure strategies for one
// IoSource. input feeds a newly-cloned value; the regulator decides if
// and when it reaches emit. stop cancels any in-flight scheduled
// emission — called whenever the source is reconstructed because R or
// the association state changed (§4.4 "The regulator is reconstructed
// ... whenever R or association-state changes").
type regulator interface {
	input(v any)
	stop()
}

// newRegulator builds the regulator selected by strategy and rate (the
// currently-associated cumulative rate R, nil meaning unconstrained) per
// the §4.4 table. rate == nil or *rate <= 0 always passes through,
// regardless of strategy.
func newRegulator(strategy object.UpdateStrategy, rate *int, emit func(any)) regulator {
	if rate == nil || *rate <= 0 {
		return &passthroughRegulator{emit: emit}
	}
	period := time.Duration(*rate) * time.Millisecond

	switch strategy {
	case object.UpdateStrategyNone:
		return &passthroughRegulator{emit: emit}
	case object.UpdateStrategyThrottle:
		return newThrottleRegulator(period, emit)
	case object.UpdateStrategySample, object.UpdateStrategyDefault, "":
		return newSampleRegulator(period, emit)
	default:
		return newSampleRegulator(period, emit)
	}
}

// passthroughRegulator emits every input immediately: §4.4 "None" at
// any rate, and "Sample"/"Throttle"/"Default" whenever R is undefined or
// zero.
type passthroughRegulator struct {
	emit func(any)
}

func (p *passthroughRegulator) input(v any) { p.emit(v) }
func (p *passthroughRegulator) stop()       {}

// sampleRegulator emits the latest input value at most once per period
// (§4.4 "Sample": "emit the latest value once per R ms", and "Default"
// behaving the same way once R > 0). The first input after a quiet
// spell arms a one-shot timer; further inputs before it fires just
// update the value that will be emitted.
type sampleRegulator struct {
	period time.Duration
	emit   func(any)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	latest  any
	stopped bool
}

func newSampleRegulator(period time.Duration, emit func(any)) *sampleRegulator {
	return &sampleRegulator{period: period, emit: emit}
}

func (s *sampleRegulator) input(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.latest = v
	s.pending = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.period, s.fire)
	}
}

func (s *sampleRegulator) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	v := s.latest
	hadPending := s.pending
	s.pending = false
	s.timer = nil
	s.mu.Unlock()

	if hadPending {
		s.emit(v)
	}
}

func (s *sampleRegulator) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// throttleRegulator emits the last input value exactly once, after R ms
// of quiescence since that input (§4.4 "Throttle": "emit only after R ms
// of quiescence since last input"). Every input resets the timer.
type throttleRegulator struct {
	period time.Duration
	emit   func(any)

	mu      sync.Mutex
	timer   *time.Timer
	latest  any
	stopped bool
}

func newThrottleRegulator(period time.Duration, emit func(any)) *throttleRegulator {
	return &throttleRegulator{period: period, emit: emit}
}

func (t *throttleRegulator) input(v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.latest = v
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.period, t.fire)
}

func (t *throttleRegulator) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	v := t.latest
	t.timer = nil
	t.mu.Unlock()
	t.emit(v)
}

func (t *throttleRegulator) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
