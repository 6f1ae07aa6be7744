package ioctrl

import (
	"sync"
	"testing"
	"time"

	"github.com/coaty-io/coaty-go/object"
)

func intPtr(v int) *int { return &v }

func TestNewRegulator_PassesThroughWhenRateUndefinedOrZero(t *testing.T) {
	for _, rate := range []*int{nil, intPtr(0)} {
		var got []any
		var mu sync.Mutex
		reg := newRegulator(object.UpdateStrategySample, rate, func(v any) {
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		})
		reg.input(1)
		reg.input(2)
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n != 2 {
			t.Fatalf("rate=%v: got %d emissions, want 2 (pass through)", rate, n)
		}
	}
}

func TestNewRegulator_NoneAlwaysPassesThrough(t *testing.T) {
	var count int
	var mu sync.Mutex
	reg := newRegulator(object.UpdateStrategyNone, intPtr(50), func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	for i := 0; i < 5; i++ {
		reg.input(i)
	}
	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Fatalf("None strategy: got %d emissions, want 5", count)
	}
}

func TestSampleRegulator_BoundedEmissionCount(t *testing.T) {
	// Spec §8: for Sample at rate R>0 and N values over window T, emitted
	// values are <= ceil(T/R) + 1.
	const period = 20 * time.Millisecond
	const window = 200 * time.Millisecond

	var mu sync.Mutex
	var count int
	reg := newRegulator(object.UpdateStrategySample, intPtr(int(period/time.Millisecond)), func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer reg.stop()

	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		reg.input(time.Now())
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(period + 10*time.Millisecond)

	mu.Lock()
	got := count
	mu.Unlock()

	max := int(window/period) + 2 // +1 per spec bound, +1 slack for scheduling jitter
	if got > max {
		t.Errorf("Sample emitted %d values, want <= %d over a %v window at %v period", got, max, window, period)
	}
	if got == 0 {
		t.Errorf("Sample emitted 0 values, want at least 1")
	}
}

func TestThrottleRegulator_EmitsOnceAfterQuiescence(t *testing.T) {
	const period = 30 * time.Millisecond

	var mu sync.Mutex
	var values []any
	reg := newRegulator(object.UpdateStrategyThrottle, intPtr(int(period/time.Millisecond)), func(v any) {
		mu.Lock()
		values = append(values, v)
		mu.Unlock()
	})
	defer reg.stop()

	reg.input("a")
	time.Sleep(5 * time.Millisecond)
	reg.input("b")
	time.Sleep(5 * time.Millisecond)
	reg.input("last")

	time.Sleep(period + 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(values) != 1 {
		t.Fatalf("got %d emissions, want exactly 1 after quiescence; values=%v", len(values), values)
	}
	if values[0] != "last" {
		t.Errorf("emitted value = %v, want %q (the last input before the gap)", values[0], "last")
	}
}

func TestRegulator_StopCancelsPendingEmission(t *testing.T) {
	var mu sync.Mutex
	fired := false
	reg := newRegulator(object.UpdateStrategySample, intPtr(20), func(any) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	reg.input(1)
	reg.stop()
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("emission fired after stop, want it cancelled")
	}
}
