package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock drives cooldown transitions deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testBreaker(clock *fakeClock, threshold, closeThreshold int, openDuration time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: threshold,
		OpenDuration:     openDuration,
		CloseThreshold:   closeThreshold,
		Clock:            clock.Now,
	})
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Error("closed breaker must allow requests")
	}
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 3, 1, 5*time.Second)

	testErr := errors.New("rate limited")

	for i := 0; i < 2; i++ {
		cb.Record(Transient(testErr))
		if cb.State() != StateClosed {
			t.Fatalf("breaker tripped early after %d failures", i+1)
		}
	}

	cb.Record(Transient(testErr))

	if cb.State() != StateOpen {
		t.Fatalf("expected StateOpen after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("open breaker must refuse requests before cooldown")
	}
	if got := cb.Counts().Trips; got != 1 {
		t.Errorf("Trips = %d, want 1", got)
	}
}

func TestCircuitBreaker_AllKindsOfFailureCount(t *testing.T) {
	cause := errors.New("boom")
	for _, outcome := range []Outcome{Transient(cause), Permanent(cause), TimedOut(cause)} {
		clock := newFakeClock()
		cb := testBreaker(clock, 1, 1, time.Second)

		cb.Record(outcome)
		if cb.State() != StateOpen {
			t.Errorf("%s failure did not count toward threshold", outcome.Kind)
		}
	}
}

func TestCircuitBreaker_SuccessResetsFailureCounter(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 3, 1, 5*time.Second)

	cb.Record(Transient(errors.New("blip")))
	cb.Record(Transient(errors.New("blip")))
	cb.Record(Success())

	if got := cb.Counts().ConsecutiveFailures; got != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after success", got)
	}

	// Two more failures must not trip: the window restarted.
	cb.Record(Transient(errors.New("blip")))
	cb.Record(Transient(errors.New("blip")))
	if cb.State() != StateClosed {
		t.Error("breaker tripped although the failure window was reset")
	}
}

func TestCircuitBreaker_RefusesUntilCooldownElapsed(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 1, 1, 5*time.Second)

	cb.Record(Transient(errors.New("down")))

	clock.Advance(4999 * time.Millisecond)
	if cb.Allow() {
		t.Error("breaker allowed a call before the open duration elapsed")
	}

	clock.Advance(time.Millisecond)
	if !cb.Allow() {
		t.Error("breaker refused the probe after the open duration elapsed")
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("expected StateHalfOpen, got %s", cb.State())
	}
}

func TestCircuitBreaker_SingleConcurrentProbe(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 1, 1, time.Second)

	cb.Record(Transient(errors.New("down")))
	clock.Advance(time.Second)

	if !cb.Allow() {
		t.Fatal("first caller after cooldown must get the probe slot")
	}

	// Concurrent callers during the active probe are refused.
	for i := 0; i < 5; i++ {
		if cb.Allow() {
			t.Fatal("second concurrent probe was permitted")
		}
	}

	// Once the probe resolves, the next probe slot frees up.
	cb.Record(Transient(errors.New("still down")))
	if cb.State() != StateOpen {
		t.Errorf("failed probe should reopen the breaker, got %s", cb.State())
	}
}

func TestCircuitBreaker_ProbeFailureReopensAndRestampsTrip(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 1, 3, 5*time.Second)

	cb.Record(Transient(errors.New("down")))
	firstTrip := cb.Counts().LastTrip

	clock.Advance(5 * time.Second)
	if !cb.Allow() {
		t.Fatal("probe not granted")
	}

	// Two successes, then a failure: prior successes must not save it.
	cb.Record(Success())
	if !cb.Allow() {
		t.Fatal("second probe not granted after first resolved")
	}
	cb.Record(Success())
	if !cb.Allow() {
		t.Fatal("third probe not granted")
	}
	clock.Advance(time.Second)
	cb.Record(TimedOut(errors.New("probe timeout")))

	if cb.State() != StateOpen {
		t.Fatalf("expected StateOpen after probe failure, got %s", cb.State())
	}
	counts := cb.Counts()
	if !counts.LastTrip.After(firstTrip) {
		t.Error("trip time was not re-stamped on probe failure")
	}
	if counts.Trips != 2 {
		t.Errorf("Trips = %d, want 2", counts.Trips)
	}

	// The fresh trip time restarts the cooldown.
	if cb.Allow() {
		t.Error("breaker allowed a call right after re-opening")
	}
}

func TestCircuitBreaker_ClosesAfterCloseThresholdSuccesses(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 1, 2, time.Second)

	cb.Record(Transient(errors.New("down")))
	clock.Advance(time.Second)

	if !cb.Allow() {
		t.Fatal("probe not granted")
	}
	cb.Record(Success())
	if cb.State() != StateHalfOpen {
		t.Fatalf("one success should not close with CloseThreshold=2, got %s", cb.State())
	}

	if !cb.Allow() {
		t.Fatal("second probe not granted")
	}
	cb.Record(Success())

	if cb.State() != StateClosed {
		t.Fatalf("expected StateClosed after 2 successes, got %s", cb.State())
	}

	counts := cb.Counts()
	if counts.ConsecutiveFailures != 0 || counts.HalfOpenSuccesses != 0 {
		t.Errorf("counters not reset on close: %+v", counts)
	}
}

func TestCircuitBreaker_RecordWhileOpenIsNoop(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 1, 1, time.Minute)

	cb.Record(Transient(errors.New("down")))
	before := cb.Counts()

	// A racing caller admitted just before the trip reports late.
	cb.Record(Success())
	cb.Record(Transient(errors.New("late")))

	after := cb.Counts()
	if after.State != StateOpen {
		t.Errorf("state changed while open: %s", after.State)
	}
	if after.Trips != before.Trips {
		t.Errorf("Trips changed while open: %d -> %d", before.Trips, after.Trips)
	}
}

func TestCircuitBreaker_StaleSuccessDoesNotReleaseProbeSlot(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 2, 1, time.Second)

	// A slow call is admitted while closed and stays in flight.
	stale, ok := cb.Acquire()
	if !ok {
		t.Fatal("closed breaker must admit the call")
	}

	// The breaker trips behind it and cools down into half-open.
	cb.Record(Transient(errors.New("down")))
	cb.Record(Transient(errors.New("down")))
	clock.Advance(time.Second)

	probe, ok := cb.Acquire()
	if !ok {
		t.Fatal("probe slot not granted after cooldown")
	}
	if got := cb.Counts().ProbesInFlight; got != 1 {
		t.Fatalf("ProbesInFlight = %d, want 1", got)
	}

	// The stale call finally succeeds. It holds no probe slot, so it must
	// neither free one nor close the circuit.
	stale.Record(Success())

	counts := cb.Counts()
	if counts.State != StateHalfOpen {
		t.Fatalf("stale success closed the breaker: %s", counts.State)
	}
	if counts.ProbesInFlight != 1 {
		t.Errorf("ProbesInFlight = %d after stale success, want 1", counts.ProbesInFlight)
	}
	if _, ok := cb.Acquire(); ok {
		t.Error("a second probe was admitted while the real probe is in flight")
	}

	// Only the real probe's success closes the circuit.
	probe.Record(Success())
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after the probe succeeded, got %s", cb.State())
	}
}

func TestCircuitBreaker_StaleFailureReopensDuringHalfOpen(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 1, 1, time.Second)

	stale, ok := cb.Acquire()
	if !ok {
		t.Fatal("closed breaker must admit the call")
	}

	cb.Record(Transient(errors.New("down")))
	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Fatal("probe slot not granted after cooldown")
	}

	clock.Advance(time.Millisecond)
	stale.Record(Transient(errors.New("still down")))

	counts := cb.Counts()
	if counts.State != StateOpen {
		t.Fatalf("stale failure did not reopen the breaker: %s", counts.State)
	}
	if counts.Trips != 2 {
		t.Errorf("Trips = %d, want 2", counts.Trips)
	}
}

func TestCircuitBreaker_PermitRecordsOnce(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 1, 2, time.Second)

	cb.Record(Transient(errors.New("down")))
	clock.Advance(time.Second)

	probe, ok := cb.Acquire()
	if !ok {
		t.Fatal("probe slot not granted after cooldown")
	}
	probe.Record(Success())
	probe.Record(Success())

	if got := cb.Counts().HalfOpenSuccesses; got != 1 {
		t.Errorf("HalfOpenSuccesses = %d, want 1 after duplicate Record", got)
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("duplicate Record closed the breaker: %s", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock, 1, 1, time.Hour)

	cb.Record(Transient(errors.New("down")))
	if cb.State() != StateOpen {
		t.Fatal("breaker did not trip")
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after reset, got %s", cb.State())
	}
	if got := cb.Counts().ConsecutiveFailures; got != 0 {
		t.Errorf("ConsecutiveFailures = %d after reset", got)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := newFakeClock()

	var mu sync.Mutex
	var transitions []struct{ from, to State }

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "alpaca",
		FailureThreshold: 1,
		OpenDuration:     time.Second,
		Clock:            clock.Now,
		OnStateChange: func(name string, from, to State) {
			if name != "alpaca" {
				t.Errorf("callback name = %q", name)
			}
			mu.Lock()
			transitions = append(transitions, struct{ from, to State }{from, to})
			mu.Unlock()
		},
	})

	cb.Record(Transient(errors.New("down")))
	clock.Advance(time.Second)
	_ = cb.Allow()
	cb.Record(Success())

	mu.Lock()
	defer mu.Unlock()

	want := []struct{ from, to State }{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(transitions) != len(want) {
		t.Fatalf("got %d transitions, want %d: %v", len(transitions), len(want), transitions)
	}
	for i, w := range want {
		if transitions[i] != w {
			t.Errorf("transition %d = %s->%s, want %s->%s",
				i, transitions[i].from, transitions[i].to, w.from, w.to)
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.Allow() {
				cb.Record(Success())
			}
			_ = cb.State()
			_ = cb.Counts()
		}()
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after all successes, got %s", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
