package resilience

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests until the open duration elapses.
	StateOpen
	// StateHalfOpen allows a limited number of probes to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for metrics/logging.
	Name string
	// FailureThreshold is the number of failures before opening the circuit.
	FailureThreshold int
	// OpenDuration is how long to wait before allowing a recovery probe.
	OpenDuration time.Duration
	// CloseThreshold is the number of consecutive half-open successes
	// required to close the circuit.
	CloseThreshold int
	// HalfOpenMaxProbes is the number of concurrent probes allowed in
	// half-open state. Additional callers are refused until a probe resolves.
	HalfOpenMaxProbes int
	// OnStateChange is called when state changes.
	OnStateChange func(name string, from, to State)
	// Clock supplies the current time. Defaults to time.Now; tests inject
	// a fake to drive cooldown transitions deterministically.
	Clock func() time.Time
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:              name,
		FailureThreshold:  5,
		OpenDuration:      30 * time.Second,
		CloseThreshold:    1,
		HalfOpenMaxProbes: 1,
	}
}

// Counts is a read-only snapshot of breaker counters for polling by
// dashboards and metrics collectors.
type Counts struct {
	State               State
	ConsecutiveFailures int
	HalfOpenSuccesses   int
	Trips               int
	ProbesInFlight      int
	LastTrip            time.Time
}

// CircuitBreaker is a three-state machine protecting a single remote
// resource. One instance is created per resource and shared by all callers;
// every transition happens under a single mutex so no caller can observe a
// state that would permit more than the configured number of concurrent
// half-open probes.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu             sync.Mutex
	state          State
	failures       int
	successes      int
	trips          int
	probesInFlight int
	lastTrip       time.Time
}

// NewCircuitBreaker creates a new circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenDuration <= 0 {
		config.OpenDuration = 30 * time.Second
	}
	if config.CloseThreshold <= 0 {
		config.CloseThreshold = 1
	}
	if config.HalfOpenMaxProbes <= 0 {
		config.HalfOpenMaxProbes = 1
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Permit is a single admitted attempt. It remembers whether the admission
// took a half-open probe slot, so a slow call admitted while closed cannot
// later masquerade as a probe result after the breaker trips.
type Permit struct {
	cb    *CircuitBreaker
	probe bool
	done  bool
}

// Acquire asks the breaker for permission to attempt a call. On admission it
// returns a permit the caller must Record exactly once. In the open state the
// first caller after the cooldown flips the breaker to half-open and takes
// the probe slot; concurrent callers during an active probe are refused.
func (cb *CircuitBreaker) Acquire() (*Permit, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateClosed:
		return &Permit{cb: cb}, true
	case StateHalfOpen:
		if cb.probesInFlight < cb.config.HalfOpenMaxProbes {
			cb.probesInFlight++
			return &Permit{cb: cb, probe: true}, true
		}
		return nil, false
	default:
		return nil, false
	}
}

// Record reports the outcome of the permitted attempt. Recording twice is a
// no-op, as is recording while open: a call admitted just before a trip must
// not corrupt the counters. If the breaker moved to half-open while a
// closed-admitted call was in flight, that call's success is discarded (it
// proves nothing about recovery and holds no probe slot) while its failure
// still reopens the circuit.
func (p *Permit) Record(outcome Outcome) {
	cb := p.cb
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if p.done {
		return
	}
	p.done = true

	switch cb.state {
	case StateClosed:
		cb.recordClosed(outcome)
	case StateHalfOpen:
		if !p.probe {
			if outcome.Kind != KindSuccess {
				cb.trip()
			}
			return
		}
		cb.recordHalfOpen(outcome)
	}
}

// Allow reports whether a new attempt may proceed. It is the untokenized
// form of Acquire for callers that manage attempt lifecycles themselves;
// such callers pair it with Record.
func (cb *CircuitBreaker) Allow() bool {
	_, ok := cb.Acquire()
	return ok
}

// Record reports the outcome of an attempt and may transition state.
// Attempts admitted through Acquire should use Permit.Record instead, which
// also attributes the outcome to the admitting state.
func (cb *CircuitBreaker) Record(outcome Outcome) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.recordClosed(outcome)
	case StateHalfOpen:
		cb.recordHalfOpen(outcome)
	}
}

// recordClosed handles an outcome attributed to the closed state.
// Callers must hold cb.mu.
func (cb *CircuitBreaker) recordClosed(outcome Outcome) {
	if outcome.Kind == KindSuccess {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.config.FailureThreshold {
		cb.trip()
	}
}

// recordHalfOpen handles a probe outcome. Callers must hold cb.mu.
func (cb *CircuitBreaker) recordHalfOpen(outcome Outcome) {
	if cb.probesInFlight > 0 {
		cb.probesInFlight--
	}
	if outcome.Kind == KindSuccess {
		cb.successes++
		if cb.successes >= cb.config.CloseThreshold {
			cb.toState(StateClosed)
		}
		return
	}
	// Fail fast on probe failure, regardless of prior successes.
	cb.trip()
}

// State returns the current state, applying the cooldown transition if due.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Counts returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Counts{
		State:               cb.currentState(),
		ConsecutiveFailures: cb.failures,
		HalfOpenSuccesses:   cb.successes,
		Trips:               cb.trips,
		ProbesInFlight:      cb.probesInFlight,
		LastTrip:            cb.lastTrip,
	}
}

// Name returns the configured breaker name.
func (cb *CircuitBreaker) Name() string { return cb.config.Name }

// Reset returns the breaker to the closed state with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(StateClosed)
	cb.failures = 0
	cb.successes = 0
	cb.probesInFlight = 0
}

// trip opens the circuit and stamps the trip time.
func (cb *CircuitBreaker) trip() {
	cb.lastTrip = cb.config.Clock()
	cb.trips++
	cb.toState(StateOpen)
}

// currentState returns the state, handling the open -> half-open cooldown.
// Callers must hold cb.mu.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.config.Clock().Sub(cb.lastTrip) >= cb.config.OpenDuration {
		cb.toState(StateHalfOpen)
	}
	return cb.state
}

// toState transitions to a new state and resets the counters that only have
// meaning in the old one. Callers must hold cb.mu.
func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to

	switch to {
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
		cb.probesInFlight = 0
	case StateHalfOpen:
		cb.successes = 0
		cb.probesInFlight = 0
	case StateOpen:
		cb.successes = 0
		cb.probesInFlight = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
