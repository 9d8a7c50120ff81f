package resilience

import (
	"context"
	"math/rand"
	"sync"
	"time"

	apperrors "github.com/autoquant/alphakit/errors"
)

// Fault is one scripted failure for the injector to substitute.
type Fault struct {
	// Kind of failure to inject. KindSuccess entries pass the call through.
	Kind Kind
	// Err overrides the synthesized error for this fault.
	Err error
	// Delay is an artificial latency applied before the fault surfaces,
	// used to make injected timeouts behave like real ones.
	Delay time.Duration
}

// error returns the injected error, synthesizing a normalized one when the
// script did not provide its own.
func (f Fault) error() error {
	if f.Err != nil {
		return f.Err
	}
	switch f.Kind {
	case KindTimeout:
		return apperrors.Timeout("injected")
	case KindPermanent:
		return apperrors.InvalidOrder("injected")
	default:
		return apperrors.ServiceUnavailable("injected")
	}
}

// Injector decides, per invocation, whether to substitute a fault for the
// wrapped operation's real result. It never mutates circuit breaker or
// retry state.
type Injector interface {
	// next consumes one injector decision. ok is false for pass-through.
	next() (f Fault, ok bool)
	// CallCount returns how many decisions have been consumed.
	CallCount() int
}

// ScriptedInjector replays a fixed ordered script of faults, one entry per
// invocation, for reproducible unit tests. An exhausted script passes every
// call through.
type ScriptedInjector struct {
	mu     sync.Mutex
	script []Fault
	calls  int
}

// NewScriptedInjector creates an injector that replays script in order.
func NewScriptedInjector(script []Fault) *ScriptedInjector {
	return &ScriptedInjector{script: script}
}

func (inj *ScriptedInjector) next() (Fault, bool) {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	inj.calls++
	if inj.calls > len(inj.script) {
		return Fault{}, false
	}
	f := inj.script[inj.calls-1]
	if f.Kind == KindSuccess {
		return Fault{}, false
	}
	return f, true
}

// CallCount returns the number of invocations seen so far.
func (inj *ScriptedInjector) CallCount() int {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	return inj.calls
}

// RandomFaultConfig configures a randomized injector for stress runs.
type RandomFaultConfig struct {
	// Seed makes the failure sequence reproducible. The seed is threaded
	// through configuration rather than taken from a hidden global so a
	// failing stress run can be replayed exactly.
	Seed int64
	// FailureRate is the probability of injecting Fault on any call.
	FailureRate float64
	// Fault is the failure to inject. Zero value injects a transient
	// service-unavailable error.
	Fault Fault
	// BurstAfter, when > 0, starts a simulated outage window at that call
	// number (1-based) during which every call fails regardless of rate.
	BurstAfter int
	// BurstLength is the number of calls the outage window lasts.
	BurstLength int
}

// RandomInjector injects faults at a configured rate from a seeded
// generator, with an optional burst window simulating a hard outage.
type RandomInjector struct {
	cfg RandomFaultConfig

	mu       sync.Mutex
	rng      *rand.Rand
	calls    int
	injected int
}

// NewRandomInjector creates a seeded randomized injector.
func NewRandomInjector(cfg RandomFaultConfig) *RandomInjector {
	if cfg.Fault.Kind == KindSuccess {
		cfg.Fault.Kind = KindTransient
	}
	if cfg.BurstAfter > 0 && cfg.BurstLength <= 0 {
		cfg.BurstLength = 3
	}
	return &RandomInjector{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (inj *RandomInjector) next() (Fault, bool) {
	inj.mu.Lock()
	defer inj.mu.Unlock()

	inj.calls++

	inBurst := inj.cfg.BurstAfter > 0 &&
		inj.calls >= inj.cfg.BurstAfter &&
		inj.calls < inj.cfg.BurstAfter+inj.cfg.BurstLength

	if inBurst || inj.rng.Float64() < inj.cfg.FailureRate {
		inj.injected++
		return inj.cfg.Fault, true
	}
	return Fault{}, false
}

// CallCount returns the number of invocations seen so far.
func (inj *RandomInjector) CallCount() int {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	return inj.calls
}

// InjectedCount returns the number of faults injected so far.
func (inj *RandomInjector) InjectedCount() int {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	return inj.injected
}

// Inject wraps op so that each invocation either runs the real operation or
// returns the injector's scripted outcome. Injected delays respect the
// caller's context.
func Inject[T any](inj Injector, op func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var zero T

		f, ok := inj.next()
		if !ok {
			return op(ctx)
		}

		if f.Delay > 0 {
			timer := time.NewTimer(f.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
		return zero, f.error()
	}
}
