package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy is the immutable configuration for the retry wrapper.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// InitialBackoff is the backoff before the first retry.
	InitialBackoff time.Duration
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64
	// MaxBackoff caps the computed backoff.
	MaxBackoff time.Duration
	// Jitter is the fraction of the computed backoff used as a uniform
	// random offset in both directions (0.0 to 1.0). Jitter desynchronizes
	// concurrent retriers so a shared failure does not produce a retry storm.
	Jitter float64
	// Classify maps attempt errors to outcome kinds. Defaults to
	// DefaultClassifier.
	Classify Classifier
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, backoff time.Duration)
	// Rand supplies uniform values in [0,1) for jitter. Defaults to the
	// shared math/rand source; tests inject a deterministic one.
	Rand func() float64
}

// DefaultRetryPolicy returns sensible defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxBackoff:     10 * time.Second,
		Jitter:         0.1,
	}
}

// withDefaults fills zero fields.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 100 * time.Millisecond
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2.0
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 10 * time.Second
	}
	if p.Classify == nil {
		p.Classify = DefaultClassifier
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return p
}

// Execute runs op through the circuit breaker with retry. Each attempt asks
// the breaker for permission; a refusal returns ErrCircuitOpen immediately,
// without consuming attempt budget or backing off. Every executed attempt is
// reported to the breaker before any retry decision, so breaker trip
// thresholds reflect true failure rates independent of retry policy.
//
// Permanent failures surface immediately. Transient failures and timeouts
// are retried with capped exponential backoff plus jitter until the attempt
// budget runs out, which yields an *ExhaustedError wrapping the last cause.
// The backoff sleep is context-aware: no retry runs past the caller's
// deadline even if budget remains.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	policy = policy.withDefaults()

	var last Outcome
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		var permit *Permit
		if cb != nil {
			var ok bool
			if permit, ok = cb.Acquire(); !ok {
				return zero, ErrCircuitOpen
			}
		}

		result, err := op(ctx)

		outcome := Classify(policy.Classify, err)
		if err != nil && ctx.Err() != nil {
			// Caller cancellation counts as a timeout so breaker
			// accounting stays accurate before we propagate it.
			outcome = TimedOut(err)
		}
		if permit != nil {
			permit.Record(outcome)
		}

		switch outcome.Kind {
		case KindSuccess:
			return result, nil
		case KindPermanent:
			return zero, err
		}

		last = outcome

		if ctx.Err() != nil {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		backoff := jittered(Backoff(attempt, policy), policy)

		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &ExhaustedError{
		Attempts: policy.MaxAttempts,
		LastKind: last.Kind,
		LastErr:  last.Err,
	}
}

// ExecuteFunc runs an error-only operation through the retry wrapper.
func ExecuteFunc(ctx context.Context, cb *CircuitBreaker, policy RetryPolicy, op func(context.Context) error) error {
	_, err := Execute(ctx, cb, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Backoff returns the deterministic backoff for an attempt, before jitter:
// min(InitialBackoff * BackoffFactor^(attempt-1), MaxBackoff). It is
// monotonically non-decreasing in the attempt number.
func Backoff(attempt int, policy RetryPolicy) time.Duration {
	policy = policy.withDefaults()

	backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffFactor, float64(attempt-1))
	if backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}
	return time.Duration(backoff)
}

// jittered draws a uniform offset within ±Jitter*backoff.
func jittered(backoff time.Duration, policy RetryPolicy) time.Duration {
	if policy.Jitter <= 0 {
		return backoff
	}
	offset := (policy.Rand()*2 - 1) * policy.Jitter * float64(backoff)
	result := time.Duration(float64(backoff) + offset)
	if result < 0 {
		result = 0
	}
	return result
}
