// Package resilience wraps calls to an unreliable remote trading API with
// retry and circuit breaker protection.
//
// The circuit breaker is a three-state machine (closed, open, half-open)
// shared by all callers of a protected resource. The retry wrapper asks the
// breaker for permission before each attempt, classifies the result of the
// attempt into an Outcome, reports it back to the breaker, and then decides
// whether to back off and retry:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("alpaca"))
//	policy := resilience.DefaultRetryPolicy()
//
//	order, err := resilience.Execute(ctx, cb, policy, func(ctx context.Context) (*Order, error) {
//	    return client.SubmitOrder(ctx, req)
//	})
//
// Errors are expected to be pre-classified by the broker normalization layer
// (see the errors package); the default Classifier maps retryable AppErrors
// to transient outcomes, timeout codes and context deadlines to timeouts,
// and everything else marked non-retryable to permanent failures that are
// surfaced immediately.
//
// The fault injector in this package simulates broker failure profiles for
// tests and stress harnesses without touching live endpoints. It only
// affects what a wrapped operation appears to return; breaker and retry
// state are never mutated directly.
package resilience
