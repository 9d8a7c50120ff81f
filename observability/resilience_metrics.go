package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/autoquant/alphakit/resilience"
)

// ResilienceMetrics holds instruments for circuit breaker, retry, bulkhead,
// and rate limiter activity.
type ResilienceMetrics struct {
	breakerTransitions metric.Int64Counter
	breakerTrips       metric.Int64Counter
	breakerState       metric.Int64Gauge
	retryTotal         metric.Int64Counter
	retryBackoff       metric.Float64Histogram
	bulkheadRejections metric.Int64Counter
	limiterThrottles   metric.Int64Counter
}

// NewResilienceMetrics creates resilience instruments on the given meter.
func NewResilienceMetrics(meter metric.Meter) (*ResilienceMetrics, error) {
	transitions, err := meter.Int64Counter("breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating breaker.transitions counter: %w", err)
	}

	trips, err := meter.Int64Counter("breaker.trips",
		metric.WithDescription("Circuit breaker trips into the open state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating breaker.trips counter: %w", err)
	}

	state, err := meter.Int64Gauge("breaker.state",
		metric.WithDescription("Current circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating breaker.state gauge: %w", err)
	}

	retryTotal, err := meter.Int64Counter("retry.total",
		metric.WithDescription("Retry attempts scheduled after a failed call"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry.total counter: %w", err)
	}

	retryBackoff, err := meter.Float64Histogram("retry.backoff",
		metric.WithDescription("Backoff duration before each retry in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry.backoff histogram: %w", err)
	}

	bulkheadRejections, err := meter.Int64Counter("bulkhead.rejections",
		metric.WithDescription("Calls turned away because the bulkhead was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bulkhead.rejections counter: %w", err)
	}

	limiterThrottles, err := meter.Int64Counter("ratelimit.throttles",
		metric.WithDescription("Requests refused or delayed by the client-side rate limiter"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ratelimit.throttles counter: %w", err)
	}

	return &ResilienceMetrics{
		breakerTransitions: transitions,
		breakerTrips:       trips,
		breakerState:       state,
		retryTotal:         retryTotal,
		retryBackoff:       retryBackoff,
		bulkheadRejections: bulkheadRejections,
		limiterThrottles:   limiterThrottles,
	}, nil
}

// BindBreaker chains a metric recorder onto the config's OnStateChange hook.
// Call it before constructing the breaker.
func (m *ResilienceMetrics) BindBreaker(cfg *resilience.CircuitBreakerConfig) {
	prev := cfg.OnStateChange
	cfg.OnStateChange = func(name string, from, to resilience.State) {
		ctx := context.Background()
		m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("breaker", name),
			attribute.String("from", from.String()),
			attribute.String("to", to.String()),
		))
		if to == resilience.StateOpen {
			m.breakerTrips.Add(ctx, 1, metric.WithAttributes(attribute.String("breaker", name)))
		}
		m.breakerState.Record(ctx, int64(to), metric.WithAttributes(attribute.String("breaker", name)))
		if prev != nil {
			prev(name, from, to)
		}
	}
}

// BindRetry chains a metric recorder onto the policy's OnRetry hook.
func (m *ResilienceMetrics) BindRetry(policy *resilience.RetryPolicy, operation string) {
	prev := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		m.retryTotal.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Int("attempt", attempt),
		))
		m.retryBackoff.Record(context.Background(), backoff.Seconds(), metric.WithAttributes(
			attribute.String("operation", operation),
		))
		if prev != nil {
			prev(attempt, err, backoff)
		}
	}
}

// BindBulkhead chains a metric recorder onto the config's OnReject hook.
// Call it before constructing the bulkhead.
func (m *ResilienceMetrics) BindBulkhead(cfg *resilience.BulkheadConfig) {
	prev := cfg.OnReject
	cfg.OnReject = func(name string) {
		m.bulkheadRejections.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("bulkhead", name),
		))
		if prev != nil {
			prev(name)
		}
	}
}

// BindLimiter chains a metric recorder onto the config's OnLimit hook.
func (m *ResilienceMetrics) BindLimiter(cfg *resilience.RateLimiterConfig) {
	prev := cfg.OnLimit
	cfg.OnLimit = func(name string) {
		m.limiterThrottles.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("limiter", name),
		))
		if prev != nil {
			prev(name)
		}
	}
}
