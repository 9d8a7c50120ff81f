// Package observability provides OpenTelemetry tracing and metrics for the
// trading stack, plus health aggregation across its components.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("autoquant"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanBrokerCall)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("autoquant"))
//	defer mp.Shutdown(ctx)
//
//	rm, err := observability.NewResilienceMetrics(observability.Meter("autoquant"))
//	rm.BindBreaker(&breakerConfig) // before NewCircuitBreaker
//	rm.BindRetry(&retryPolicy, "submit_order")
//
// Health:
//
//	health := observability.NewServiceHealth("autoquant", version.Version)
//	health.AddComponent(observability.BreakerHealth(breaker))
package observability
