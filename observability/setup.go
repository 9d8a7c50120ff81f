package observability

import (
	"context"
	"errors"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry owns the process-wide trace and metric pipelines and the
// instrument set built on them. One instance is created at startup from the
// telemetry section of the service config.
type Telemetry struct {
	// Metrics is the shared instrument set; hand it to the request metrics
	// middleware and the broker client.
	Metrics *Metrics

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Setup initializes both OTLP pipelines and the metric instruments. On any
// failure the already-started pipeline is shut down so nothing leaks.
func Setup(ctx context.Context, tracerCfg TracerConfig, meterCfg MeterConfig) (*Telemetry, error) {
	tp, err := InitTracer(ctx, tracerCfg)
	if err != nil {
		return nil, err
	}

	mp, err := InitMeter(ctx, &meterCfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	metrics, err := NewMetrics(mp.Meter(meterCfg.ServiceName), meterCfg.ServiceName)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	return &Telemetry{
		Metrics:        metrics,
		tracerProvider: tp,
		meterProvider:  mp,
	}, nil
}

// Shutdown flushes and stops both pipelines.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.tracerProvider.Shutdown(ctx),
		t.meterProvider.Shutdown(ctx),
	)
}
