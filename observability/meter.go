package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/autoquant/alphakit/logger"
)

// MeterConfig configures the OTLP metric export pipeline.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The returned provider must be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the service's metric instruments. HTTP traffic is measured
// by the request middleware; trading operations (order submission, margin
// polls, asset fetches) report through RecordOperation with their outcome.
type Metrics struct {
	serviceAttr attribute.KeyValue

	requestTotal      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	requestActive     metric.Int64UpDownCounter
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	errorTotal        metric.Int64Counter
}

// NewMetrics creates the instrument set on the given meter. The service name
// is stamped on every data point so fleets can be broken down per service.
func NewMetrics(meter metric.Meter, serviceName string) (*Metrics, error) {
	m := &Metrics{serviceAttr: attribute.String("service", serviceName)}

	var err error
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		if c, err = meter.Int64Counter(name, metric.WithDescription(desc)); err != nil {
			err = fmt.Errorf("creating %s counter: %w", name, err)
		}
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		if h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s")); err != nil {
			err = fmt.Errorf("creating %s histogram: %w", name, err)
		}
		return h
	}

	m.requestTotal = counter("http.request.total", "Completed HTTP requests")
	m.requestDuration = histogram("http.request.duration", "HTTP request latency in seconds")
	m.operationTotal = counter("trading.operation.total", "Completed trading operations by outcome")
	m.operationDuration = histogram("trading.operation.duration", "Trading operation latency in seconds")
	m.errorTotal = counter("trading.error.total", "Errors by code and operation")
	if err == nil {
		if m.requestActive, err = meter.Int64UpDownCounter("http.request.active",
			metric.WithDescription("In-flight HTTP requests")); err != nil {
			err = fmt.Errorf("creating http.request.active gauge: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequestStart increments the in-flight request gauge.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements the in-flight gauge and records the completed
// request under its method, route, and status class.
func (m *Metrics) RecordRequestEnd(ctx context.Context, method, route, status string, duration time.Duration) {
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		m.serviceAttr,
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		m.serviceAttr,
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// RecordOperation records a trading operation and its outcome.
func (m *Metrics) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	m.operationTotal.Add(ctx, 1, metric.WithAttributes(
		m.serviceAttr,
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		m.serviceAttr,
		attribute.String("operation", operation),
	))
}

// RecordError counts an error under its machine-readable code.
func (m *Metrics) RecordError(ctx context.Context, code, operation string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		m.serviceAttr,
		attribute.String("code", code),
		attribute.String("operation", operation),
	))
}
