package config

import (
	"fmt"
	"time"

	"github.com/autoquant/alphakit/assets"
	"github.com/autoquant/alphakit/broker"
	"github.com/autoquant/alphakit/margin"
	"github.com/autoquant/alphakit/observability"
	"github.com/autoquant/alphakit/resilience"
	"github.com/autoquant/alphakit/server"
	"github.com/autoquant/alphakit/validation"
)

// RetryConfig is the file/env-facing shape of a retry policy. Durations are
// integer milliseconds so they round-trip cleanly through env vars.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,gte=1"`
	InitialBackoffMS int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms" validate:"gte=0"`
	BackoffFactor    float64 `yaml:"backoff_factor" mapstructure:"backoff_factor" validate:"gte=0"`
	MaxBackoffMS     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms" validate:"gte=0"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`
}

// ApplyDefaults fills unset fields from the default retry policy.
func (c *RetryConfig) ApplyDefaults() {
	def := resilience.DefaultRetryPolicy()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoffMS == 0 {
		c.InitialBackoffMS = int(def.InitialBackoff / time.Millisecond)
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = def.BackoffFactor
	}
	if c.MaxBackoffMS == 0 {
		c.MaxBackoffMS = int(def.MaxBackoff / time.Millisecond)
	}
	if c.Jitter == 0 {
		c.Jitter = def.Jitter
	}
}

// ToPolicy converts the config to a runtime retry policy.
func (c RetryConfig) ToPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: time.Duration(c.InitialBackoffMS) * time.Millisecond,
		BackoffFactor:  c.BackoffFactor,
		MaxBackoff:     time.Duration(c.MaxBackoffMS) * time.Millisecond,
		Jitter:         c.Jitter,
	}
}

// BreakerConfig is the file/env-facing shape of a circuit breaker.
// OpenDuration is integer seconds.
type BreakerConfig struct {
	FailureThreshold  int `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"omitempty,gte=1"`
	OpenDuration      int `yaml:"open_duration" mapstructure:"open_duration" validate:"gte=0"` // seconds
	CloseThreshold    int `yaml:"close_threshold" mapstructure:"close_threshold" validate:"omitempty,gte=1"`
	HalfOpenMaxProbes int `yaml:"half_open_max_probes" mapstructure:"half_open_max_probes" validate:"omitempty,gte=1"`
}

// ApplyDefaults fills unset fields from the default breaker config.
func (c *BreakerConfig) ApplyDefaults() {
	def := resilience.DefaultCircuitBreakerConfig("")
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.OpenDuration == 0 {
		c.OpenDuration = int(def.OpenDuration / time.Second)
	}
	if c.CloseThreshold == 0 {
		c.CloseThreshold = def.CloseThreshold
	}
	if c.HalfOpenMaxProbes == 0 {
		c.HalfOpenMaxProbes = def.HalfOpenMaxProbes
	}
}

// ToBreakerConfig converts the config to a runtime breaker config for the
// named resource.
func (c BreakerConfig) ToBreakerConfig(name string) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		Name:              name,
		FailureThreshold:  c.FailureThreshold,
		OpenDuration:      time.Duration(c.OpenDuration) * time.Second,
		CloseThreshold:    c.CloseThreshold,
		HalfOpenMaxProbes: c.HalfOpenMaxProbes,
	}
}

// FaultConfig configures the randomized fault injector for stress runs.
// The seed is part of the config so a failing run can be replayed exactly.
type FaultConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Seed        int64   `yaml:"seed" mapstructure:"seed"`
	FailureRate float64 `yaml:"failure_rate" mapstructure:"failure_rate" validate:"gte=0,lte=1"`
	BurstAfter  int     `yaml:"burst_after" mapstructure:"burst_after" validate:"gte=0"`
	BurstLength int     `yaml:"burst_length" mapstructure:"burst_length" validate:"gte=0"`
}

// ToRandomFaultConfig converts the config to a runtime injector config.
func (c FaultConfig) ToRandomFaultConfig() resilience.RandomFaultConfig {
	return resilience.RandomFaultConfig{
		Seed:        c.Seed,
		FailureRate: c.FailureRate,
		BurstAfter:  c.BurstAfter,
		BurstLength: c.BurstLength,
	}
}

// AssetsConfig tunes the asset metadata cache. TTL is integer seconds; an
// empty snapshot path disables disk persistence.
type AssetsConfig struct {
	TTL          int    `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"` // seconds
	SnapshotPath string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
}

// ApplyDefaults fills the TTL from the registry default.
func (c *AssetsConfig) ApplyDefaults() {
	if c.TTL == 0 {
		c.TTL = int(assets.DefaultTTL / time.Second)
	}
}

// TelemetryConfig tunes the OTLP export pipelines. Interval is integer
// seconds. When Enabled is false no exporters are started.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   int     `yaml:"interval" mapstructure:"interval" validate:"gte=0"` // seconds
}

// ApplyDefaults fills unset fields from the development defaults.
func (c *TelemetryConfig) ApplyDefaults() {
	def := observability.DefaultTracerConfig("")
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
		c.Insecure = def.Insecure
	}
	if c.SampleRate == 0 {
		c.SampleRate = def.SampleRate
	}
	if c.Interval == 0 {
		c.Interval = int(observability.DefaultMeterConfig("").Interval / time.Second)
	}
}

// ToTracerConfig builds the tracer init config, stamping the service
// identity from the top-level service section.
func (c TelemetryConfig) ToTracerConfig(svc ServiceConfig) observability.TracerConfig {
	return observability.TracerConfig{
		ServiceName:    svc.Name,
		ServiceVersion: svc.Version,
		Environment:    svc.Environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}

// ToMeterConfig builds the meter init config.
func (c TelemetryConfig) ToMeterConfig(svc ServiceConfig) observability.MeterConfig {
	return observability.MeterConfig{
		ServiceName:    svc.Name,
		ServiceVersion: svc.Version,
		Environment:    svc.Environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		Interval:       time.Duration(c.Interval) * time.Second,
	}
}

// AppConfig is the root configuration for a trading service.
type AppConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Broker    broker.Config   `yaml:"broker" mapstructure:"broker"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Fault     FaultConfig     `yaml:"fault" mapstructure:"fault"`
	Assets    AssetsConfig    `yaml:"assets" mapstructure:"assets"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Margin    margin.Config   `yaml:"margin" mapstructure:"margin"`
	Server    server.Config   `yaml:"server" mapstructure:"server"`
}

// ApplyDefaults fills unset fields on every section.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Broker.ApplyDefaults()
	c.Retry.ApplyDefaults()
	c.Breaker.ApplyDefaults()
	c.Assets.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.Margin.ApplyDefaults()
	c.Server.ApplyDefaults()
}

// Validate checks every section and the struct tags.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := c.Margin.Validate(); err != nil {
		return fmt.Errorf("margin: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return validation.Struct(c)
}

// Load reads, defaults, and validates the full application configuration.
func Load(serviceName string, opts ...LoaderOption) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
