package broker

import (
	"fmt"
	"strings"
)

// DefaultBaseURL is the Alpaca paper-trading endpoint.
const DefaultBaseURL = "https://paper-api.alpaca.markets"

// Config holds broker connection settings.
type Config struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	APISecret string `yaml:"api_secret" mapstructure:"api_secret"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// MaxConcurrent caps in-flight requests to the broker. 0 disables the cap.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	// RequestsPerSecond paces requests client-side so bursts do not trip
	// the broker's rate limits. 0 disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	// RateBurst is the token bucket size when pacing is enabled.
	RateBurst int `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 10
	}
	if c.UserAgent == "" {
		c.UserAgent = "alphakit-broker/1.0"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("broker.base_url must be an http(s) URL (got: %q)", c.BaseURL)
	}
	if c.APIKey == "" {
		return fmt.Errorf("broker.api_key is required")
	}
	if c.APISecret == "" {
		return fmt.Errorf("broker.api_secret is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("broker.timeout must be non-negative (got: %d)", c.Timeout)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("broker.max_concurrent must be non-negative (got: %d)", c.MaxConcurrent)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("broker.requests_per_second must be non-negative (got: %g)", c.RequestsPerSecond)
	}
	return nil
}
