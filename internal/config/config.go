// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	llmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// Config represents the complete jsonmux configuration.
type Config struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Routing   RoutingConfig             `yaml:"routing"`
	Retry     RetryConfig               `yaml:"retry"`
	Cache     CacheConfig               `yaml:"cache"`
	Audit     AuditConfig               `yaml:"audit"`
	RateLimit RateLimitConfig           `yaml:"rate_limit"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ProviderConfig defines a single provider's credentials and model settings.
type ProviderConfig struct {
	APIKey             string        `yaml:"api_key"`
	Model              string        `yaml:"model"`
	MaxTokens          int           `yaml:"max_tokens"`
	Timeout            time.Duration `yaml:"timeout"`
	BaseURL            string        `yaml:"base_url"`
	Project            string        `yaml:"project"`
	Location           string        `yaml:"location"`
	ServiceAccountPath string        `yaml:"service_account_path"`
}

// RoutingConfig names the primary provider and the fallback order.
type RoutingConfig struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
}

// RetryConfig controls the per-provider retry loop.
type RetryConfig struct {
	MaxAttempts        int           `yaml:"max_attempts"`
	InitialDelay       time.Duration `yaml:"initial_delay"`
	BackoffFactor      float64       `yaml:"backoff_factor"`
	MaxDelay           time.Duration `yaml:"max_delay"`
	OnSchemaValidation bool          `yaml:"on_schema_validation"`
}

// CacheConfig controls the in-flight result cache.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	Capacity int  `yaml:"capacity"`
}

// AuditConfig controls NDJSON audit logging of prompts and responses.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`
}

// RateLimitConfig defines client-side request pacing per provider.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Retry: RetryConfig{
			MaxAttempts:        3,
			InitialDelay:       250 * time.Millisecond,
			BackoffFactor:      2.0,
			MaxDelay:           4 * time.Second,
			OnSchemaValidation: true,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 128,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}

	for name, p := range c.Providers {
		if p.Timeout < 0 {
			return fmt.Errorf("provider %q: timeout cannot be negative", name)
		}
		if p.MaxTokens < 0 {
			return fmt.Errorf("provider %q: max_tokens cannot be negative", name)
		}
	}

	if c.Routing.Primary == "" {
		return fmt.Errorf("routing.primary is required")
	}
	if _, ok := c.Providers[c.Routing.Primary]; !ok {
		return fmt.Errorf("routing.primary %q has no provider block", c.Routing.Primary)
	}
	for _, fb := range c.Routing.Fallbacks {
		if _, ok := c.Providers[fb]; !ok {
			return fmt.Errorf("routing fallback %q has no provider block", fb)
		}
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 5 {
		return fmt.Errorf("retry.max_attempts must be between 1 and 5")
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor must be at least 1")
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity cannot be negative")
	}

	return nil
}

// GetProviderConfig resolves credentials for a named provider.
// Missing credentials are fatal misconfiguration, not retryable failures.
func (c *Config) GetProviderConfig(name string) (types.ProviderConfig, error) {
	p, ok := c.Providers[name]
	if !ok {
		return types.ProviderConfig{}, llmerrors.New(llmerrors.CodeInvalidRequest, name, "",
			fmt.Sprintf("provider %q is not configured", name))
	}
	if p.Model == "" {
		return types.ProviderConfig{}, llmerrors.New(llmerrors.CodeInvalidRequest, name, "",
			fmt.Sprintf("provider %q: model is required", name))
	}
	if p.APIKey == "" && p.Project == "" {
		return types.ProviderConfig{}, llmerrors.New(llmerrors.CodeInvalidRequest, name, p.Model,
			fmt.Sprintf("provider %q: api_key is required", name))
	}

	return types.ProviderConfig{
		APIKey:             p.APIKey,
		Model:              p.Model,
		MaxTokens:          p.MaxTokens,
		Timeout:            p.Timeout,
		BaseURL:            p.BaseURL,
		Project:            p.Project,
		Location:           p.Location,
		ServiceAccountPath: p.ServiceAccountPath,
	}, nil
}
