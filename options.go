package jsonmux

import (
	"time"

	"github.com/blueberrycongee/jsonmux/internal/audit"
	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/router"
)

// RetryPolicy bounds the in-provider retry loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per provider (1-5).
	MaxAttempts int
	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration
	// BackoffFactor multiplies the delay after each failed attempt.
	BackoffFactor float64
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// OnSchemaValidation extends retry eligibility to schema-validation
	// failures, not just parse/empty-response failures.
	OnSchemaValidation bool
}

// RateLimitPolicy paces outgoing attempts per provider.
type RateLimitPolicy struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// ClientConfig holds all configuration for the jsonmux client.
type ClientConfig struct {
	// ConfigPath loads providers, routing and policies from a YAML file.
	ConfigPath string
	// HotReload watches ConfigPath and applies changes atomically.
	HotReload bool

	// Source overrides file-based provider credential lookup.
	Source router.ConfigSource

	// Routing
	Primary   string
	Fallbacks []string

	// Pre-built adapters keyed by provider name, bypassing construction
	// from configuration. Used for custom transports and in tests.
	ProviderInstances map[string]provider.Provider

	Retry RetryPolicy

	// Caching
	CacheEnabled  bool
	CacheCapacity int

	Audit     audit.Config
	RateLimit RateLimitPolicy

	Logger *observability.Logger

	// Track which sections were set explicitly so file values only fill
	// the gaps.
	routingSet bool
	retrySet   bool
	cacheSet   bool
	auditSet   bool
	rateSet    bool
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

// defaultConfig returns sensible defaults.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		Retry: RetryPolicy{
			MaxAttempts:        3,
			InitialDelay:       250 * time.Millisecond,
			BackoffFactor:      2.0,
			MaxDelay:           4 * time.Second,
			OnSchemaValidation: true,
		},
		CacheEnabled:      true,
		CacheCapacity:     128,
		ProviderInstances: make(map[string]provider.Provider),
	}
}

// WithConfigFile loads providers, routing and policies from a YAML file.
// Values set by other options take precedence over the file.
func WithConfigFile(path string) Option {
	return func(c *ClientConfig) {
		c.ConfigPath = path
	}
}

// WithHotReload watches the config file and applies provider credential
// changes atomically. Only meaningful together with WithConfigFile.
func WithHotReload() Option {
	return func(c *ClientConfig) {
		c.HotReload = true
	}
}

// WithConfigSource sets a custom provider credential accessor.
func WithConfigSource(src router.ConfigSource) Option {
	return func(c *ClientConfig) {
		c.Source = src
	}
}

// WithProviders sets the primary provider and the fallback chain.
//
// Example:
//
//	jsonmux.WithProviders("groq", "cerebras", "openai")
func WithProviders(primary string, fallbacks ...string) Option {
	return func(c *ClientConfig) {
		c.Primary = primary
		c.Fallbacks = fallbacks
		c.routingSet = true
	}
}

// WithProviderInstance installs a pre-built adapter for a provider name.
func WithProviderInstance(name string, p provider.Provider) Option {
	return func(c *ClientConfig) {
		c.ProviderInstances[name] = p
	}
}

// WithRetry sets the in-provider retry policy.
func WithRetry(policy RetryPolicy) Option {
	return func(c *ClientConfig) {
		c.Retry = policy
		c.retrySet = true
	}
}

// WithCache sets the result cache capacity. A capacity of zero keeps the
// default.
func WithCache(capacity int) Option {
	return func(c *ClientConfig) {
		c.CacheEnabled = true
		c.cacheSet = true
		if capacity > 0 {
			c.CacheCapacity = capacity
		}
	}
}

// WithoutCache disables result caching and in-flight coalescing.
func WithoutCache() Option {
	return func(c *ClientConfig) {
		c.CacheEnabled = false
		c.cacheSet = true
	}
}

// WithAudit enables NDJSON audit logging of every structured call.
func WithAudit(cfg audit.Config) Option {
	return func(c *ClientConfig) {
		cfg.Enabled = true
		c.Audit = cfg
		c.auditSet = true
	}
}

// WithRateLimit paces outgoing attempts per provider.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *ClientConfig) {
		c.RateLimit = RateLimitPolicy{
			Enabled:           true,
			RequestsPerSecond: requestsPerSecond,
			Burst:             burst,
		}
		c.rateSet = true
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *observability.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}
