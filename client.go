package jsonmux

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/blueberrycongee/jsonmux/internal/audit"
	"github.com/blueberrycongee/jsonmux/internal/cache"
	"github.com/blueberrycongee/jsonmux/internal/config"
	"github.com/blueberrycongee/jsonmux/internal/metrics"
	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/router"
	llmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// reasonPreviewLimit bounds the failure reason attached to retry and
// fallback warnings.
const reasonPreviewLimit = 500

// Client obtains schema-constrained JSON from the configured provider chain.
// It owns the attempt order, the retry/fallback state machine, the result
// cache and the audit decorator.
//
// Client is safe for concurrent use by multiple goroutines. Distinct
// fingerprints run fully concurrently; identical concurrent requests share
// one upstream call.
type Client struct {
	routes   *router.Router
	flight   *cache.Flight
	retry    RetryPolicy
	auditCfg audit.Config
	logger   *observability.Logger

	limitCfg RateLimitPolicy
	limitMu  sync.Mutex
	limiters map[string]*rate.Limiter

	manager     *config.Manager
	cancelWatch context.CancelFunc
}

// New creates a jsonmux client.
//
// Example:
//
//	client, err := jsonmux.New(
//	    jsonmux.WithConfigFile("jsonmux.yaml"),
//	    jsonmux.WithProviders("groq", "cerebras"),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.Default()
	}

	c := &Client{
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}

	if cfg.ConfigPath != "" {
		manager, err := config.NewManager(cfg.ConfigPath, logger)
		if err != nil {
			return nil, err
		}
		c.manager = manager
		applyFileConfig(cfg, manager.Get())

		if cfg.HotReload {
			ctx, cancel := context.WithCancel(context.Background())
			if err := manager.Watch(ctx); err != nil {
				cancel()
				return nil, err
			}
			c.cancelWatch = cancel
		}
	}

	if cfg.Primary == "" {
		return nil, llmerrors.New(llmerrors.CodeInvalidRequest, "", "",
			"no primary provider configured")
	}
	if cfg.Retry.MaxAttempts < 1 || cfg.Retry.MaxAttempts > 5 {
		return nil, llmerrors.New(llmerrors.CodeInvalidRequest, "", "",
			fmt.Sprintf("retry attempts must be between 1 and 5, got %d", cfg.Retry.MaxAttempts))
	}
	c.retry = cfg.Retry

	source := cfg.Source
	if source == nil && c.manager != nil {
		source = c.manager
	}
	if source == nil && len(cfg.ProviderInstances) == 0 {
		return nil, llmerrors.New(llmerrors.CodeInvalidRequest, "", "",
			"no provider configuration source")
	}

	c.routes = router.New(cfg.Primary, cfg.Fallbacks, source, logger)
	for name, p := range cfg.ProviderInstances {
		c.routes.Register(name, p)
	}

	if cfg.CacheEnabled {
		c.flight = cache.NewFlight(cfg.CacheCapacity)
	}
	c.auditCfg = cfg.Audit
	c.limitCfg = cfg.RateLimit
	logger.Info("jsonmux client initialized",
		"primary", cfg.Primary,
		"fallbacks", cfg.Fallbacks,
		"cache_enabled", cfg.CacheEnabled,
		"audit_enabled", cfg.Audit.Enabled,
	)

	return c, nil
}

// applyFileConfig fills configuration gaps from the loaded file. Explicit
// options win over file values.
func applyFileConfig(cfg *ClientConfig, file *config.Config) {
	if !cfg.routingSet {
		cfg.Primary = file.Routing.Primary
		cfg.Fallbacks = file.Routing.Fallbacks
	}
	if !cfg.retrySet {
		cfg.Retry = RetryPolicy{
			MaxAttempts:        file.Retry.MaxAttempts,
			InitialDelay:       file.Retry.InitialDelay,
			BackoffFactor:      file.Retry.BackoffFactor,
			MaxDelay:           file.Retry.MaxDelay,
			OnSchemaValidation: file.Retry.OnSchemaValidation,
		}
	}
	if !cfg.cacheSet {
		cfg.CacheEnabled = file.Cache.Enabled
		if file.Cache.Capacity > 0 {
			cfg.CacheCapacity = file.Cache.Capacity
		}
	}
	if !cfg.auditSet {
		cfg.Audit = audit.Config{
			Enabled:  file.Audit.Enabled,
			Dir:      file.Audit.Dir,
			FileName: file.Audit.File,
		}
	}
	if !cfg.rateSet {
		cfg.RateLimit = RateLimitPolicy{
			Enabled:           file.RateLimit.Enabled,
			RequestsPerSecond: file.RateLimit.RequestsPerSecond,
			Burst:             file.RateLimit.Burst,
		}
	}
}

// Close releases the config watcher, if any.
func (c *Client) Close() error {
	if c.cancelWatch != nil {
		c.cancelWatch()
	}
	if c.manager != nil {
		return c.manager.Close()
	}
	return nil
}

// GenerateStructured obtains a JSON value conforming to params.Spec.Schema.
// The returned bytes are an independent copy; callers may retain or mutate
// them freely.
func (c *Client) GenerateStructured(ctx context.Context, params types.GenerateParams) (json.RawMessage, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	req := &provider.Request{
		SystemPrompt: params.SystemPrompt,
		UserPrompt:   params.UserPrompt,
		Spec:         params.Spec,
		MaxTokens:    params.Options.MaxTokens,
		Stop:         params.Options.Stop,
		Seed:         params.Options.Seed,
		Telemetry:    params.Telemetry,
		RequestID:    uuid.NewString(),
	}

	order := c.routes.Order()

	if c.flight == nil {
		return c.generate(ctx, req, order)
	}

	model, err := c.routes.ModelFor(order[0])
	if err != nil {
		return nil, err
	}
	key := cache.Fingerprint(order[0], req.Spec.SchemaName, req.SystemPrompt,
		req.UserPrompt, req.MaxTokens, model)

	wasPending := c.flight.Pending(key)
	invoked := false
	result, err := c.flight.Do(ctx, key, func() (json.RawMessage, error) {
		invoked = true
		return c.generate(ctx, req, order)
	})
	if !invoked && err == nil {
		if wasPending {
			metrics.CacheCoalescedTotal.Inc()
		} else {
			metrics.CacheHitsTotal.Inc()
		}
		metrics.RequestsTotal.WithLabelValues(order[0], model, metrics.OutcomeCached).Inc()
	}
	return result, err
}

func validateParams(params types.GenerateParams) error {
	switch {
	case params.UserPrompt == "":
		return llmerrors.New(llmerrors.CodeInvalidRequest, "", "", "user prompt is required")
	case params.Spec.SchemaName == "":
		return llmerrors.New(llmerrors.CodeInvalidRequest, "", "", "schema name is required")
	case len(params.Spec.Schema) == 0:
		return llmerrors.New(llmerrors.CodeInvalidRequest, "", "", "schema is required")
	}
	return nil
}

// generate walks the provider chain. Attempts within one request are
// strictly sequential; a provider switch happens only on a connectivity
// class failure.
func (c *Client) generate(ctx context.Context, req *provider.Request, order []string) (json.RawMessage, error) {
	var lastErr error

	for i, name := range order {
		p, err := c.routes.Build(name)
		if err != nil {
			// Misconfiguration is fatal for the whole request, not a
			// fallback trigger.
			return nil, err
		}
		p = audit.Wrap(p, c.auditCfg, c.logger)

		result, err := c.attemptProvider(ctx, p, req)
		if err == nil {
			metrics.RequestsTotal.WithLabelValues(p.Name(), p.Model(), metrics.OutcomeSuccess).Inc()
			return result, nil
		}
		lastErr = err
		metrics.RequestsTotal.WithLabelValues(p.Name(), p.Model(), metrics.OutcomeError).Inc()

		class := llmerrors.Classify(err)
		if class != llmerrors.ClassConnectivity || i == len(order)-1 {
			break
		}

		next := order[i+1]
		c.logger.Warn("switching provider",
			"from", name,
			"to", next,
			"class", class.String(),
			"reason", llmerrors.Truncate(c.logger.Redact(err.Error()), reasonPreviewLimit),
			"request_id", req.RequestID,
			"telemetry", req.Telemetry,
		)
		metrics.ProviderSwitchesTotal.WithLabelValues(name, next).Inc()
	}

	// Exhausted: the last provider's error goes back unchanged, preserving
	// its message and raw preview.
	return nil, lastErr
}

// attemptProvider runs the in-provider retry loop. Only post-response JSON
// failures are retried here; everything else fails the provider on the
// first attempt.
func (c *Client) attemptProvider(ctx context.Context, p provider.Provider, req *provider.Request) (json.RawMessage, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.waitLimiter(ctx, p.Name()); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := p.GenerateStructured(ctx, req)
		metrics.AttemptDuration.WithLabelValues(p.Name(), p.Model()).Observe(time.Since(start).Seconds())
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !llmerrors.Retryable(err, c.retry.OnSchemaValidation) || attempt == c.retry.MaxAttempts {
			break
		}

		delay := backoffDelay(c.retry, attempt)
		c.logger.Warn("retrying provider",
			"provider", p.Name(),
			"attempt", attempt,
			"max_attempts", c.retry.MaxAttempts,
			"delay", delay,
			"reason", llmerrors.Truncate(c.logger.Redact(err.Error()), reasonPreviewLimit),
			"request_id", req.RequestID,
			"telemetry", req.Telemetry,
		)
		metrics.RetriesTotal.WithLabelValues(p.Name(), string(errorCode(err))).Inc()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

func (c *Client) waitLimiter(ctx context.Context, name string) error {
	if !c.limitCfg.Enabled {
		return nil
	}
	c.limitMu.Lock()
	lim, ok := c.limiters[name]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.limitCfg.RequestsPerSecond), c.limitCfg.Burst)
		c.limiters[name] = lim
	}
	c.limitMu.Unlock()

	start := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	metrics.RateLimitWait.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return nil
}

// backoffDelay computes initialDelay·factor^(attempt-1), capped at MaxDelay.
func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	d := time.Duration(float64(policy.InitialDelay) * math.Pow(policy.BackoffFactor, float64(attempt-1)))
	if policy.MaxDelay > 0 && d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	return d
}

func errorCode(err error) llmerrors.Code {
	var le *llmerrors.Error
	if errors.As(err, &le) {
		return le.Code
	}
	return llmerrors.CodeProvider
}

// Chat runs the legacy plain-text operation against the primary provider.
func (c *Client) Chat(ctx context.Context, messages []types.ChatMessage, opts types.ChatOptions) (*types.ChatResponse, error) {
	order := c.routes.Order()
	p, err := c.routes.Build(order[0])
	if err != nil {
		return nil, err
	}
	return p.Chat(ctx, messages, opts)
}

// CacheStats reports hit/miss/coalesced counters, or zeros when caching is
// disabled.
func (c *Client) CacheStats() (hits, misses, coalesced uint64) {
	if c.flight == nil {
		return 0, 0, 0
	}
	return c.flight.Stats()
}
