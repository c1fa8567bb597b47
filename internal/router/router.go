// Package router resolves the provider attempt order and builds one adapter
// per provider from externally supplied configuration.
package router

import (
	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/provider/providers"
	jmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// ConfigSource is the external provider-configuration accessor. A missing
// API key or model must surface as a fatal error from the accessor or from
// the adapter constructor; it is never defaulted or skipped.
type ConfigSource interface {
	GetProviderConfig(name string) (types.ProviderConfig, error)
}

// Router computes the attempt order and constructs adapters.
type Router struct {
	primary   string
	fallbacks []string
	source    ConfigSource
	logger    *observability.Logger

	// instances are pre-built adapters that bypass construction, keyed by
	// provider name. Used for injection in tests.
	instances map[string]provider.Provider
}

// New creates a router for the configured primary and fallback chain.
func New(primary string, fallbacks []string, source ConfigSource, logger *observability.Logger) *Router {
	return &Router{
		primary:   primary,
		fallbacks: fallbacks,
		source:    source,
		logger:    logger,
		instances: make(map[string]provider.Provider),
	}
}

// Register installs a pre-built adapter for a provider name.
func (r *Router) Register(name string, p provider.Provider) {
	r.instances[name] = p
}

// Order returns the attempt order: the primary followed by the fallback
// chain with duplicates removed.
func (r *Router) Order() []string {
	seen := map[string]bool{}
	order := make([]string, 0, 1+len(r.fallbacks))
	for _, name := range append([]string{r.primary}, r.fallbacks...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	return order
}

// Build returns the adapter for a provider name, constructing it from
// configuration unless an instance was registered.
func (r *Router) Build(name string) (provider.Provider, error) {
	if p, ok := r.instances[name]; ok {
		return p, nil
	}
	if r.source == nil {
		return nil, jmerrors.New(jmerrors.CodeInvalidRequest, name, "",
			"no configuration source for provider")
	}
	cfg, err := r.source.GetProviderConfig(name)
	if err != nil {
		return nil, err
	}
	return providers.New(provider.Kind(name), cfg, r.logger)
}

// ModelFor reports the configured model for a provider name, used for the
// cache fingerprint. Registered instances answer directly.
func (r *Router) ModelFor(name string) (string, error) {
	if p, ok := r.instances[name]; ok {
		return p.Model(), nil
	}
	if r.source == nil {
		return "", jmerrors.New(jmerrors.CodeInvalidRequest, name, "",
			"no configuration source for provider")
	}
	cfg, err := r.source.GetProviderConfig(name)
	if err != nil {
		return "", err
	}
	return cfg.Model, nil
}
