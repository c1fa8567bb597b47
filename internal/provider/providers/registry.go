// Package providers is the factory registry mapping the closed set of
// provider kinds to their constructors. Adding a backend family means adding
// a case here; the match is exhaustive by construction.
package providers

import (
	"fmt"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/provider/cerebras"
	"github.com/blueberrycongee/jsonmux/internal/provider/fake"
	"github.com/blueberrycongee/jsonmux/internal/provider/groq"
	"github.com/blueberrycongee/jsonmux/internal/provider/openai"
	"github.com/blueberrycongee/jsonmux/internal/provider/vertexai"
	jmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// List returns every registered provider kind.
func List() []provider.Kind {
	return []provider.Kind{
		provider.KindOpenAI,
		provider.KindGroq,
		provider.KindCerebras,
		provider.KindVertex,
		provider.KindFake,
	}
}

// Get returns the factory for a kind, or false for unknown kinds.
func Get(kind provider.Kind) (provider.Factory, bool) {
	switch kind {
	case provider.KindOpenAI:
		return openai.New, true
	case provider.KindGroq:
		return groq.New, true
	case provider.KindCerebras:
		return cerebras.New, true
	case provider.KindVertex:
		return vertexai.New, true
	case provider.KindFake:
		return fake.New, true
	default:
		return nil, false
	}
}

// New builds an adapter for the named kind from its configuration.
func New(kind provider.Kind, cfg types.ProviderConfig, logger *observability.Logger) (provider.Provider, error) {
	factory, ok := Get(kind)
	if !ok {
		return nil, jmerrors.New(jmerrors.CodeInvalidRequest, string(kind), cfg.Model,
			fmt.Sprintf("unknown provider kind %q (available: %v)", kind, List()))
	}
	return factory(cfg, logger)
}
