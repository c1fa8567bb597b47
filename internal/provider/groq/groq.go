// Package groq implements the Groq provider adapter. Groq exposes an
// OpenAI-compatible endpoint with the same strict structured-output dialect.
// API Reference: https://console.groq.com/docs/api-reference
package groq

import (
	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/provider/openailike"
	"github.com/blueberrycongee/jsonmux/internal/schemacompat"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "groq"

	// DefaultBaseURL is the default Groq API endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
)

// New creates a new Groq provider instance.
func New(cfg types.ProviderConfig, logger *observability.Logger) (provider.Provider, error) {
	c, err := openailike.New(cfg, openailike.Info{
		Name:           ProviderName,
		DefaultBaseURL: DefaultBaseURL,
		Profile:        schemacompat.ProfileGroq,
	}, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
