// Package openai implements the OpenAI provider adapter.
// API Reference: https://platform.openai.com/docs/api-reference
package openai

import (
	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/provider/openailike"
	"github.com/blueberrycongee/jsonmux/internal/schemacompat"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// New creates a new OpenAI provider instance.
func New(cfg types.ProviderConfig, logger *observability.Logger) (provider.Provider, error) {
	c, err := openailike.New(cfg, openailike.Info{
		Name:           ProviderName,
		DefaultBaseURL: DefaultBaseURL,
		Profile:        schemacompat.ProfileOpenAI,
	}, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
