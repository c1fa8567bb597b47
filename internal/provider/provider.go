// Package provider defines the adapter contract for structured generation.
// Each backend family implements Provider; everything above it (router,
// cache, audit, client) only sees this interface.
package provider

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// Request is the fully resolved input for one provider attempt.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Spec         types.StructuredOutputSpec
	MaxTokens    int
	Stop         []string
	Seed         *int

	// Telemetry is opaque caller context, passed through to logs untouched.
	Telemetry map[string]any

	// RequestID correlates logs and audit records for one logical request.
	RequestID string
}

// Provider is implemented once per backend family.
type Provider interface {
	// Name returns the provider identifier (e.g. "groq", "cerebras").
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// GenerateStructured runs one structured generation attempt and returns
	// the validated JSON value. All failures are typed pkg/errors values.
	GenerateStructured(ctx context.Context, req *Request) (json.RawMessage, error)

	// Chat is the legacy plain-text operation.
	Chat(ctx context.Context, messages []types.ChatMessage, opts types.ChatOptions) (*types.ChatResponse, error)
}

// Kind enumerates the closed set of backend families. Selection happens via
// an exhaustive match in the providers registry, not runtime shape
// inspection.
type Kind string

const (
	KindOpenAI   Kind = "openai"
	KindGroq     Kind = "groq"
	KindCerebras Kind = "cerebras"
	KindVertex   Kind = "vertexai"
	KindFake     Kind = "fake"
)

// Factory creates a provider from its externally supplied configuration.
type Factory func(cfg types.ProviderConfig, logger *observability.Logger) (Provider, error)
