// Package types defines the public request and configuration contracts for
// structured output generation. All provider adapters and the client operate
// on these shapes.
package types

import "time"

// StructuredOutputSpec is the provider-agnostic contract for one generation:
// the canonical JSON Schema the final value must satisfy, plus the name
// providers surface in their strict structured-output modes.
type StructuredOutputSpec struct {
	// Schema is the canonical JSON Schema as a decoded tree. It is never
	// mutated; provider adapters derive compatibility rewrites from copies.
	Schema map[string]any

	// SchemaName identifies the schema to the provider (response_format name).
	SchemaName string

	// Description is an optional human-readable summary injected into the
	// guardrail instruction.
	Description string
}

// GenerateOptions bound a single generation.
type GenerateOptions struct {
	MaxTokens int
	Stop      []string
	Seed      *int
}

// GenerateParams describes one structured generation request.
type GenerateParams struct {
	SystemPrompt string
	UserPrompt   string
	Spec         StructuredOutputSpec
	Options      GenerateOptions

	// Telemetry is an opaque caller-supplied context. It is attached to log
	// and audit records but never inspected or modified.
	Telemetry map[string]any
}

// ProviderConfig holds the externally supplied configuration for one
// provider. A missing APIKey or Model is a fatal configuration error; it is
// never silently defaulted.
type ProviderConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	BaseURL   string

	// Vertex AI specifics.
	Project            string
	Location           string
	ServiceAccountPath string
}

// ChatMessage is the legacy plain-chat message shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions bound a legacy plain-chat call.
type ChatOptions struct {
	MaxTokens int
	Stop      []string
}

// ChatResponse is the legacy plain-chat result.
type ChatResponse struct {
	Content string
	Model   string
}
