// Package fake provides a deterministic in-process provider for tests and
// offline development. Responses are either canned or synthesized minimally
// from the schema, and every call is observable.
package fake

import (
	"context"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// ProviderName is the identifier for this provider.
const ProviderName = "fake"

// Client is the deterministic fake adapter.
type Client struct {
	model string

	// Response, when set, is returned verbatim.
	Response json.RawMessage

	// Errs are returned in order, one per call, before Response kicks in.
	Errs []error

	calls atomic.Int64
}

// New creates a new fake provider instance.
func New(cfg types.ProviderConfig, _ *observability.Logger) (provider.Provider, error) {
	model := cfg.Model
	if model == "" {
		model = "fake-model"
	}
	return &Client{model: model}, nil
}

// NewWith creates a fake returning the given response and error script.
// Intended for tests.
func NewWith(response json.RawMessage, errs ...error) *Client {
	return &Client{model: "fake-model", Response: response, Errs: errs}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return ProviderName }

// Model returns the configured model.
func (c *Client) Model() string { return c.model }

// Calls reports how many generation calls were made.
func (c *Client) Calls() int64 { return c.calls.Load() }

// GenerateStructured implements provider.Provider.
func (c *Client) GenerateStructured(ctx context.Context, req *provider.Request) (json.RawMessage, error) {
	n := c.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int(n) <= len(c.Errs) {
		return nil, c.Errs[n-1]
	}
	if c.Response != nil {
		out := make(json.RawMessage, len(c.Response))
		copy(out, c.Response)
		return out, nil
	}
	value := synthesize(req.Spec.Schema)
	return json.Marshal(value)
}

// Chat implements the legacy plain-text operation.
func (c *Client) Chat(ctx context.Context, messages []types.ChatMessage, _ types.ChatOptions) (*types.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return &types.ChatResponse{Content: "echo: " + last, Model: c.model}, nil
}

// synthesize builds a minimal instance of the schema: every declared
// property present, zero values per type.
func synthesize(schema map[string]any) any {
	switch t, _ := schema["type"].(string); t {
	case "object":
		out := map[string]any{}
		if props, ok := schema["properties"].(map[string]any); ok {
			for name, sub := range props {
				if subSchema, ok := sub.(map[string]any); ok {
					out[name] = synthesize(subSchema)
				} else {
					out[name] = nil
				}
			}
		}
		return out
	case "array":
		return []any{}
	case "string":
		return "ok"
	case "number", "integer":
		return 0
	case "boolean":
		return false
	case "null":
		return nil
	default:
		if variants, ok := schema["anyOf"].([]any); ok && len(variants) > 0 {
			if first, ok := variants[0].(map[string]any); ok {
				return synthesize(first)
			}
		}
		return map[string]any{}
	}
}
