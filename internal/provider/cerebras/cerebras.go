// Package cerebras implements the Cerebras provider adapter. Cerebras speaks
// the OpenAI chat-completions dialect but keys strict schemas under $defs
// with a $ref root, and its structured-output state machine can time out
// compiling large schemas, in which case a plain json_object retry usually
// succeeds.
// API Reference: https://inference-docs.cerebras.ai/api-reference
package cerebras

import (
	"context"
	goerrors "errors"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/provider/openailike"
	"github.com/blueberrycongee/jsonmux/internal/schemacompat"
	jmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "cerebras"

	// DefaultBaseURL is the default Cerebras API endpoint.
	DefaultBaseURL = "https://api.cerebras.ai/v1"
)

// Client wraps the shared OpenAI-compatible base with the Cerebras schema
// envelope and the json_object fallback.
type Client struct {
	*openailike.Client
	logger *observability.Logger
}

// New creates a new Cerebras provider instance.
func New(cfg types.ProviderConfig, logger *observability.Logger) (provider.Provider, error) {
	base, err := openailike.New(cfg, openailike.Info{
		Name:           ProviderName,
		DefaultBaseURL: DefaultBaseURL,
		Profile:        schemacompat.ProfileCerebras,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &Client{Client: base, logger: logger}, nil
}

// GenerateStructured overrides the base to wrap the transformed schema under
// $defs and to retry once in json_object mode when the structured-output
// state machine times out.
func (c *Client) GenerateStructured(ctx context.Context, req *provider.Request) (json.RawMessage, error) {
	schema, err := c.CompatSchema(req.Spec)
	if err != nil {
		return nil, err
	}

	env := c.BuildEnvelope(req, &openailike.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &openailike.JSONSchemaFormat{
			Name:   req.Spec.SchemaName,
			Schema: schemacompat.WrapInDefs(req.Spec.SchemaName, schema),
			Strict: true,
		},
	})

	text, err := c.Complete(ctx, env)
	if err != nil {
		if !isStateMachineTimeout(err) {
			return nil, err
		}
		c.logger.Warn("structured-output state machine timed out, retrying in json_object mode",
			"provider", ProviderName,
			"schema", req.Spec.SchemaName,
			"request_id", req.RequestID,
		)
		env.ResponseFormat = &openailike.ResponseFormat{Type: "json_object"}
		text, err = c.Complete(ctx, env)
		if err != nil {
			return nil, err
		}
	}

	return provider.DecodeStructured(ProviderName, c.Model(), req.Spec, text)
}

// isStateMachineTimeout detects the Cerebras 400 raised when schema
// compilation for strict mode exceeds its budget.
func isStateMachineTimeout(err error) bool {
	var ge *jmerrors.Error
	if !goerrors.As(err, &ge) || ge.StatusCode != 400 {
		return false
	}
	msg := strings.ToLower(ge.Message)
	return strings.Contains(msg, "state machine") || strings.Contains(msg, "state-machine")
}
