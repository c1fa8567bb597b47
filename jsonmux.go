// Package jsonmux obtains schema-constrained JSON from multiple LLM
// providers reliably. It rewrites a caller-supplied JSON Schema into each
// provider's strict structured-output dialect, retries and falls back based
// on a failure taxonomy, coalesces concurrent identical requests, and can
// audit every call to an append-only NDJSON log.
//
// Basic usage:
//
//	client, err := jsonmux.New(
//	    jsonmux.WithConfigFile("jsonmux.yaml"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	out, err := jsonmux.Generate[Recipe](ctx, client, jsonmux.GenerateParams{
//	    UserPrompt: "A recipe for shakshuka.",
//	    Spec: jsonmux.StructuredOutputSpec{
//	        SchemaName: "recipe",
//	        Schema:     recipeSchema,
//	    },
//	})
package jsonmux

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// Re-exported request and response types.
type (
	GenerateParams       = types.GenerateParams
	GenerateOptions      = types.GenerateOptions
	StructuredOutputSpec = types.StructuredOutputSpec
	ProviderConfig       = types.ProviderConfig
	ChatMessage          = types.ChatMessage
	ChatOptions          = types.ChatOptions
	ChatResponse         = types.ChatResponse

	// Error is the typed failure returned by every operation.
	Error = errors.Error
)

// Generate runs a structured generation and unmarshals the result into T.
func Generate[T any](ctx context.Context, c *Client, params GenerateParams) (T, error) {
	var out T
	raw, err := c.GenerateStructured(ctx, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.New(errors.CodeJSONParse, "", "", "decode result: "+err.Error())
	}
	return out, nil
}
