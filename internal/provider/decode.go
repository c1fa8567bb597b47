package provider

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/blueberrycongee/jsonmux/internal/jsonx"
	jmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// DecodeStructured turns raw model output into a validated JSON value. It
// extracts the first JSON chunk defensively, retries the parse after a
// best-effort sanitize, scrubs spurious array elements, and validates against
// the original caller schema. Whatever the provider echoed back about schema
// enforcement is irrelevant; this validation is the real contract.
func DecodeStructured(providerName, model string, spec types.StructuredOutputSpec, text string) (json.RawMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, jmerrors.New(jmerrors.CodeEmptyResponse, providerName, model,
			"empty response from provider")
	}

	chunk, err := jsonx.ExtractFirstChunk(text)
	if err != nil {
		return nil, jmerrors.New(jmerrors.CodeJSONParse, providerName, model,
			err.Error()).WithRaw(text).WithCause(err)
	}

	var value any
	if err := json.Unmarshal([]byte(chunk), &value); err != nil {
		repaired := jsonx.Sanitize(chunk)
		if err2 := json.Unmarshal([]byte(repaired), &value); err2 != nil {
			return nil, jmerrors.New(jmerrors.CodeJSONParse, providerName, model,
				fmt.Sprintf("invalid JSON in response: %v", err)).WithRaw(text).WithCause(err)
		}
	}

	value = jsonx.ScrubArrays(value)

	if err := ValidateAgainst(spec.Schema, value); err != nil {
		return nil, jmerrors.New(jmerrors.CodeSchemaValidation, providerName, model,
			fmt.Sprintf("schema validation failed for %s: %v", spec.SchemaName, err)).
			WithRaw(chunk).WithCause(err)
	}

	out, err := json.Marshal(value)
	if err != nil {
		return nil, jmerrors.New(jmerrors.CodeProvider, providerName, model,
			fmt.Sprintf("re-encode validated value: %v", err)).WithCause(err)
	}
	return out, nil
}

// ValidateAgainst checks value against the canonical caller schema.
func ValidateAgainst(schema map[string]any, value any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return compiled.Validate(value)
}
