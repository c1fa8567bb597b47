// Package errors defines the unified error taxonomy for structured output
// generation. Adapters raise these typed errors; the client classifies them
// to decide between same-provider retry, cross-provider fallback, and
// failure.
package errors

import (
	"fmt"
	"strings"
)

// Code identifies the failure category.
type Code string

const (
	CodeInvalidRequest     Code = "invalid_request"
	CodeProvider           Code = "provider_error"
	CodeRateLimit          Code = "rate_limit"
	CodeTokenLimit         Code = "token_limit"
	CodeTimeout            Code = "timeout"
	CodeJSONParse          Code = "json_parse_failure"
	CodeSchemaValidation   Code = "schema_validation_failure"
	CodeEmptyResponse      Code = "empty_response"
	CodeSchemaIncompatible Code = "schema_incompatible"
)

// RawPreviewLimit caps the raw-content excerpt carried on errors.
const RawPreviewLimit = 500

// Error is the standardized error for all generation failures. It preserves
// the provider's diagnostic message and a truncated raw-content preview for
// operators.
type Error struct {
	Code       Code
	Provider   string
	Model      string
	StatusCode int
	Message    string
	RawPreview string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] %s (provider=%s, model=%s, status=%d)",
			e.Code, e.Message, e.Provider, e.Model, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s (provider=%s, model=%s)",
		e.Code, e.Message, e.Provider, e.Model)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a typed generation error.
func New(code Code, provider, model, message string) *Error {
	return &Error{
		Code:     code,
		Provider: provider,
		Model:    model,
		Message:  message,
	}
}

// WithStatus attaches the upstream HTTP status code.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// WithRaw attaches a raw-content preview, truncated to RawPreviewLimit.
func (e *Error) WithRaw(raw string) *Error {
	e.RawPreview = Truncate(raw, RawPreviewLimit)
	return e
}

// WithCause attaches an underlying error for errors.Is/As chains.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// FromStatus maps an upstream HTTP failure to a typed error. Recognized
// mappings: 429 is a rate limit, 408 is a timeout, a 400 whose message
// mentions tokens is a token-limit failure; anything else is a generic
// provider error.
func FromStatus(provider, model string, status int, message string) *Error {
	code := CodeProvider
	switch {
	case status == 429:
		code = CodeRateLimit
	case status == 408:
		code = CodeTimeout
	case status == 400 && strings.Contains(strings.ToLower(message), "token"):
		code = CodeTokenLimit
	}
	return New(code, provider, model, message).WithStatus(status)
}

// Truncate shortens s to at most n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
