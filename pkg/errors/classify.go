package errors

import (
	"context"
	goerrors "errors"
	"net"
	"regexp"
	"strings"
)

// Class drives the fallback decision for a failed attempt.
type Class int

const (
	// ClassFatal ends the current provider's attempts without switching.
	ClassFatal Class = iota

	// ClassConnectivity is a transport-level failure (reset/DNS/TLS/timeout/
	// 5xx). The only class eligible for a provider switch.
	ClassConnectivity

	// ClassPostResponse is attributable to the response content (JSON or
	// schema). Eligible for same-provider retry, never for a switch.
	ClassPostResponse
)

func (c Class) String() string {
	switch c {
	case ClassConnectivity:
		return "connectivity"
	case ClassPostResponse:
		return "post_response"
	default:
		return "fatal"
	}
}

// Message markers, matched case-insensitively. Post-response markers are
// checked before connectivity markers; a message ambiguously containing both
// classifies as post-response. Call sites depend on this precedence.
var postResponseMarkers = []string{
	"json parse",
	"invalid json",
	"unexpected token",
	"unexpected end of json",
	"schema validation",
	"does not match schema",
	"truncated",
	"empty response",
	"no json",
}

var connectivityMarkers = []string{
	"econnreset",
	"econnrefused",
	"etimedout",
	"eai_again",
	"enotfound",
	"epipe",
	"socket hang up",
	"connection reset",
	"connection refused",
	"dns",
	"tls",
	"certificate",
	"timeout",
	"timed out",
	"fetch failed",
	"service unavailable",
	"bad gateway",
	"internal server error",
}

var genericClientErrPattern = regexp.MustCompile(`\b4\d\d\b`)

// Classify assigns a failure class to err.
//
// Precedence: typed codes, then context/net sentinels, then explicit
// post-response markers, connectivity markers, the generic 4xx pattern, and
// finally the conservative default of "do not switch".
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}

	var ge *Error
	if goerrors.As(err, &ge) {
		switch ge.Code {
		case CodeJSONParse, CodeSchemaValidation, CodeEmptyResponse:
			return ClassPostResponse
		case CodeTimeout:
			return ClassConnectivity
		case CodeRateLimit, CodeTokenLimit, CodeInvalidRequest, CodeSchemaIncompatible:
			return ClassFatal
		case CodeProvider:
			if ge.StatusCode >= 500 {
				return ClassConnectivity
			}
			if ge.StatusCode >= 400 {
				return ClassFatal
			}
			// No status attached; fall through to message scanning.
		}
	}

	if goerrors.Is(err, context.DeadlineExceeded) {
		return ClassConnectivity
	}
	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return ClassConnectivity
	}

	msg := strings.ToLower(err.Error())
	for _, m := range postResponseMarkers {
		if strings.Contains(msg, m) {
			return ClassPostResponse
		}
	}
	for _, m := range connectivityMarkers {
		if strings.Contains(msg, m) {
			return ClassConnectivity
		}
	}
	if genericClientErrPattern.MatchString(msg) {
		return ClassFatal
	}
	return ClassFatal
}

// Retryable reports whether err warrants another attempt on the same
// provider. Only post-response failures qualify; schema validation failures
// are gated behind retryOnValidation.
func Retryable(err error, retryOnValidation bool) bool {
	var ge *Error
	if !goerrors.As(err, &ge) {
		return false
	}
	switch ge.Code {
	case CodeJSONParse, CodeEmptyResponse:
		return true
	case CodeSchemaValidation:
		return retryOnValidation
	default:
		return false
	}
}
