// Package jsonx locates and repairs JSON payloads embedded in model output.
// Models wrap JSON in markdown fences, prepend prose, leave comments, or drop
// the closing fence entirely; everything here is defensive against that.
package jsonx

import (
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON object or array can be located.
var ErrNoJSON = errors.New("no JSON object or array found in content")

// ErrTruncated is returned when an opening bracket is found but the value
// never closes. The caller surfaces this as a parse failure with the raw
// preview attached.
var ErrTruncated = errors.New("truncated JSON: value never closes")

// ExtractFirstChunk returns the first complete JSON object or array inside
// content. It understands fenced blocks (```json ... ``` with or without the
// closing fence), leading and trailing prose, and scans with string/escape
// awareness so brackets inside string literals do not confuse it.
func ExtractFirstChunk(content string) (string, error) {
	s := strings.TrimSpace(content)
	if s == "" {
		return "", ErrNoJSON
	}

	// Only unwrap a fence that opens before any JSON does; a fence after the
	// value is trailing prose.
	if open := strings.Index(s, "```"); open >= 0 {
		if first := strings.IndexAny(s, "{["); first < 0 || open < first {
			if fenced, ok := stripFence(s); ok {
				s = fenced
			}
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}

	end, ok := scanBalanced(s, start)
	if !ok {
		return "", ErrTruncated
	}
	return s[start : end+1], nil
}

// stripFence unwraps the first markdown code fence, tolerating a missing
// terminator. The language tag (```json) is dropped with the fence line.
func stripFence(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", false
	}
	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// Discard the rest of the fence line (e.g. "json").
		firstLine := strings.TrimSpace(body[:nl])
		if firstLine == "" || isFenceTag(firstLine) {
			body = body[nl+1:]
		}
	} else {
		return "", false
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// scanBalanced walks from the opening bracket at start and returns the index
// of its matching close. String literals and escapes are honored.
func scanBalanced(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Sanitize is a best-effort repair pass applied before a second parse
// attempt: it strips // and /* */ comments and trailing commas, leaving
// string literals untouched.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++ // skip the trailing '/'
		default:
			b.WriteByte(c)
		}
	}

	return stripTrailingCommas(b.String())
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ScrubArrays drops spurious empty-string and null elements from every array
// in the decoded value. Providers occasionally pad arrays with them.
func ScrubArrays(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, el := range t {
			if el == nil {
				continue
			}
			if s, ok := el.(string); ok && s == "" {
				continue
			}
			out = append(out, ScrubArrays(el))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = ScrubArrays(el)
		}
		return out
	default:
		return v
	}
}
