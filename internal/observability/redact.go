package observability

import "regexp"

// Redactor masks credentials before they reach logs or audit files.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a redactor covering the key formats of the providers
// this library talks to, plus bearer tokens.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.AddPattern(`sk-[a-zA-Z0-9\-_]{20,}`, "[REDACTED_API_KEY]")
	r.AddPattern(`gsk_[a-zA-Z0-9]{20,}`, "[REDACTED_GROQ_KEY]")
	r.AddPattern(`csk-[a-zA-Z0-9]{20,}`, "[REDACTED_CEREBRAS_KEY]")
	r.AddPattern(`AIza[a-zA-Z0-9\-_]{35}`, "[REDACTED_GOOGLE_KEY]")
	r.AddPattern(`Bearer\s+[a-zA-Z0-9\-_\.]+`, "Bearer [REDACTED]")
	return r
}

// AddPattern registers a custom redaction pattern. Invalid expressions are
// ignored.
func (r *Redactor) AddPattern(expr, replacement string) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return
	}
	r.patterns = append(r.patterns, redactPattern{regex: re, replacement: replacement})
}

// Redact masks all known sensitive patterns in s.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}
