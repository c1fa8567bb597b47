package provider

import (
	"fmt"
	"strings"

	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// GuardrailSystemPrompt combines the caller's system prompt with the
// instruction that keeps models from wrapping JSON in prose or fences. The
// provider-side schema enforcement attempts compliance; this instruction
// covers the providers and modes where enforcement is advisory.
func GuardrailSystemPrompt(systemPrompt string, spec types.StructuredOutputSpec) string {
	var b strings.Builder
	if s := strings.TrimSpace(systemPrompt); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Output ONLY valid JSON matching the schema %q.", spec.SchemaName)
	if d := strings.TrimSpace(spec.Description); d != "" {
		fmt.Fprintf(&b, " The value describes: %s.", d)
	}
	b.WriteString(" No prose, no markdown fences, no explanations.")
	return b.String()
}
