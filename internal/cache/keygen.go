package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint derives the deterministic cache key for one generation. Two
// requests coalesce iff provider, schema name, normalized prompts, token
// budget, and model all match.
func Fingerprint(provider, schemaName, systemPrompt, userPrompt string, maxTokens int, model string) string {
	var sb strings.Builder
	sb.WriteString("provider:" + provider)
	sb.WriteString("|schema:" + schemaName)
	sb.WriteString("|system:" + normalizePrompt(systemPrompt))
	sb.WriteString("|user:" + normalizePrompt(userPrompt))
	fmt.Fprintf(&sb, "|max_tokens:%d", maxTokens)
	sb.WriteString("|model:" + model)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// normalizePrompt trims and collapses whitespace so cosmetically different
// prompts still share a fingerprint.
func normalizePrompt(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
