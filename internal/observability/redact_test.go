package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactor(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"groq key",
			"auth gsk_" + strings.Repeat("a", 30) + " sent",
			"auth [REDACTED_GROQ_KEY] sent",
		},
		{
			"bearer token",
			"Authorization: Bearer abc.def.ghi",
			"Authorization: Bearer [REDACTED]",
		},
		{
			"google key",
			"key=AIza" + strings.Repeat("b", 35),
			"key=[REDACTED_GOOGLE_KEY]",
		},
		{
			"plain text untouched",
			"generate an episode summary",
			"generate an episode summary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Redact(tt.in))
		})
	}
}
