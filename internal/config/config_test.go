package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jsonmux.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sampleConfig = `
providers:
  openai:
    api_key: ${TEST_OPENAI_KEY}
    model: gpt-4o-mini
    max_tokens: 2048
    timeout: 30s
  cerebras:
    api_key: csk-test
    model: llama-3.3-70b
routing:
  primary: openai
  fallbacks: [cerebras]
retry:
  max_attempts: 4
  initial_delay: 100ms
  backoff_factor: 2.5
cache:
  capacity: 64
audit:
  enabled: true
  dir: /tmp/audit
`

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-secret")

	cfg, err := LoadFromFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "sk-secret", cfg.Providers["openai"].APIKey, "env vars should expand")
	assert.Equal(t, 30*time.Second, cfg.Providers["openai"].Timeout)
	assert.Equal(t, "openai", cfg.Routing.Primary)
	assert.Equal(t, []string{"cerebras"}, cfg.Routing.Fallbacks)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.5, cfg.Retry.BackoffFactor)
	assert.Equal(t, 64, cfg.Cache.Capacity)
	assert.True(t, cfg.Audit.Enabled)

	// Defaults survive partial override.
	assert.Equal(t, 4*time.Second, cfg.Retry.MaxDelay)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no providers",
			mutate:  func(c *Config) { c.Providers = nil },
			wantErr: "at least one provider",
		},
		{
			name:    "missing primary",
			mutate:  func(c *Config) { c.Routing.Primary = "" },
			wantErr: "routing.primary is required",
		},
		{
			name:    "unknown primary",
			mutate:  func(c *Config) { c.Routing.Primary = "ghost" },
			wantErr: "no provider block",
		},
		{
			name:    "unknown fallback",
			mutate:  func(c *Config) { c.Routing.Fallbacks = []string{"ghost"} },
			wantErr: "no provider block",
		},
		{
			name:    "attempts out of range",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = 6 },
			wantErr: "max_attempts",
		},
		{
			name:    "backoff below one",
			mutate:  func(c *Config) { c.Retry.BackoffFactor = 0.5 },
			wantErr: "backoff_factor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Providers = map[string]ProviderConfig{
				"openai": {APIKey: "sk-x", Model: "gpt-4o-mini"},
			}
			cfg.Routing.Primary = "openai"
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetProviderConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = map[string]ProviderConfig{
		"openai":   {APIKey: "sk-x", Model: "gpt-4o-mini", MaxTokens: 1024},
		"no-key":   {Model: "m"},
		"no-model": {APIKey: "sk-y"},
		"vertexai": {Project: "proj", Location: "us-central1", Model: "gemini-2.0-flash"},
	}

	pc, err := cfg.GetProviderConfig("openai")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", pc.Model)
	assert.Equal(t, 1024, pc.MaxTokens)

	// Vertex may authenticate by project instead of API key.
	_, err = cfg.GetProviderConfig("vertexai")
	assert.NoError(t, err)

	for _, name := range []string{"no-key", "no-model", "absent"} {
		_, err := cfg.GetProviderConfig(name)
		require.Error(t, err, name)
		var le *llmerrors.Error
		require.ErrorAs(t, err, &le, name)
		assert.Equal(t, llmerrors.CodeInvalidRequest, le.Code, name)
	}
}
