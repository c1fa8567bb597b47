package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/jsonmux/internal/observability"
)

const managerConfig = `
providers:
  openai:
    api_key: sk-a
    model: gpt-4o-mini
routing:
  primary: openai
`

func TestManagerGet(t *testing.T) {
	path := writeConfig(t, managerConfig)

	m, err := NewManager(path, observability.Default())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "openai", m.Get().Routing.Primary)

	pc, err := m.GetProviderConfig("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-a", pc.APIKey)
}

func TestManagerReload(t *testing.T) {
	path := writeConfig(t, managerConfig)

	m, err := NewManager(path, observability.Default())
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	changed := make(chan *Config, 1)
	m.OnChange(func(c *Config) { changed <- c })

	updated := managerConfig + `retry:
  max_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case c := <-changed:
		assert.Equal(t, 5, c.Retry.MaxAttempts)
		assert.Equal(t, 5, m.Get().Retry.MaxAttempts)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestManagerReloadKeepsCurrentOnError(t *testing.T) {
	path := writeConfig(t, managerConfig)

	m, err := NewManager(path, observability.Default())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, os.WriteFile(path, []byte(": not yaml ["), 0o600))
	m.reload()

	assert.Equal(t, "openai", m.Get().Routing.Primary)
}

func TestNewManagerBadPath(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "missing.yaml"), observability.Default())
	assert.Error(t, err)
}
