package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

func TestGetCoversEveryKind(t *testing.T) {
	for _, kind := range List() {
		factory, ok := Get(kind)
		assert.True(t, ok, "kind %s has no factory", kind)
		assert.NotNil(t, factory)
	}

	_, ok := Get(provider.Kind("mystery"))
	assert.False(t, ok)
}

func TestNewBuildsEachKind(t *testing.T) {
	cfg := types.ProviderConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		Project: "test-proj",
	}

	for _, kind := range List() {
		p, err := New(kind, cfg, observability.Default())
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, string(kind), p.Name())
		assert.Equal(t, "test-model", p.Model())
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(provider.Kind("mystery"), types.ProviderConfig{}, observability.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider kind")
}
