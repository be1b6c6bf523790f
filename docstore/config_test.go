// ABOUTME: Tests for document store configuration loading
package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultCharmHost, cfg.Host)
	assert.True(t, cfg.AutoSync)
	assert.Zero(t, cfg.HardCeiling)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LEADBATCH_CHARM_HOST", "charm.example.test")
	t.Setenv("LEADBATCH_AUTO_SYNC", "false")
	t.Setenv("LEADBATCH_HARD_CEILING", "100")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "charm.example.test", cfg.Host)
	assert.False(t, cfg.AutoSync)
	assert.Equal(t, 100, cfg.HardCeiling)
}

func TestLoadConfigIgnoresBadEnvValues(t *testing.T) {
	t.Setenv("LEADBATCH_CHARM_HOST", "")
	t.Setenv("LEADBATCH_AUTO_SYNC", "not-a-bool")
	t.Setenv("LEADBATCH_HARD_CEILING", "-3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Host)
	assert.Zero(t, cfg.HardCeiling)
}
