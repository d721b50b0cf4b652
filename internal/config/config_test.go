package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hanpin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  dir: /var/lib/hanpin
resolve:
  threshold: 0.9
  min_support: 3
  min_prob: 0.8
  min_margin: 0.1
  word_like_spacing: false
ai:
  provider: ollama
  model: qwen2.5:7b
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/hanpin", cfg.Data.Dir)
	assert.InDelta(t, 0.9, cfg.Resolve.Threshold, 1e-9)
	assert.Equal(t, 3, cfg.Resolve.MinSupport)
	assert.InDelta(t, 0.8, cfg.Resolve.MinProb, 1e-9)
	assert.InDelta(t, 0.1, cfg.Resolve.MinMargin, 1e-9)
	assert.False(t, cfg.WordLikeSpacing())
	assert.Equal(t, "ollama", cfg.AI.Provider)
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hanpin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  provider: gemini\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.Data.Dir)
	assert.InDelta(t, 0.85, cfg.Resolve.Threshold, 1e-9)
	assert.True(t, cfg.WordLikeSpacing())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HANPIN_API_KEY", "sk-env")
	t.Setenv("HANPIN_AI_PROVIDER", "openai")

	dir := t.TempDir()
	path := filepath.Join(dir, "hanpin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  provider: gemini\n  api_key: sk-file\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
	assert.Equal(t, "openai", cfg.AI.Provider)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
