package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, []string{LeverRAG, LeverTools, LeverHistory}, cfg.TruncationOrder)
	assert.Equal(t, CapabilityAuto, cfg.CapabilityDefault)
	assert.NotEmpty(t, cfg.ListenAddr)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	payload := `{
		"provider": "anthropic",
		"model": "claude-sonnet-4-20250514",
		"truncation_order": ["history", "rag"],
		"capability_default": "prompt-inject"
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Model)
	assert.Equal(t, CapabilityPromptInject, cfg.CapabilityDefault)
	// Missing levers are appended in default order.
	assert.Equal(t, []string{LeverHistory, LeverRAG, LeverTools}, cfg.TruncationOrder)
}

func TestLoadRejectsInvalidCapabilityDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capability_default": "telepathy"}`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeTruncationOrder(t *testing.T) {
	assert.Equal(t,
		[]string{LeverRAG, LeverTools, LeverHistory},
		normalizeTruncationOrder(nil))

	// Unknown and duplicate levers are dropped.
	assert.Equal(t,
		[]string{LeverTools, LeverRAG, LeverHistory},
		normalizeTruncationOrder([]string{"tools", "bogus", "tools", "rag"}))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Provider = "openai"
	cfg.Model = "gpt-4o"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", loaded.Provider)
	assert.Equal(t, "gpt-4o", loaded.Model)
}

func TestAPIKeyPrefersEnvironment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKeys["openai"] = "file-key"

	t.Setenv("OPENAI_API_KEY", "env-key")
	assert.Equal(t, "env-key", cfg.APIKey("openai"))

	t.Setenv("OPENAI_API_KEY", "")
	assert.Equal(t, "file-key", cfg.APIKey("openai"))

	assert.Equal(t, "", cfg.APIKey("anthropic"))
}
