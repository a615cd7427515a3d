package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "gemini-3-flash-preview", cfg.Gemini.ScanModel)
	assert.Equal(t, "gemini-3-pro-preview", cfg.Gemini.DeepModel)
	assert.Equal(t, int32(32768), cfg.Gemini.DeepThinkingBudget)
	assert.Equal(t, 5, cfg.Pipeline.GroundingLimitScan)
	assert.Equal(t, 15, cfg.Pipeline.GroundingLimitDeep)
	assert.Equal(t, 15000, cfg.Pipeline.ExtractionMaxChars)
	assert.Equal(t, 500, cfg.Pipeline.SnippetLength)
	assert.Equal(t, LLMProviderGemini, cfg.LLM.DefaultProvider)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000
host = "0.0.0.0"

[pipeline]
grounding_limit_deep = 20
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100
`), 0644))

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 20, cfg.Pipeline.GroundingLimitDeep)
	// Untouched defaults survive
	assert.Equal(t, 5, cfg.Pipeline.GroundingLimitScan)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketsignal.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0644))

	t.Setenv("MARKETSIGNAL_SERVER_PORT", "9200")
	t.Setenv("MARKETSIGNAL_LOG_OUTPUT", "stdout, file")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[server\nport="), 0644))
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8085, cfg.Server.Port)

	ApplyFlagOverrides(cfg, 9999, "example.local")
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "example.local", cfg.Server.Host)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("MARKETSIGNAL_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	key, err := ResolveAPIKey("gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	t.Setenv("GEMINI_API_KEY", "from-env")
	key, err = ResolveAPIKey("gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	_, err = ResolveAPIKey("unknown_key", "")
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, ParseDuration("2s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("nonsense", time.Minute))
}
