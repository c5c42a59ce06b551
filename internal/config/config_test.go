package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/geocopilot/internal/consts"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, BackendOllama, cfg.Model.Backend)
	assert.Equal(t, "llama3", cfg.Model.Name)
	assert.Equal(t, "http://localhost:11434", cfg.Model.BaseURL)
	assert.Zero(t, cfg.Model.Temperature)
	assert.Equal(t, "localhost:8502", cfg.Server.Addr)
	assert.Equal(t, "https://www.arcgis.com", cfg.Portal.URL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, BackendOllama, cfg.Model.Backend)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"model": {"backend": "rules"}, "server": {"turn_timeout_seconds": 5}, "log_level": "debug"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRules, cfg.Model.Backend)
	assert.Equal(t, 5*time.Second, cfg.TurnTimeout())
	assert.Equal(t, "debug", cfg.LogLevel)
	// untouched sections keep their defaults
	assert.Equal(t, "localhost:8502", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.PortalTimeout())
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"GEOCOPILOT_BACKEND":      "OpenAI",
		"GEOCOPILOT_MODEL":        "gpt-4o-mini",
		"GEOCOPILOT_PORTAL_URL":   "https://portal.example.com",
		"GEOCOPILOT_TURN_TIMEOUT": "0",
		"OPENAI_API_KEY":          "sk-test",
		"GEOCOPILOT_ADDR":         "   ",
	}))
	require.NoError(t, err)

	assert.Equal(t, BackendOpenAI, cfg.Model.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	assert.Equal(t, "https://portal.example.com", cfg.Portal.URL)
	assert.Equal(t, time.Duration(0), cfg.TurnTimeout())
	assert.Equal(t, "localhost:8502", cfg.Server.Addr)
	assert.True(t, cfg.APIKey().Equal("sk-test"))
}

func TestApplyEnvPrefersOwnKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Backend = BackendAnthropic
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"GEOCOPILOT_API_KEY": "own",
		"ANTHROPIC_API_KEY":  "shared",
	})))
	assert.Equal(t, "own", cfg.APIKey().String())
}

func TestApplyEnvBadTimeout(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{"GEOCOPILOT_TURN_TIMEOUT": "soon"}))
	assert.Error(t, err)
}

func TestValidateUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Backend = "mystery"
	assert.Error(t, cfg.Validate())
}

func TestAPIKeyNeverNil(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg.APIKey())
	assert.True(t, cfg.APIKey().IsEmpty())
}

func TestSaveDoesNotPersistAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.SetAPIKey("super-secret")

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
	assert.Contains(t, string(data), `"backend": "ollama"`)
}

func TestResolveAPIKeyAfterBackendChange(t *testing.T) {
	cfg := DefaultConfig()
	env := envMap(map[string]string{"ANTHROPIC_API_KEY": " sk-ant-123 "})
	require.NoError(t, cfg.ApplyEnv(env))
	assert.True(t, cfg.APIKey().IsEmpty())

	cfg.Model.Backend = BackendAnthropic
	cfg.ResolveAPIKey(env)
	assert.Equal(t, "sk-ant-123", cfg.APIKey().String())
}

func TestMaxSteps(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, consts.DefaultMaxSteps, cfg.Executor.MaxSteps)

	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"GEOCOPILOT_MAX_STEPS": "1000"})))
	assert.Equal(t, 1000, cfg.Executor.MaxSteps)

	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{"GEOCOPILOT_MAX_STEPS": "many"})))

	cfg.Executor.MaxSteps = -1
	assert.Error(t, cfg.Validate())
}
