package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/geocopilot/internal/consts"
	"github.com/codefionn/geocopilot/internal/securemem"
)

const appName = "geocopilot"

// Model backends understood by the llm package.
const (
	BackendOllama    = "ollama"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendGoogle    = "google"
	BackendRules     = "rules"
)

// ModelConfig selects and parameterizes the code-generation backend.
type ModelConfig struct {
	Backend     string  `json:"backend"` // ollama, openai, anthropic, google, rules
	Name        string  `json:"name"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	apiKey *securemem.String
}

// PortalConfig points at the ArcGIS portal used by the executor and the map synthesizer.
type PortalConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ExecutorConfig bounds generated script execution.
type ExecutorConfig struct {
	MaxSteps int `json:"max_steps"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr               string `json:"addr"`
	TurnTimeoutSeconds int    `json:"turn_timeout_seconds"` // 0 disables the per-turn deadline
}

// Config represents application configuration
type Config struct {
	Model    ModelConfig    `json:"model"`
	Portal   PortalConfig   `json:"portal"`
	Executor ExecutorConfig `json:"executor"`
	Server   ServerConfig   `json:"server"`
	LogLevel string         `json:"log_level"` // debug, info, warn, error, none
	LogPath  string         `json:"log_path,omitempty"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appName)
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appName)
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:     BackendOllama,
			Name:        "llama3",
			BaseURL:     "http://localhost:11434",
			Temperature: 0,
			MaxTokens:   2048,
		},
		Portal: PortalConfig{
			URL:            "https://www.arcgis.com",
			TimeoutSeconds: 30,
		},
		Executor: ExecutorConfig{
			MaxSteps: consts.DefaultMaxSteps,
		},
		Server: ServerConfig{
			Addr:               "localhost:8502",
			TurnTimeoutSeconds: 120,
		},
		LogLevel: "info",
		LogPath:  filepath.Join(defaultStateDir(), appName+".log"),
	}
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// Load reads the JSON file at path over the defaults, then applies
// GEOCOPILOT_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Model.Backend == "" {
		c.Model.Backend = def.Model.Backend
	}
	if c.Model.Name == "" && c.Model.Backend == BackendOllama {
		c.Model.Name = def.Model.Name
	}
	if c.Model.BaseURL == "" && c.Model.Backend == BackendOllama {
		c.Model.BaseURL = def.Model.BaseURL
	}
	if c.Portal.URL == "" {
		c.Portal.URL = def.Portal.URL
	}
	if c.Portal.TimeoutSeconds <= 0 {
		c.Portal.TimeoutSeconds = def.Portal.TimeoutSeconds
	}
	if c.Executor.MaxSteps == 0 {
		c.Executor.MaxSteps = def.Executor.MaxSteps
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// ApplyEnv overlays GEOCOPILOT_* variables looked up through lookup and
// captures the API key for the selected backend.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("GEOCOPILOT_BACKEND"); ok {
		c.Model.Backend = strings.ToLower(v)
	}
	if v, ok := get("GEOCOPILOT_MODEL"); ok {
		c.Model.Name = v
	}
	if v, ok := get("GEOCOPILOT_BASE_URL"); ok {
		c.Model.BaseURL = v
	}
	if v, ok := get("GEOCOPILOT_PORTAL_URL"); ok {
		c.Portal.URL = v
	}
	if v, ok := get("GEOCOPILOT_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := get("GEOCOPILOT_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("GEOCOPILOT_LOG_PATH"); ok {
		c.LogPath = v
	}
	if v, ok := get("GEOCOPILOT_TURN_TIMEOUT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GEOCOPILOT_TURN_TIMEOUT: %w", err)
		}
		c.Server.TurnTimeoutSeconds = n
	}
	if v, ok := get("GEOCOPILOT_MAX_STEPS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GEOCOPILOT_MAX_STEPS: %w", err)
		}
		c.Executor.MaxSteps = n
	}

	c.ResolveAPIKey(lookup)
	return nil
}

// ResolveAPIKey captures the API key for the selected backend from the
// first non-empty variable in its lookup order. It is called again after
// command-line flags change the backend.
func (c *Config) ResolveAPIKey(lookup func(string) (string, bool)) {
	for _, name := range apiKeyVars(c.Model.Backend) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			c.SetAPIKey(strings.TrimSpace(v))
			return
		}
	}
}

func apiKeyVars(backend string) []string {
	switch backend {
	case BackendOpenAI:
		return []string{"GEOCOPILOT_API_KEY", "OPENAI_API_KEY"}
	case BackendAnthropic:
		return []string{"GEOCOPILOT_API_KEY", "ANTHROPIC_API_KEY"}
	case BackendGoogle:
		return []string{"GEOCOPILOT_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}
	default:
		return []string{"GEOCOPILOT_API_KEY"}
	}
}

// Validate reports configuration errors that would make every turn fail.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case BackendOllama, BackendOpenAI, BackendAnthropic, BackendGoogle, BackendRules:
	default:
		return fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}
	if c.Server.TurnTimeoutSeconds < 0 {
		return fmt.Errorf("turn_timeout_seconds must not be negative")
	}
	if c.Executor.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}
	return nil
}

// SetAPIKey stores key in locked memory, replacing any previous key.
func (c *Config) SetAPIKey(key string) {
	if c.Model.apiKey != nil {
		c.Model.apiKey.Destroy()
	}
	c.Model.apiKey = securemem.NewString(key)
}

// APIKey returns the configured API key; it is never nil.
func (c *Config) APIKey() *securemem.String {
	if c.Model.apiKey == nil {
		return securemem.NewString("")
	}
	return c.Model.apiKey
}

// TurnTimeout returns the per-turn deadline for server mode, zero when disabled.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.Server.TurnTimeoutSeconds) * time.Second
}

// PortalTimeout returns the HTTP timeout for portal requests.
func (c *Config) PortalTimeout() time.Duration {
	return time.Duration(c.Portal.TimeoutSeconds) * time.Second
}

// Save writes the configuration as indented JSON. API keys are never persisted.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
