package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Claude    ClaudeConfig    `toml:"claude"`
	LLM       LLMConfig       `toml:"llm"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Prompts   PromptsConfig   `toml:"prompts"`
	WebSocket WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
	// AllowedOrigins lists browser origins allowed by CORS; "*" allows any
	AllowedOrigins []string `toml:"allowed_origins"`
}

type StorageConfig struct {
	// Type selects the history store: "badger" (default) or "memory"
	Type   string       `toml:"type"`
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	SyncWrites     bool   `toml:"sync_writes"`      // fsync every write
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// GeminiConfig contains Google Gemini API configuration for every generation call
type GeminiConfig struct {
	APIKey             string  `toml:"api_key"`
	ScanModel          string  `toml:"scan_model"`           // Fast report model (default: "gemini-3-flash-preview")
	DeepModel          string  `toml:"deep_model"`           // Deep report model (default: "gemini-3-pro-preview")
	GroundingModel     string  `toml:"grounding_model"`      // Web retrieval model
	ExtractionModel    string  `toml:"extraction_model"`     // Chart and history extraction model
	DeepThinkingBudget int32   `toml:"deep_thinking_budget"` // Thinking tokens for DEEP mode (default: 32768)
	Timeout            string  `toml:"timeout"`              // Per-call timeout as duration string (default: "5m")
	RateLimit          string  `toml:"rate_limit"`           // Minimum interval between calls (default: "1s")
	Temperature        float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`      // Model used for every call when Claude is the provider
	MaxTokens   int     `toml:"max_tokens"` // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
}

// PipelineConfig holds the analysis pipeline knobs
type PipelineConfig struct {
	GroundingLimitScan int `toml:"grounding_limit_scan"` // Negative signals requested in SCAN mode (default: 5)
	GroundingLimitDeep int `toml:"grounding_limit_deep"` // Negative signals requested in DEEP mode (default: 15)
	ExtractionMaxChars int `toml:"extraction_max_chars"` // Report prefix fed to extraction calls (default: 15000)
	ChartMaxTokens     int `toml:"chart_max_tokens"`     // Output cap for the chart extraction call (default: 1024)
	SnippetLength      int `toml:"snippet_length"`       // History report snippet length in characters (default: 500)
	MaxAttachmentBytes int `toml:"max_attachment_bytes"` // Per-attachment upload cap (default: 20MB)
}

// PromptsConfig points at an optional YAML file overriding the embedded prompts
type PromptsConfig struct {
	File string `toml:"file"`
}

// WebSocketConfig contains configuration for run-log streaming
type WebSocketConfig struct {
	MaxClients int `toml:"max_clients"` // 0 = unlimited
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8085,
			Host:           "localhost",
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Gemini: GeminiConfig{
			ScanModel:          "gemini-3-flash-preview",
			DeepModel:          "gemini-3-pro-preview",
			GroundingModel:     "gemini-3-flash-preview",
			ExtractionModel:    "gemini-3-flash-preview",
			DeepThinkingBudget: 32768,
			Timeout:            "5m",
			RateLimit:          "1s",
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
			Timeout:   "5m",
			RateLimit: "1s",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Pipeline: PipelineConfig{
			GroundingLimitScan: 5,
			GroundingLimitDeep: 15,
			ExtractionMaxChars: 15000,
			ChartMaxTokens:     1024,
			SnippetLength:      500,
			MaxAttachmentBytes: 20 * 1024 * 1024,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("MARKETSIGNAL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MARKETSIGNAL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if storageType := os.Getenv("MARKETSIGNAL_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("MARKETSIGNAL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("MARKETSIGNAL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MARKETSIGNAL_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("MARKETSIGNAL_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("MARKETSIGNAL_GEMINI_SCAN_MODEL"); model != "" {
		config.Gemini.ScanModel = model
	}
	if model := os.Getenv("MARKETSIGNAL_GEMINI_DEEP_MODEL"); model != "" {
		config.Gemini.DeepModel = model
	}
	if budget := os.Getenv("MARKETSIGNAL_GEMINI_DEEP_THINKING_BUDGET"); budget != "" {
		if b, err := strconv.ParseInt(budget, 10, 32); err == nil {
			config.Gemini.DeepThinkingBudget = int32(b)
		}
	}
	if timeout := os.Getenv("MARKETSIGNAL_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("MARKETSIGNAL_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("MARKETSIGNAL_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // MARKETSIGNAL_ prefix takes priority
	}
	if model := os.Getenv("MARKETSIGNAL_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("MARKETSIGNAL_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	if promptsFile := os.Getenv("MARKETSIGNAL_PROMPTS_FILE"); promptsFile != "" {
		config.Prompts.File = promptsFile
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name.
// Resolution order: environment variables → config fallback → error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"MARKETSIGNAL_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"MARKETSIGNAL_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// ParseDuration parses a duration string, returning fallback when it is empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
