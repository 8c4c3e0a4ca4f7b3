package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// Config defines the global application configuration structure.
// This structure maps directly to the config.json file and holds
// business-level settings: the agent persona, the decision model,
// the delegate models, and the channel credentials.
type Config struct {
	// Persona is the agent's personality and standing instructions,
	// injected into every decision and fallback prompt.
	Persona string `json:"persona"`
	// Decision holds the configuration of the model that picks the next
	// action, in raw JSON (parsed by the llm package).
	Decision jsoniter.RawMessage `json:"decision"`
	// Delegates holds the list of specialist model configurations in raw JSON.
	Delegates jsoniter.RawMessage `json:"delegates"`
	// Channels maps channel identifiers (e.g., "telegram", "web") to their
	// specific configuration payloads in raw JSON format.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// Workspace is the directory subtree the file tools are confined to.
	Workspace string `json:"workspace"`
	// StorePath is the SQLite database file used for persistence.
	StorePath string `json:"store_path"`
}

// Validate ensures the configuration contains all mandatory sections.
// It acts as a primary guard before the system proceeds to initialization.
func (c *Config) Validate() error {
	if len(c.Decision) == 0 {
		return fmt.Errorf("mandatory 'decision' configuration is missing or empty")
	}
	if len(c.Delegates) == 0 {
		return fmt.Errorf("mandatory 'delegates' configuration is missing or empty")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters.
// These settings are stored in system.json and control the reliability
// and technical behavior of the engine, independent of business config.
type SystemConfig struct {
	// MaxIterations caps how many tool executions a single request may
	// perform before the loop returns the degraded answer.
	MaxIterations int `json:"max_iterations"`
	// HistoryWindow is the number of prior turns condensed into each
	// decision and delegate prompt.
	HistoryWindow int `json:"history_window"`
	// ToolTimeoutSec is the time budget (in seconds) for one tool execution.
	ToolTimeoutSec int `json:"tool_timeout_sec"`
	// RetryDelayMs is the duration to wait (in milliseconds) before the
	// single retry of a failed backend call.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs is the hard cutoff time (in milliseconds) for resolving
	// one request end to end. The context is cancelled when exceeded.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// OllamaDefaultURL is the fallback endpoint used when connecting
	// to a local Ollama instance if no specific URL is provided.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// InternalChannelBuffer defines the size of internal Go channels used
	// for buffering between goroutines.
	InternalChannelBuffer int `json:"internal_channel_buffer"`
	// TelegramMessageLimit is the maximum character count for a single
	// Telegram message. Longer answers are split into multiple chunks.
	TelegramMessageLimit int `json:"telegram_message_limit"`
	// TaskDurationMs is how long a simulated background task runs.
	TaskDurationMs int `json:"task_duration_ms"`
	// LogLevel sets the minimum severity for log output.
	// Accepted values: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `json:"log_level"`
}

// DefaultSystemConfig returns a SystemConfig pointer initialized with
// hardcoded safe default values. This is used as a fallback when the
// system.json file is missing or corrupt, so the engine can always start.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxIterations:         5,
		HistoryWindow:         5,
		ToolTimeoutSec:        30,
		RetryDelayMs:          500,
		LLMTimeoutMs:          120000,
		OllamaDefaultURL:      "http://localhost:11434",
		InternalChannelBuffer: 100,
		TelegramMessageLimit:  4000,
		TaskDurationMs:        3000,
		LogLevel:              "info",
	}
}

// Load reads and parses the JSON configuration files from the current working
// directory. It first loads 'config.json' (app config); if this file is
// missing it returns an error. Then it loads 'system.json' via
// LoadSystemConfig, which falls back to defaults on any failure.
func Load() (*Config, *SystemConfig, error) {
	appPath := "config.json"
	if _, err := os.Stat(appPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file '%s' not found. please create one", appPath)
	}

	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	sysCfg := LoadSystemConfig("system.json")

	return &cfg, sysCfg, nil
}

// LoadSystemConfig attempts to load system settings, returning defaults if it fails.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg // File not found, use defaults
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return cfg // Parse failed, use defaults
	}

	return cfg
}
