// Package config loads Typhoon's configuration from
// ~/.typhoon/config.yaml with TYPHOON_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Chat    ChatConfig    `mapstructure:"chat" yaml:"chat"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	// Host and Port form the listen address.
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	// CORSOrigin restricts cross-origin access. Empty allows localhost
	// origins only; "*" allows everything.
	CORSOrigin string `mapstructure:"cors_origin" yaml:"cors_origin,omitempty"`
}

// LLMConfig selects and configures the completion backend.
type LLMConfig struct {
	// DefaultProvider names the backend to use ("hf-router", "openai",
	// "ollama").
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`

	// Providers maps provider names to their settings.
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig holds one backend's settings.
type ProviderConfig struct {
	// Endpoint is the API base URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// APIKey authenticates hosted backends. Falls back to the
	// provider's conventional environment variable when empty.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// Model is the model identifier to request.
	Model string `mapstructure:"model" yaml:"model,omitempty"`

	// TimeoutSec bounds each backend call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec,omitempty"`
}

// ChatConfig tunes the orchestration engine. These knobs trade context
// size against truncation risk and per-turn cost.
type ChatConfig struct {
	// MaxHistoryPairs is how many recent exchanges are replayed into
	// each prompt.
	MaxHistoryPairs int `mapstructure:"max_history_pairs" yaml:"max_history_pairs"`

	// MaxRounds caps backend calls per turn: one initial call plus up
	// to MaxRounds-1 continuations after truncation.
	MaxRounds int `mapstructure:"max_rounds" yaml:"max_rounds"`

	// ReplyTokens is the per-call token budget.
	ReplyTokens int `mapstructure:"reply_tokens" yaml:"reply_tokens"`

	// KnowledgePath points to the optional reference-notes file.
	KnowledgePath string `mapstructure:"knowledge_path" yaml:"knowledge_path,omitempty"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `mapstructure:"level" yaml:"level"`

	// File is an optional log file path; empty logs to stderr.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	typhoonDir := filepath.Join(homeDir, ".typhoon")

	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5001,
		},
		LLM: LLMConfig{
			DefaultProvider: "hf-router",
			Providers: map[string]ProviderConfig{
				"hf-router": {
					Endpoint: "https://router.huggingface.co/v1",
					Model:    "google/gemma-2-2b-it",
				},
				"openai": {
					Endpoint: "https://api.openai.com/v1",
					Model:    "gpt-4o-mini",
				},
				"ollama": {
					Endpoint: "http://127.0.0.1:11434",
					Model:    "llama3",
				},
			},
		},
		Chat: ChatConfig{
			MaxHistoryPairs: 3,
			MaxRounds:       4,
			ReplyTokens:     900,
			KnowledgePath:   filepath.Join(typhoonDir, "knowledge.txt"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from ~/.typhoon/config.yaml, creating the
// file with defaults when it does not exist.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".typhoon", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path, merging
// environment overrides. A missing file is created with defaults.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: TYPHOON_LLM_PROVIDERS_HF-ROUTER_API_KEY
	v.SetEnvPrefix("TYPHOON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Chat.KnowledgePath = expandPath(cfg.Chat.KnowledgePath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyChatDefaults()

	return &cfg, nil
}

// applyChatDefaults fills zero chat settings so a sparse config file
// still yields a working engine.
func (c *Config) applyChatDefaults() {
	defaults := Default().Chat
	if c.Chat.MaxHistoryPairs == 0 {
		c.Chat.MaxHistoryPairs = defaults.MaxHistoryPairs
	}
	if c.Chat.MaxRounds == 0 {
		c.Chat.MaxRounds = defaults.MaxRounds
	}
	if c.Chat.ReplyTokens == 0 {
		c.Chat.ReplyTokens = defaults.ReplyTokens
	}
}

// SaveToPath writes the configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider cannot be empty")
	}
	if _, exists := c.LLM.Providers[c.LLM.DefaultProvider]; !exists {
		return fmt.Errorf("default provider %q not found in providers map", c.LLM.DefaultProvider)
	}

	if c.Chat.MaxHistoryPairs < 0 {
		return fmt.Errorf("chat.max_history_pairs cannot be negative")
	}
	if c.Chat.MaxRounds < 1 {
		return fmt.Errorf("chat.max_rounds must be at least 1")
	}
	if c.Chat.ReplyTokens < 1 {
		return fmt.Errorf("chat.reply_tokens must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config to a YAML file using yaml.v3 so the
// yaml struct tags drive serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
