// Package config loads the application configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kenton-research/kenton/pkg/security"
	"github.com/kenton-research/kenton/pkg/session"
)

// Config represents the application configuration
type Config struct {
	Conversation  session.Config      `yaml:"conversation"`
	Model         ModelConfig         `yaml:"model"`
	Assistant     AssistantConfig     `yaml:"assistant"`
	Tools         ToolsConfig         `yaml:"tools"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ModelConfig selects the chat model endpoint.
type ModelConfig struct {
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	MaxTurns    int     `yaml:"max_turns"`
	Temperature float32 `yaml:"temperature"`
}

// AssistantConfig shapes prompts.
type AssistantConfig struct {
	Instructions string `yaml:"instructions"`
	// HistoryLimit caps the exchanges replayed into each prompt; 0 replays all kept.
	HistoryLimit int `yaml:"history_limit"`
}

// ToolsConfig locates the tool catalog.
type ToolsConfig struct {
	// Catalog is a YAML tool catalog path. Empty uses the built-in tools.
	Catalog string `yaml:"catalog"`
	// AllowedHosts restricts tool endpoints when non-empty.
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// ObservabilityConfig holds the metrics and health server settings.
type ObservabilityConfig struct {
	Port           int  `yaml:"port"`
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Conversation: session.DefaultConfig(),
		Model: ModelConfig{
			Name:        session.DefaultModel,
			MaxTurns:    8,
			Temperature: 0.2,
		},
		Observability: ObservabilityConfig{
			Port:           9090,
			MetricsEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		limits := security.DefaultYAMLLimits()
		if info.Size() > limits.MaxFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), limits.MaxFileSize)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := security.DecodeYAML(data, cfg, limits); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("KENTON_STORE", &c.Conversation.Store)
	str("REDIS_URL", &c.Conversation.RedisURL)
	str("KENTON_CONVERSATION_DIR", &c.Conversation.BaseDir)
	if err := num("KENTON_MAX_HISTORY", &c.Conversation.MaxHistory); err != nil {
		return err
	}
	if v, ok := lookup("KENTON_TTL_HOURS"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid KENTON_TTL_HOURS: %w", err)
		}
		c.Conversation.TTLHours = f
	}

	str("OPENAI_API_KEY", &c.Model.APIKey)
	str("OPENAI_BASE_URL", &c.Model.BaseURL)
	str("KENTON_MODEL", &c.Model.Name)
	str("KENTON_TOOLS_CATALOG", &c.Tools.Catalog)
	str("KENTON_LOG_LEVEL", &c.Logging.Level)
	str("KENTON_LOG_FORMAT", &c.Logging.Format)
	return num("KENTON_METRICS_PORT", &c.Observability.Port)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.Conversation.Store = strings.ToLower(strings.TrimSpace(c.Conversation.Store))
	if c.Conversation.Store == "" {
		c.Conversation.Store = session.StoreAuto
	}
	if err := c.Conversation.Validate(); err != nil {
		return fmt.Errorf("conversation: %w", err)
	}

	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.MaxTurns < 0 {
		return fmt.Errorf("model.max_turns must not be negative")
	}
	if c.Assistant.HistoryLimit < 0 {
		return fmt.Errorf("assistant.history_limit must not be negative")
	}
	if p := c.Observability.Port; p < 0 || p > 65535 {
		return fmt.Errorf("observability.port out of range: %d", p)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// RequireModelKey reports a missing model API key.
func (c *Config) RequireModelKey() error {
	if err := security.CheckCredential(c.Model.APIKey, 0); err != nil {
		return fmt.Errorf("model API key: %w (set OPENAI_API_KEY or model.api_key)", err)
	}
	return nil
}

// SaveConfig saves configuration to a YAML file. The model API key is
// never written.
func SaveConfig(cfg *Config, path string) error {
	out := *cfg
	out.Model.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
