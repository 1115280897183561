package session

import (
	"fmt"
	"strings"
	"time"
)

// Store kinds accepted by Config.Store.
const (
	StoreAuto   = "auto"
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreFile   = "file"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultMaxHistory     = 10
	DefaultTTLHours       = 24
	DefaultKeyPrefix      = "conversation:"
	DefaultResponseBudget = 200
	DefaultModel          = "gpt-4.1"
)

// Config holds conversation store configuration from YAML.
type Config struct {
	// Store specifies the storage backend type.
	// Options: "auto", "memory", "redis", "file"
	// Default: "auto" (redis when RedisURL is set, memory otherwise).
	Store string `yaml:"store"`

	// MaxHistory caps the number of exchanges kept per session.
	MaxHistory int `yaml:"max_history"`

	// TTLHours is the idle time after which a session expires.
	TTLHours float64 `yaml:"ttl_hours"`

	// RedisURL is a redis:// or rediss:// connection URL.
	RedisURL string `yaml:"redis_url"`

	// KeyPrefix prefixes durable keys (default: "conversation:").
	KeyPrefix string `yaml:"key_prefix"`

	// BaseDir is the directory for file-based storage.
	// Default: ~/.kenton/conversations
	BaseDir string `yaml:"base_dir"`

	// ResponseBudget is the number of characters of each response kept
	// when rendering formatted history.
	ResponseBudget int `yaml:"response_budget"`

	// DefaultModel is recorded when an entry is added without a model.
	DefaultModel string `yaml:"default_model"`
}

// DefaultConfig returns the default conversation store configuration.
func DefaultConfig() Config {
	return Config{
		Store:          StoreAuto,
		MaxHistory:     DefaultMaxHistory,
		TTLHours:       DefaultTTLHours,
		KeyPrefix:      DefaultKeyPrefix,
		ResponseBudget: DefaultResponseBudget,
		DefaultModel:   DefaultModel,
	}
}

// TTL returns the session expiry as a duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.TTLHours * float64(time.Hour))
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch c.Store {
	case StoreAuto, StoreMemory, StoreRedis, StoreFile:
	default:
		return fmt.Errorf("unknown conversation store %q", c.Store)
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("max_history must not be negative, got %d", c.MaxHistory)
	}
	if c.TTLHours < 0 {
		return fmt.Errorf("ttl_hours must not be negative, got %g", c.TTLHours)
	}
	if c.Store == StoreRedis && c.RedisURL == "" {
		return fmt.Errorf("store %q requires redis_url", StoreRedis)
	}
	return nil
}

// withDefaults fills zero values with defaults.
func (c Config) withDefaults() Config {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StoreAuto
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.TTLHours == 0 {
		c.TTLHours = DefaultTTLHours
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.ResponseBudget <= 0 {
		c.ResponseBudget = DefaultResponseBudget
	}
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	return c
}
