// Package config loads harness configuration from an optional file plus
// TRACEBENCH_ environment variables, with sensible defaults. Validation
// failures are reported as ConfigurationError so the process aborts before
// any trace is opened.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/logging"
)

// Collector backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config is the full harness configuration.
type Config struct {
	UserID    string          `mapstructure:"user_id"`
	Collector CollectorConfig `mapstructure:"collector"`
	Model     ModelConfig     `mapstructure:"model"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CollectorConfig selects and parameterizes the trace ingestion backend.
type CollectorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// ModelConfig selects the agent's model provider.
type ModelConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ReportsConfig controls scenario report output.
type ReportsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls the harness logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file (optional; empty path skips
// the file) merged with TRACEBENCH_ environment variables over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("user_id", "scenario-harness")
	v.SetDefault("collector.enabled", true)
	v.SetDefault("collector.backend", BackendMemory)
	v.SetDefault("collector.path", "")
	v.SetDefault("model.provider", "")
	v.SetDefault("model.model", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.max_tokens", 1024)
	v.SetDefault("reports.dir", "reports")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetEnvPrefix("TRACEBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for startup errors. It returns a
// ConfigurationError naming the offending field.
func (c *Config) Validate() error {
	if c.Collector.Enabled {
		switch c.Collector.Backend {
		case BackendMemory:
		case BackendSQLite:
			if c.Collector.Path == "" {
				return &core.ConfigurationError{Field: "collector.path", Reason: "required for the sqlite backend"}
			}
		default:
			return &core.ConfigurationError{Field: "collector.backend", Reason: fmt.Sprintf("unknown backend %q", c.Collector.Backend)}
		}
	}

	switch c.Model.Provider {
	case "", ProviderAnthropic, ProviderOpenAI:
	default:
		return &core.ConfigurationError{Field: "model.provider", Reason: fmt.Sprintf("unknown provider %q", c.Model.Provider)}
	}
	if c.Model.Provider != "" && c.Model.APIKey == "" {
		return &core.ConfigurationError{Field: "model.api_key", Reason: "required when a model provider is configured"}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &core.ConfigurationError{Field: "logging.level", Reason: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}

	return nil
}

// LogLevel converts the configured level string to the logger enum.
func (c *Config) LogLevel() logging.LogLevel {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
