package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// AgentConfig bounds and shapes one session's backend calls. It is immutable
// for the session's lifetime.
type AgentConfig struct {
	Model         string        `json:"model" mapstructure:"model"`
	MaxIterations int           `json:"max_iterations" mapstructure:"max_iterations"`
	Temperature   float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens     int           `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	// Timeout is advisory: it is passed through to the backend and never
	// enforced by the loop itself.
	Timeout        time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	ResponseFormat string        `json:"response_format,omitempty" mapstructure:"response_format"`
}

// DefaultAgentConfig returns the configuration used when none is supplied.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:         "gpt-oss:20b",
		MaxIterations: 5,
		Temperature:   0.1,
		Timeout:       30 * time.Second,
	}
}

// Validate checks the invariants the orchestration loop relies on.
func (c AgentConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}
	if c.ResponseFormat != "" && c.ResponseFormat != "json_object" {
		return fmt.Errorf("unsupported response_format %q", c.ResponseFormat)
	}
	return nil
}

// LoadAgentConfig loads defaults from a JSON config file with AGENTKIT_*
// environment overrides. An empty path resolves to ~/.agentkit/agentkit.json;
// a missing file yields the defaults.
func LoadAgentConfig(path string) (AgentConfig, error) {
	cfg := DefaultAgentConfig()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".agentkit", "agentkit.json")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("AGENTKIT")
	v.AutomaticEnv()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
