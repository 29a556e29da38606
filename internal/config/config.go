// Package config loads process configuration: built-in defaults, then an
// optional TOML file, then environment overrides for secrets and endpoints.
// Configuration is read once at startup and treated as immutable.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables recognized as overrides.
const (
	// EnvAPIKey carries the credential shared by both backends.
	EnvAPIKey = "CHATBRIDGE_API_KEY"
	// EnvOpenAIBaseURL overrides the primary provider endpoint.
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvAnthropicBaseURL overrides the reasoning provider endpoint.
	EnvAnthropicBaseURL = "ANTHROPIC_BASE_URL"
)

// Defaults baked into the binary.
const (
	DefaultPrimaryModel     = "gpt-3.5-turbo"
	DefaultReasoningModel   = "claude-sonnet-4-5-20250929"
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 1000
	DefaultMaxContextLength = 50
	DefaultSystemPrompt     = "You are a helpful assistant."
	DefaultStateFile        = "sessions.json"
	DefaultRequestTimeout   = 60 * time.Second
)

// ErrMissingAPIKey means no credential was configured. Fatal at startup.
var ErrMissingAPIKey = errors.New("api key is required: set it in the config file or " + EnvAPIKey)

// Config is the full process configuration.
type Config struct {
	// APIKey authenticates against both provider gateways.
	APIKey string `toml:"api_key"`

	// OpenAIBaseURL and AnthropicBaseURL point at the provider gateways.
	// Empty values fall back to the adapters' built-in defaults.
	OpenAIBaseURL    string `toml:"openai_base_url"`
	AnthropicBaseURL string `toml:"anthropic_base_url"`

	// PrimaryModel and ReasoningModel are the per-provider default models.
	PrimaryModel   string `toml:"primary_model"`
	ReasoningModel string `toml:"reasoning_model"`

	// Temperature, MaxTokens and SystemPrompt seed new sessions.
	Temperature  float64 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
	SystemPrompt string  `toml:"system_prompt"`

	// MaxContextLength bounds stored history length per user.
	MaxContextLength int `toml:"max_context_length"`

	// StateFile is where the session store persists itself.
	StateFile string `toml:"state_file"`

	// RequestTimeoutSeconds bounds each provider round trip.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PrimaryModel:          DefaultPrimaryModel,
		ReasoningModel:        DefaultReasoningModel,
		Temperature:           DefaultTemperature,
		MaxTokens:             DefaultMaxTokens,
		SystemPrompt:          DefaultSystemPrompt,
		MaxContextLength:      DefaultMaxContextLength,
		StateFile:             DefaultStateFile,
		RequestTimeoutSeconds: int(DefaultRequestTimeout / time.Second),
	}
}

// Load builds the effective configuration: defaults, then the TOML file at
// path (if it exists), then environment overrides. The result is validated;
// a missing credential is a fatal configuration error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.APIKey = key
	}
	if url := os.Getenv(EnvOpenAIBaseURL); url != "" {
		cfg.OpenAIBaseURL = url
	}
	if url := os.Getenv(EnvAnthropicBaseURL); url != "" {
		cfg.AnthropicBaseURL = url
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for fatal problems.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.MaxContextLength <= 0 {
		return fmt.Errorf("max_context_length must be positive, got %d", c.MaxContextLength)
	}
	if c.PrimaryModel == "" || c.ReasoningModel == "" {
		return fmt.Errorf("both primary_model and reasoning_model must be set")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", c.RequestTimeoutSeconds)
	}
	return nil
}

// RequestTimeout returns the configured round-trip bound as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
