// Package config provides the configuration schema, loader, and LLM provider
// registry for quill.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a [time.Duration] that decodes YAML strings such as "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for quill.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// [Default] supplies a working configuration when no file exists.
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is an optional TCP address for the Prometheus /metrics
	// endpoint (e.g., "localhost:9091"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`

	Provider  ProviderEntry   `yaml:"provider"`
	Agent     AgentConfig     `yaml:"agent"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Shell     ShellConfig     `yaml:"shell"`
}

// ProviderEntry selects and configures the LLM backend. The Name field is
// used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "openai", "anthropic", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API. When empty it
	// is resolved from the provider's environment variable at startup; a
	// provider that requires a key and finds none is a fatal configuration
	// error.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Use this to talk
	// to OpenAI-compatible gateways such as OpenRouter.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`
}

// AgentConfig tunes the conversation loop.
type AgentConfig struct {
	// SystemPrompt is injected into every model request.
	SystemPrompt string `yaml:"system_prompt"`

	// Temperature controls output randomness in [0.0, 2.0]. Zero uses the
	// provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps completion tokens per request. Zero means 1024.
	MaxTokens int `yaml:"max_tokens"`

	// MaxToolRounds bounds the number of model requests a single user turn
	// may trigger through repeated tool calls. Zero means 25.
	MaxToolRounds int `yaml:"max_tool_rounds"`
}

// WorkspaceConfig scopes the file tools.
type WorkspaceConfig struct {
	// Root is the directory all file tool paths are resolved against and
	// confined to. Empty means the process working directory.
	Root string `yaml:"root"`

	// MaxReadBytes caps the file size read_file will return. Zero means 1 MiB.
	MaxReadBytes int64 `yaml:"max_read_bytes"`
}

// ShellConfig tunes the run_terminal_command tool.
type ShellConfig struct {
	// Enabled switches the shell tool on. Default: true.
	Enabled *bool `yaml:"enabled"`

	// Timeout is the wall-clock limit per command. Zero means 30s.
	Timeout Duration `yaml:"timeout"`
}

// ShellEnabled reports whether the shell tool should be registered,
// defaulting to true when unset.
func (c *Config) ShellEnabled() bool {
	if c.Shell.Enabled == nil {
		return true
	}
	return *c.Shell.Enabled
}

// Default returns the configuration used when no config file exists: the
// openai provider against gpt-4o-mini, info logging, the shell tool enabled,
// and the process working directory as workspace root.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Provider: ProviderEntry{
			Name:  "openai",
			Model: "gpt-4o-mini",
		},
	}
}
