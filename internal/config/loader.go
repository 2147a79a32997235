package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the provider names the built-in registry knows.
// [Validate] rejects anything else so a typo fails at startup, not mid-chat.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// apiKeyEnvVars maps a provider name to the environment variables consulted
// (in order) when provider.api_key is not set in the config file.
var apiKeyEnvVars = map[string][]string{
	"openai":    {"OPENAI_API_KEY", "OPENROUTER_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"deepseek":  {"DEEPSEEK_API_KEY"},
	"mistral":   {"MISTRAL_API_KEY"},
	"groq":      {"GROQ_API_KEY"},
}

// keylessProviders run locally and need no API key.
var keylessProviders = []string{"ollama", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate]. A missing file is reported with [os.ErrNotExist] so callers can
// fall back to [Default].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Provider.Name == "" {
		errs = append(errs, fmt.Errorf("provider.name is required"))
	} else if !slices.Contains(ValidProviderNames, cfg.Provider.Name) {
		errs = append(errs, fmt.Errorf("provider.name %q is unknown; valid values: %v", cfg.Provider.Name, ValidProviderNames))
	}
	if cfg.Provider.Model == "" {
		errs = append(errs, fmt.Errorf("provider.model is required"))
	}

	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 2 {
		errs = append(errs, fmt.Errorf("agent.temperature %.2f is out of range [0.0, 2.0]", cfg.Agent.Temperature))
	}
	if cfg.Agent.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("agent.max_tokens must not be negative"))
	}
	if cfg.Agent.MaxToolRounds < 0 {
		errs = append(errs, fmt.Errorf("agent.max_tool_rounds must not be negative"))
	}

	if cfg.Workspace.MaxReadBytes < 0 {
		errs = append(errs, fmt.Errorf("workspace.max_read_bytes must not be negative"))
	}
	if cfg.Workspace.Root != "" {
		info, err := os.Stat(cfg.Workspace.Root)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("workspace.root %q: %w", cfg.Workspace.Root, err))
		case !info.IsDir():
			errs = append(errs, fmt.Errorf("workspace.root %q is not a directory", cfg.Workspace.Root))
		}
	}

	if cfg.Shell.Timeout < 0 {
		errs = append(errs, fmt.Errorf("shell.timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// ResolveAPIKey fills cfg.Provider.APIKey from the provider's environment
// variables when the config file leaves it empty. A provider that requires a
// key and finds none is a fatal configuration error, reported before any
// conversation starts.
func ResolveAPIKey(cfg *Config) error {
	if cfg.Provider.APIKey != "" {
		return nil
	}
	if slices.Contains(keylessProviders, cfg.Provider.Name) {
		return nil
	}

	envs := apiKeyEnvVars[cfg.Provider.Name]
	for _, name := range envs {
		if v := os.Getenv(name); v != "" {
			cfg.Provider.APIKey = v
			return nil
		}
	}
	return fmt.Errorf("config: no API key for provider %q: set provider.api_key or one of %v", cfg.Provider.Name, envs)
}
