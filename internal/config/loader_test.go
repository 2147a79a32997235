package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromReader(t *testing.T) {
	t.Parallel()
	yml := `
log_level: debug
metrics_addr: "localhost:9091"
provider:
  name: anthropic
  model: claude-sonnet-4-20250514
  api_key: sk-test
agent:
  system_prompt: "You are a coding assistant."
  temperature: 0.7
  max_tokens: 2048
  max_tool_rounds: 10
workspace:
  max_read_bytes: 524288
shell:
  enabled: false
  timeout: 10s
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != LogDebug {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.MetricsAddr != "localhost:9091" {
		t.Errorf("metrics addr = %q", cfg.MetricsAddr)
	}
	if cfg.Provider.Name != "anthropic" || cfg.Provider.Model != "claude-sonnet-4-20250514" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Agent.Temperature != 0.7 || cfg.Agent.MaxTokens != 2048 || cfg.Agent.MaxToolRounds != 10 {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Workspace.MaxReadBytes != 524288 {
		t.Errorf("workspace = %+v", cfg.Workspace)
	}
	if cfg.ShellEnabled() {
		t.Error("shell should be disabled")
	}
	if time.Duration(cfg.Shell.Timeout) != 10*time.Second {
		t.Errorf("shell timeout = %v", cfg.Shell.Timeout)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yml := `
provider:
  name: openai
  model: gpt-4o-mini
persistenc:
  enabled: true
`
	if _, err := LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Error("expected error for unknown top-level field")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "quill.yaml")
	yml := "provider:\n  name: ollama\n  model: llama3.2\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Name != "ollama" {
		t.Errorf("provider name = %q", cfg.Provider.Name)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Provider: ProviderEntry{Name: "openai", Model: "gpt-4o-mini"},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid default-ish", func(c *Config) {}, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"missing provider name", func(c *Config) { c.Provider.Name = "" }, "provider.name is required"},
		{"unknown provider", func(c *Config) { c.Provider.Name = "skynet" }, "provider.name"},
		{"missing model", func(c *Config) { c.Provider.Model = "" }, "provider.model is required"},
		{"temperature too high", func(c *Config) { c.Agent.Temperature = 2.5 }, "temperature"},
		{"negative temperature", func(c *Config) { c.Agent.Temperature = -0.1 }, "temperature"},
		{"negative max_tokens", func(c *Config) { c.Agent.MaxTokens = -1 }, "max_tokens"},
		{"negative max_tool_rounds", func(c *Config) { c.Agent.MaxToolRounds = -1 }, "max_tool_rounds"},
		{"negative max_read_bytes", func(c *Config) { c.Workspace.MaxReadBytes = -1 }, "max_read_bytes"},
		{"missing workspace root", func(c *Config) { c.Workspace.Root = "/definitely/not/here" }, "workspace.root"},
		{"negative shell timeout", func(c *Config) { c.Shell.Timeout = Duration(-time.Second) }, "shell.timeout"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		LogLevel: "loud",
		Agent:    AgentConfig{Temperature: 9},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"log_level", "provider.name", "provider.model", "temperature"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q: %v", want, err)
		}
	}
}

func TestValidate_WorkspaceRootMustBeDirectory(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{
		Provider:  ProviderEntry{Name: "openai", Model: "gpt-4o-mini"},
		Workspace: WorkspaceConfig{Root: file},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("error = %v, want complaint about non-directory root", err)
	}
}

func TestResolveAPIKey_FromConfig(t *testing.T) {
	cfg := &Config{Provider: ProviderEntry{Name: "openai", APIKey: "sk-configured"}}
	if err := ResolveAPIKey(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "sk-configured" {
		t.Errorf("api key = %q, want the configured one untouched", cfg.Provider.APIKey)
	}
}

func TestResolveAPIKey_FromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")

	cfg := &Config{Provider: ProviderEntry{Name: "openai"}}
	if err := ResolveAPIKey(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "sk-or-env" {
		t.Errorf("api key = %q, want the OPENROUTER_API_KEY fallback", cfg.Provider.APIKey)
	}
}

func TestResolveAPIKey_EnvOrder(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-first")
	t.Setenv("OPENROUTER_API_KEY", "sk-second")

	cfg := &Config{Provider: ProviderEntry{Name: "openai"}}
	if err := ResolveAPIKey(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "sk-first" {
		t.Errorf("api key = %q, want OPENAI_API_KEY to win", cfg.Provider.APIKey)
	}
}

func TestResolveAPIKey_MissingKeyIsFatal(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := &Config{Provider: ProviderEntry{Name: "anthropic"}}
	err := ResolveAPIKey(cfg)
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Errorf("error %q should name the env variable", err.Error())
	}
}

func TestResolveAPIKey_KeylessProviders(t *testing.T) {
	t.Parallel()
	for _, name := range keylessProviders {
		cfg := &Config{Provider: ProviderEntry{Name: name}}
		if err := ResolveAPIKey(cfg); err != nil {
			t.Errorf("provider %q should not require a key: %v", name, err)
		}
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if !cfg.ShellEnabled() {
		t.Error("shell should default to enabled")
	}
}
