// Command quill is a terminal chat client that lets a hosted LLM read, list,
// and edit files and run shell commands in a local workspace.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/quill/internal/agent"
	"github.com/MrWong99/quill/internal/config"
	"github.com/MrWong99/quill/internal/observe"
	"github.com/MrWong99/quill/internal/term"
	"github.com/MrWong99/quill/internal/tools"
	"github.com/MrWong99/quill/internal/tools/fileio"
	"github.com/MrWong99/quill/internal/tools/shell"
	"github.com/MrWong99/quill/pkg/provider/llm"
	"github.com/MrWong99/quill/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/quill/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "quill.yaml", "path to the YAML configuration file")
	providerName := flag.String("provider", "", "override provider.name from the config")
	model := flag.String("model", "", "override provider.model from the config")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		return 1
	}
	if *providerName != "" {
		cfg.Provider.Name = *providerName
	}
	if *model != "" {
		cfg.Provider.Model = *model
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		return 1
	}
	if err := config.ResolveAPIKey(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider ──────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := reg.CreateLLM(cfg.Provider)
	if err != nil {
		slog.Error("failed to create LLM provider", "err", err)
		return 1
	}
	slog.Info("provider created", "name", cfg.Provider.Name, "model", cfg.Provider.Model)

	// ── Workspace & tools ─────────────────────────────────────────────────────
	root := cfg.Workspace.Root
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			slog.Error("failed to determine working directory", "err", err)
			return 1
		}
	}
	root, err = filepath.Abs(root)
	if err != nil {
		slog.Error("failed to resolve workspace root", "err", err)
		return 1
	}

	toolReg := tools.NewRegistry()
	if err := toolReg.RegisterAll(fileio.NewTools(root, cfg.Workspace.MaxReadBytes)); err != nil {
		slog.Error("failed to register file tools", "err", err)
		return 1
	}
	if cfg.ShellEnabled() {
		if err := toolReg.RegisterAll(shell.NewTools(root, time.Duration(cfg.Shell.Timeout))); err != nil {
			slog.Error("failed to register shell tool", "err", err)
			return 1
		}
	}

	// ── Chat loop ─────────────────────────────────────────────────────────────
	terminal := term.New(os.Stdin, os.Stdout)
	loop := agent.New(provider, toolReg, terminal,
		agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
		agent.WithTemperature(cfg.Agent.Temperature),
		agent.WithMaxTokens(cfg.Agent.MaxTokens),
		agent.WithMaxRounds(cfg.Agent.MaxToolRounds),
		agent.WithMetrics(observe.DefaultMetrics()),
	)

	terminal.Bannerf("Chat with %s/%s in %s (ctrl-c or /quit to exit)",
		cfg.Provider.Name, cfg.Provider.Model, root)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// Ending the chat cancels the signal context so the metrics server
		// (if any) shuts down with it.
		defer stop()
		return loop.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Debug("goodbye")
	return 0
}

// registerBuiltinProviders wires all built-in provider factories into reg.
//
// "openai" uses the openai-go SDK directly so BaseURL can point at any
// OpenAI-compatible gateway (OpenRouter, vLLM, …). Everything else goes
// through any-llm-go.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "ollama",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
