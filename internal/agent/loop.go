// Package agent implements the conversation loop at the heart of quill: read
// a line of user input, send the full history plus tool schemas to the model,
// execute whatever tools the model requests, feed the results back, and repeat
// until the model answers with plain text.
//
// The loop is strictly sequential — user input, model request, and tool
// dispatch never overlap within one session. The only operation that may block
// for long is the model API call, which is cancelled through the context the
// loop runs under (interrupt signals reach it via signal.NotifyContext in
// cmd/quill).
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/quill/internal/observe"
	"github.com/MrWong99/quill/internal/tools"
	"github.com/MrWong99/quill/pkg/provider/llm"
)

const (
	// defaultMaxRounds bounds the number of model requests a single user turn
	// may trigger. The model re-enters the loop after every batch of tool
	// calls, so without a cap a confused model could cycle forever.
	defaultMaxRounds = 25

	// defaultMaxTokens caps completion length when the config does not set one.
	defaultMaxTokens = 1024
)

// UI is the terminal surface the loop talks to. It reads user lines and
// renders role-tagged output; the loop never touches stdin or stdout directly.
type UI interface {
	// ReadLine blocks for the next line of user input. ok is false on
	// end-of-input or when ctx is cancelled mid-read.
	ReadLine(ctx context.Context) (line string, ok bool)

	// Say renders one role-tagged line ("assistant", "tool", "error").
	Say(role, text string)
}

// Loop drives one chat session against a single [llm.Provider].
// It owns its [Conversation]; no other component reads or writes the history.
type Loop struct {
	provider llm.Provider
	registry *tools.Registry
	ui       UI
	conv     *Conversation

	systemPrompt string
	temperature  float64
	maxTokens    int
	maxRounds    int
	sendTools    bool
	metrics      *observe.Metrics
}

// Option is a functional option for configuring a Loop during construction.
type Option func(*Loop)

// WithSystemPrompt sets the system prompt injected into every model request.
func WithSystemPrompt(s string) Option {
	return func(l *Loop) { l.systemPrompt = s }
}

// WithTemperature sets the sampling temperature for all requests.
func WithTemperature(t float64) Option {
	return func(l *Loop) { l.temperature = t }
}

// WithMaxTokens caps completion tokens per request. Default is 1024.
func WithMaxTokens(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxTokens = n
		}
	}
}

// WithMaxRounds sets the per-turn cap on model requests. Default is 25.
func WithMaxRounds(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxRounds = n
		}
	}
}

// WithMetrics wires OpenTelemetry instruments into the loop. When unset, no
// metrics are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// New constructs a Loop over the given provider, tool registry, and UI.
func New(provider llm.Provider, registry *tools.Registry, ui UI, opts ...Option) *Loop {
	l := &Loop{
		provider:  provider,
		registry:  registry,
		ui:        ui,
		conv:      NewConversation(),
		maxTokens: defaultMaxTokens,
		maxRounds: defaultMaxRounds,
	}
	for _, o := range opts {
		o(l)
	}

	caps := provider.Capabilities()
	l.sendTools = caps.SupportsToolCalling
	if !l.sendTools && len(registry.Definitions()) > 0 {
		slog.Warn("model does not support tool calling; tools will not be offered")
	}
	if caps.MaxOutputTokens > 0 && l.maxTokens > caps.MaxOutputTokens {
		slog.Debug("clamping max tokens to model limit",
			"configured", l.maxTokens, "model_limit", caps.MaxOutputTokens)
		l.maxTokens = caps.MaxOutputTokens
	}
	return l
}

// Conversation exposes the loop's message history, mainly for tests.
func (l *Loop) Conversation() *Conversation {
	return l.conv
}

// Run executes the read-eval loop until the user quits, input ends, or ctx is
// cancelled. In-turn failures are rendered and the loop continues with the
// conversation intact, so a transient network error costs nothing but a retry.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, ok := l.ui.ReadLine(ctx)
		if !ok {
			// Distinguishes an interrupt mid-read from plain end-of-input.
			return ctx.Err()
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		if err := l.RunTurn(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			// Network and round-limit errors are recoverable: the history is
			// intact, so the user may simply try again.
			l.ui.Say("error", err.Error())
			slog.Warn("turn failed", "err", err)
		}
	}
}

// RunTurn processes one user turn: it appends input to the conversation and
// keeps requesting completions — dispatching tool calls between requests —
// until the model produces a plain-text response or the round cap is hit.
//
// On error the conversation retains everything appended so far; every tool
// call already in the history has its matching result, so the next request is
// always well-formed.
func (l *Loop) RunTurn(ctx context.Context, input string) error {
	ctx, span := observe.StartSpan(ctx, "agent.turn")
	defer span.End()

	l.conv.Append(llm.Message{Role: "user", Content: input})

	for round := 0; round < l.maxRounds; round++ {
		resp, err := l.complete(ctx)
		if err != nil {
			return fmt.Errorf("agent: completion request: %w", err)
		}

		l.conv.Append(llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if resp.Content != "" {
			l.ui.Say("assistant", resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			return nil
		}

		// Dispatch synchronously, in the order the model emitted the calls.
		// Every call gets exactly one result message before the next request.
		for _, call := range resp.ToolCalls {
			l.conv.Append(l.dispatch(ctx, call))
		}
	}

	return ErrRoundLimit
}

// complete sends the current history plus tool schemas to the provider.
func (l *Loop) complete(ctx context.Context) (*llm.CompletionResponse, error) {
	req := llm.CompletionRequest{
		Messages:     l.conv.Messages(),
		Temperature:  l.temperature,
		MaxTokens:    l.maxTokens,
		SystemPrompt: l.systemPrompt,
	}
	if l.sendTools {
		req.Tools = l.registry.Definitions()
	}

	start := time.Now()
	resp, err := l.provider.Complete(ctx, req)
	elapsed := time.Since(start)

	if l.metrics != nil {
		l.metrics.LLMDuration.Record(ctx, elapsed.Seconds())
		if err != nil {
			l.metrics.ProviderErrors.Add(ctx, 1)
		}
	}
	if err != nil {
		return nil, err
	}

	observe.Logger(ctx).Debug("completion finished",
		"duration_ms", elapsed.Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"tool_calls", len(resp.ToolCalls),
	)
	return resp, nil
}

// dispatch executes one tool call and converts the outcome into the tool
// message answering it. Handler failures — unknown tool, unparsable
// arguments, execution errors — never abort the turn; they are flagged in
// the result content so the model can adjust its next action.
func (l *Loop) dispatch(ctx context.Context, call llm.ToolCall) llm.Message {
	ctx, span := observe.StartSpan(ctx, "tool."+call.Name)
	defer span.End()

	l.ui.Say("tool", fmt.Sprintf("%s(%s)", call.Name, call.Arguments))

	content, err := l.execute(ctx, call)
	status := "ok"
	if err != nil {
		status = "error"
		content = "ERROR: " + err.Error()
		observe.Logger(ctx).Warn("tool call failed", "tool", call.Name, "err", err)
	}

	if l.metrics != nil {
		l.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", call.Name),
			attribute.String("status", status),
		))
	}

	return llm.Message{
		Role:       "tool",
		Content:    content,
		ToolCallID: call.ID,
	}
}

// execute runs the named tool handler, timing it for the tool latency metric.
func (l *Loop) execute(ctx context.Context, call llm.ToolCall) (string, error) {
	tool, ok := l.registry.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("agent: unknown tool %q", call.Name)
	}

	start := time.Now()
	out, err := tool.Handler(ctx, call.Arguments)
	if l.metrics != nil {
		l.metrics.ToolDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("tool", call.Name),
		))
	}
	return out, err
}
