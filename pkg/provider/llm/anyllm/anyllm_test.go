package anyllm

import (
	"strings"
	"testing"

	"github.com/MrWong99/quill/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("skynet", "t-800"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "claude-3-5-sonnet-latest"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "be terse",
		Messages: []llm.Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		},
		Tools: []llm.ToolDefinition{
			{Name: "edit_file", Description: "edits files", Parameters: map[string]any{"type": "object"}},
		},
		Temperature: 0.4,
		MaxTokens:   1024,
	})

	if params.Model != "claude-3-5-sonnet-latest" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("got %d messages, want 3 (system + history)", len(params.Messages))
	}
	if params.Messages[0].Content != "be terse" {
		t.Errorf("messages[0] = %+v, want the system prompt first", params.Messages[0])
	}
	if params.Temperature == nil || *params.Temperature != 0.4 {
		t.Errorf("temperature = %v, want 0.4", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 1024 {
		t.Errorf("max tokens = %v, want 1024", params.MaxTokens)
	}
	if len(params.Tools) != 1 || params.Tools[0].Function.Name != "edit_file" {
		t.Errorf("tools = %+v", params.Tools)
	}
}

func TestBuildParams_ZeroOptionalsOmitted(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if params.Temperature != nil {
		t.Error("zero temperature should be omitted")
	}
	if params.MaxTokens != nil {
		t.Error("zero max tokens should be omitted")
	}
}

func TestConvertMessage_ToolCalls(t *testing.T) {
	t.Parallel()
	msg := convertMessage(llm.Message{
		Role: "assistant",
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "list_files", Arguments: "{}"},
		},
	})
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "call_1" || tc.Type != "function" || tc.Function.Name != "list_files" {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestConvertMessage_ToolResult(t *testing.T) {
	t.Parallel()
	msg := convertMessage(llm.Message{
		Role:       "tool",
		Content:    `["a.txt","b/"]`,
		ToolCallID: "call_1",
	})
	if msg.Role != "tool" || msg.ToolCallID != "call_1" || msg.Content != `["a.txt","b/"]` {
		t.Errorf("message = %+v", msg)
	}
}

func TestModelCapabilities_Claude(t *testing.T) {
	t.Parallel()
	caps := modelCapabilities("claude-3-5-sonnet-latest")
	if !caps.SupportsToolCalling {
		t.Error("claude supports tool calling")
	}
	if caps.ContextWindow != 200_000 {
		t.Errorf("context window = %d, want 200000", caps.ContextWindow)
	}
	if caps.MaxOutputTokens != 8_192 {
		t.Errorf("max output tokens = %d, want 8192", caps.MaxOutputTokens)
	}
}

func TestModelCapabilities_Unknown(t *testing.T) {
	t.Parallel()
	caps := modelCapabilities("local-mystery-7b")
	if !caps.SupportsToolCalling || caps.ContextWindow != 128_000 {
		t.Errorf("unknown model caps = %+v, want permissive defaults", caps)
	}
}

func TestCreateBackend_SupportedNames(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"ollama", "llamacpp", "llamafile"} {
		t.Run(name, func(t *testing.T) {
			backend, err := createBackend(name)
			if err != nil {
				t.Fatalf("createBackend(%q): %v", name, err)
			}
			if backend == nil {
				t.Fatal("nil backend")
			}
		})
	}
}

func TestCreateBackend_CaseInsensitive(t *testing.T) {
	t.Parallel()
	if _, err := createBackend("Ollama"); err != nil {
		t.Errorf("provider names should be case-insensitive: %v", err)
	}
}

func TestCreateBackend_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := createBackend("skynet")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "skynet") {
		t.Errorf("error %q should name the bad provider", err.Error())
	}
}
