// Package tools defines the shared [Tool] type and the static [Registry] that
// maps tool names to handlers. Each sub-package exports a constructor function
// that returns a slice of [Tool] values ready for registration.
package tools

import (
	"context"
	"fmt"

	"github.com/MrWong99/quill/pkg/provider/llm"
)

// Tool represents a local tool the model may invoke during a conversation.
//
// Each Tool carries its LLM-facing schema ([llm.ToolDefinition]) together
// with the handler function that is invoked when the LLM calls the tool.
type Tool struct {
	// Definition is the tool's LLM-facing schema including its name,
	// description, and JSON Schema parameter specification. Schemas are
	// written by hand and must exactly match what the handler parses.
	Definition llm.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result string on success, or a descriptive error.
	// Implementations must be safe for concurrent use and must respect
	// context cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}

// Registry is a static table of tools keyed by name. Registration happens once
// at startup; lookups during the conversation are read-only.
type Registry struct {
	byName map[string]Tool
	order  []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds t to the registry. A tool with the same name replaces the
// previous registration.
func (r *Registry) Register(t Tool) error {
	if t.Definition.Name == "" {
		return fmt.Errorf("tools: tool must have a non-empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: tool %q must have a non-nil handler", t.Definition.Name)
	}
	if _, exists := r.byName[t.Definition.Name]; !exists {
		r.order = append(r.order, t.Definition.Name)
	}
	r.byName[t.Definition.Name] = t
	return nil
}

// RegisterAll registers every tool in ts, stopping at the first error.
func (r *Registry) RegisterAll(ts []Tool) error {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Definitions returns the LLM-facing definitions of all registered tools in
// registration order. The result is sent unchanged with every model request.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].Definition)
	}
	return defs
}
