package config

import (
	"errors"
	"fmt"

	"github.com/MrWong99/quill/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by [Registry.CreateLLM] when the
// requested provider name has no registered factory.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LLMFactory constructs an [llm.Provider] from its configuration entry.
type LLMFactory func(entry ProviderEntry) (llm.Provider, error)

// Registry maps provider names to factories. The built-in factories are wired
// in by cmd/quill at startup; tests register their own.
type Registry struct {
	llm map[string]LLMFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{llm: make(map[string]LLMFactory)}
}

// RegisterLLM registers factory under name, replacing any previous
// registration.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[name] = factory
}

// CreateLLM instantiates the provider selected by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	factory, ok := r.llm[entry.Name]
	if !ok {
		return nil, fmt.Errorf("%w: llm %q", ErrProviderNotRegistered, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create llm provider %q: %w", entry.Name, err)
	}
	return p, nil
}
