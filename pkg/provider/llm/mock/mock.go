// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the agent loop sends correct
// CompletionRequests and to feed controlled responses without a live LLM
// backend. All fields are safe to set before calling any method; mutating them
// during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []*llm.CompletionResponse{{Content: "Hello!"}},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/quill/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Each call to Complete consumes the next entry of Responses (and Errs, when
// set); when the scripted responses run out, the last entry is repeated. A nil
// Responses slice makes Complete return an empty response.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Responses is the scripted sequence of responses returned by Complete,
	// one per call, repeating the final entry once exhausted.
	Responses []*llm.CompletionResponse

	// Errs is an optional parallel sequence of errors. A non-nil entry is
	// returned instead of the corresponding response.
	Errs []error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	next int
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	i := p.next
	if i >= len(p.Responses) && len(p.Responses) > 0 {
		i = len(p.Responses) - 1
	}
	p.next++

	if i < len(p.Errs) && p.Errs[i] != nil {
		return nil, p.Errs[i]
	}
	if i < len(p.Responses) {
		return p.Responses[i], nil
	}
	return &llm.CompletionResponse{}, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.ModelCapabilities
}
