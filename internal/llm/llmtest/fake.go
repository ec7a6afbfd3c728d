// Package llmtest provides a deterministic in-memory oracle for tests
package llmtest

import (
	"context"
	"sync"

	"github.com/ppiankov/adjudex/internal/llm"
)

// RespondFunc produces the oracle answer for a request
type RespondFunc func(ctx context.Context, req llm.CompletionRequest) (string, error)

// Oracle is a scripted llm.Oracle. It records every request it receives
type Oracle struct {
	name      string
	respond   RespondFunc
	available bool

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

// New creates a fake oracle that answers with respond
func New(respond RespondFunc) *Oracle {
	return &Oracle{name: "fake", respond: respond, available: true}
}

// Static creates a fake oracle that always returns text
func Static(text string) *Oracle {
	return New(func(context.Context, llm.CompletionRequest) (string, error) {
		return text, nil
	})
}

// Failing creates a fake oracle whose calls always fail with err
func Failing(err error) *Oracle {
	return New(func(context.Context, llm.CompletionRequest) (string, error) {
		return "", err
	})
}

// Name returns the provider name
func (o *Oracle) Name() string {
	return o.name
}

// IsAvailable reports the scripted availability
func (o *Oracle) IsAvailable(context.Context) bool {
	return o.available
}

// SetAvailable changes the reported availability
func (o *Oracle) SetAvailable(v bool) {
	o.available = v
}

// Complete records the request and returns the scripted answer
func (o *Oracle) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	o.mu.Lock()
	o.requests = append(o.requests, req)
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := o.respond(ctx, req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Text: text, Model: "fake-model"}, nil
}

// Calls returns the number of Complete calls so far
func (o *Oracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

// Requests returns a copy of the recorded requests
func (o *Oracle) Requests() []llm.CompletionRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]llm.CompletionRequest, len(o.requests))
	copy(out, o.requests)
	return out
}
