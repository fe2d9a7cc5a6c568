package llm

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockProvider returns canned responses for tests and offline pipeline runs.
// GenerateFunc, when set, takes precedence; otherwise Responses are served in
// order and the last one repeats.
type MockProvider struct {
	GenerateFunc func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error)
	Responses    []string

	calls atomic.Int64
}

var _ Provider = (*MockProvider)(nil)

func (p *MockProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	n := p.calls.Add(1) - 1

	if p.GenerateFunc != nil {
		return p.GenerateFunc(ctx, prompt, systemPrompt, options)
	}
	if len(p.Responses) == 0 {
		return fmt.Sprintf("mock response %d", n), nil
	}
	idx := int(n)
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	return p.Responses[idx], nil
}

func (p *MockProvider) AdaptInstructions(raw string) string {
	return raw
}

// Calls returns how many times GenerateResponse has been invoked.
func (p *MockProvider) Calls() int64 {
	return p.calls.Load()
}
