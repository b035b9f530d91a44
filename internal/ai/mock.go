package ai

import (
	"context"
	"sync"

	"github.com/joescharf/marie/internal/models"
)

// MockProvider echoes the prompt. It needs no network access.
type MockProvider struct {
	mu       sync.Mutex
	requests []Request
}

func NewMock() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return models.ProviderMock }

func (p *MockProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	return "Mock AI response for: " + req.Prompt, nil
}

// Requests returns the requests seen so far.
func (p *MockProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request{}, p.requests...)
}
