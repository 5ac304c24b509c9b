package evaltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jdgilhuly/go_pillar_eval/pkg/provider"
)

// MockProvider is a simple provider that returns pre-configured responses
// in sequence. It is safe for concurrent use.
type MockProvider struct {
	responses []provider.Response
	mu        sync.Mutex
	idx       int
	requests  []provider.Request
}

// NewMockProvider creates a MockProvider that returns the given responses in
// order. Once all responses are consumed, subsequent calls return an error.
func NewMockProvider(responses ...provider.Response) *MockProvider {
	return &MockProvider{
		responses: responses,
	}
}

// Complete returns the next pre-configured response. It ignores the request
// contents entirely; responses are returned in the order they were provided.
func (m *MockProvider) Complete(_ context.Context, req *provider.Request) (*provider.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, *req)
	if m.idx >= len(m.responses) {
		return nil, fmt.Errorf("mock provider: no more responses (consumed %d/%d)", m.idx, len(m.responses))
	}

	resp := m.responses[m.idx]
	m.idx++
	return &resp, nil
}

// Name returns "mock".
func (m *MockProvider) Name() string { return "mock" }

// Requests returns a copy of every request received.
func (m *MockProvider) Requests() []provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// JudgeReply builds a provider response carrying the judge's JSON verdict.
func JudgeReply(refusalAccuracy, faithfulness float64) provider.Response {
	return provider.Response{
		Content: fmt.Sprintf(`{"refusal_accuracy": %g, "faithfulness": %g, "reasoning": "scripted"}`,
			refusalAccuracy, faithfulness),
		StopReason: "end_turn",
		Usage:      provider.Usage{InputTokens: 120, OutputTokens: 30},
	}
}
