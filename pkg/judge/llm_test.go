package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/provider"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	response *provider.Response
	err      error
	lastReq  *provider.Request
}

func (m *mockProvider) Complete(_ context.Context, req *provider.Request) (*provider.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockProvider) Name() string { return "mock" }

func reply(content string) *mockProvider {
	return &mockProvider{response: &provider.Response{
		Content: content,
		Usage:   provider.Usage{InputTokens: 100, OutputTokens: 20},
	}}
}

func TestJudge_ValidResponses(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantRefusal  *float64
		wantFaithful *float64
	}{
		{
			name:        "plain json",
			content:     `{"refusal_accuracy": 0.92, "faithfulness": 0.8, "reasoning": "ok"}`,
			wantRefusal: f(0.92), wantFaithful: f(0.8),
		},
		{
			name:         "fenced with null refusal",
			content:      "Here you go:\n```json\n{\"refusal_accuracy\": null, \"faithfulness\": 0.6}\n```",
			wantFaithful: f(0.6),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := reply(tt.content)
			j := New(mp, "claude-sonnet-4-5-20250929", nil)

			m, err := j.Judge(context.Background(), "Repository: demo")
			if err != nil {
				t.Fatalf("Judge() error: %v", err)
			}
			if !sameFloat(m.RefusalAccuracy, tt.wantRefusal) {
				t.Errorf("RefusalAccuracy = %v, want %v", deref(m.RefusalAccuracy), deref(tt.wantRefusal))
			}
			if !sameFloat(m.Faithfulness, tt.wantFaithful) {
				t.Errorf("Faithfulness = %v, want %v", deref(m.Faithfulness), deref(tt.wantFaithful))
			}
			if !strings.Contains(mp.lastReq.Messages[0].Content, "Repository: demo") {
				t.Errorf("prompt not rendered into request: %q", mp.lastReq.Messages[0].Content)
			}
			if mp.lastReq.System == "" {
				t.Error("system prompt missing")
			}
		})
	}
}

func TestJudge_MalformedIsTransient(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no json", "I think it is fine."},
		{"out of range", `{"refusal_accuracy": 1.7}`},
		{"no metric key", `{"reasoning": "forgot"}`},
		{"wrong type", `{"faithfulness": "high"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(reply(tt.content), "m", nil).Judge(context.Background(), "x")
			if !evalerr.IsTransient(err) {
				t.Fatalf("err = %v, want ToolInvocationError", err)
			}
		})
	}
}

func TestJudge_Unavailable(t *testing.T) {
	_, err := New(nil, "m", nil).Judge(context.Background(), "x")
	if !evalerr.IsProviderUnavailable(err) {
		t.Fatalf("nil provider: err = %v", err)
	}

	mp := &mockProvider{err: &evalerr.ProviderUnavailableError{Provider: "anthropic", Err: errors.New("dial tcp: refused")}}
	_, err = New(mp, "m", nil).Judge(context.Background(), "x")
	if !evalerr.IsProviderUnavailable(err) {
		t.Fatalf("provider error: err = %v", err)
	}
}

func TestJudge_Usage(t *testing.T) {
	j := New(reply(`{"faithfulness": 0.5}`), "m", nil)
	for i := 0; i < 2; i++ {
		if _, err := j.Judge(context.Background(), "x"); err != nil {
			t.Fatal(err)
		}
	}
	if u := j.Usage(); u.InputTokens != 200 || u.OutputTokens != 40 {
		t.Errorf("Usage = %+v", u)
	}
}

func f(v float64) *float64 { return &v }

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
