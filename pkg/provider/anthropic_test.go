package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
)

func newTestProvider(t *testing.T, url string) *Anthropic {
	t.Helper()
	p, err := NewAnthropic(context.Background(), AnthropicConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		MaxRetries: -1,
	})
	if err != nil {
		t.Fatalf("NewAnthropic() error: %v", err)
	}
	return p
}

func TestAnthropicComplete_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("X-Api-Key = %q, want %q", got, "test-key")
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if body["model"] != "claude-sonnet-4-5-20250929" {
			t.Errorf("model = %v", body["model"])
		}
		if _, ok := body["system"]; !ok {
			t.Error("system prompt missing from request")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_01",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": `{"refusal_accuracy": 0.9}`},
			},
			"usage": map[string]any{"input_tokens": 15, "output_tokens": 8},
		})
	}))
	defer server.Close()

	got, err := newTestProvider(t, server.URL).Complete(context.Background(), &Request{
		Model:    "claude-sonnet-4-5-20250929",
		System:   "You are a judge.",
		Messages: []Message{{Role: "user", Content: "Assess."}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got.Content != `{"refusal_accuracy": 0.9}` {
		t.Errorf("Content = %q", got.Content)
	}
	if got.StopReason != "end_turn" {
		t.Errorf("StopReason = %q", got.StopReason)
	}
	if got.Usage.InputTokens != 15 || got.Usage.OutputTokens != 8 {
		t.Errorf("Usage = %+v", got.Usage)
	}
}

func TestAnthropicComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusServiceUnavailable, true},
		{"unauthorized", http.StatusUnauthorized, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`))
			}))
			defer server.Close()

			_, err := newTestProvider(t, server.URL).Complete(context.Background(), &Request{
				Model:    "claude-sonnet-4-5-20250929",
				Messages: []Message{{Role: "user", Content: "x"}},
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := evalerr.IsProviderUnavailable(err); got != tt.unavailable {
				t.Errorf("IsProviderUnavailable = %v, want %v (err: %v)", got, tt.unavailable, err)
			}
			if calls.Load() != 1 {
				t.Errorf("calls = %d, want 1 with retries disabled", calls.Load())
			}
		})
	}
}

func TestAnthropicComplete_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestProvider(t, url).Complete(context.Background(), &Request{
		Model:    "claude-sonnet-4-5-20250929",
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	if !evalerr.IsProviderUnavailable(err) {
		t.Fatalf("err = %v, want ProviderUnavailableError", err)
	}
}

func TestNewAnthropic_MissingKey(t *testing.T) {
	t.Setenv("PILLAR_TEST_EMPTY_KEY", "")
	_, err := NewAnthropic(context.Background(), AnthropicConfig{APIKeyEnv: "PILLAR_TEST_EMPTY_KEY"})
	if !evalerr.IsProviderUnavailable(err) {
		t.Fatalf("err = %v, want ProviderUnavailableError", err)
	}
}

func TestBedrockModel(t *testing.T) {
	if got := BedrockModel(anthropic.ModelClaudeSonnet4_5_20250929); got != "us.anthropic.claude-sonnet-4-5-20250929-v1:0" {
		t.Errorf("BedrockModel() = %q", got)
	}
	if got := BedrockModel("custom-model"); got != "custom-model" {
		t.Errorf("BedrockModel(custom) = %q", got)
	}
}
