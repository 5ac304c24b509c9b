// Package judge implements the external judge consumed by the performance
// worker: an LLM prompted with a repository description whose JSON reply is
// validated against a schema before its metrics are trusted.
package judge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/prompt"
	"github.com/jdgilhuly/go_pillar_eval/pkg/provider"
	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

// LLMJudge implements worker.ExternalJudge with an LLM provider.
type LLMJudge struct {
	Provider provider.Provider
	Model    string
	Template *prompt.Template

	mu    sync.Mutex
	usage provider.Usage
}

var _ worker.ExternalJudge = (*LLMJudge)(nil)

// New creates an LLMJudge. A nil template uses prompt.Default.
func New(p provider.Provider, model string, tmpl *prompt.Template) *LLMJudge {
	if tmpl == nil {
		tmpl = prompt.Default()
	}
	return &LLMJudge{Provider: p, Model: model, Template: tmpl}
}

// Judge renders the prompt, calls the provider and validates the reply.
// A malformed reply is a ToolInvocationError so the caller retries it; an
// unreachable provider is a ProviderUnavailableError.
func (j *LLMJudge) Judge(ctx context.Context, repoPrompt string) (worker.JudgeMetrics, error) {
	if j.Provider == nil {
		return worker.JudgeMetrics{}, &evalerr.ProviderUnavailableError{
			Provider: "judge",
			Err:      errors.New("no provider configured"),
		}
	}
	tmpl := j.Template
	if tmpl == nil {
		tmpl = prompt.Default()
	}
	rendered, err := tmpl.Render(map[string]any{"Repository": repoPrompt})
	if err != nil {
		return worker.JudgeMetrics{}, fmt.Errorf("rendering judge prompt: %w", err)
	}

	resp, err := j.Provider.Complete(ctx, &provider.Request{
		Model:     j.Model,
		System:    rendered.System,
		Messages:  []provider.Message{{Role: "user", Content: rendered.User}},
		MaxTokens: 1024,
	})
	if err != nil {
		return worker.JudgeMetrics{}, fmt.Errorf("llm judge call failed: %w", err)
	}
	j.addUsage(resp.Usage)

	obj, err := validateResponse(resp.Content)
	if err != nil {
		return worker.JudgeMetrics{}, evalerr.Transient("judge", err)
	}
	return metricsFrom(obj), nil
}

// Usage returns the accumulated token usage from judge calls.
func (j *LLMJudge) Usage() provider.Usage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.usage
}

func (j *LLMJudge) addUsage(u provider.Usage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.usage.InputTokens += u.InputTokens
	j.usage.OutputTokens += u.OutputTokens
}

func metricsFrom(obj map[string]any) worker.JudgeMetrics {
	var m worker.JudgeMetrics
	if v, ok := obj["refusal_accuracy"].(float64); ok {
		m.RefusalAccuracy = &v
	}
	if v, ok := obj["faithfulness"].(float64); ok {
		m.Faithfulness = &v
	}
	return m
}
