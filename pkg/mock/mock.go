// Package mock provides scripted worker collaborators. Each collaborator
// replays a sequence of responses, then falls back to a default, and every
// call is recorded for later inspection. Scripts can be written in YAML to
// run evaluations offline.
package mock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

// Tool names used in call records and errors.
const (
	ToolSecretScan       = "secret_scan"
	ToolStructureAnalyze = "structure_analyze"
	ToolDocReview        = "doc_review"
	ToolJudge            = "judge"
)

// Response is one scripted reply.
type Response[T any] struct {
	Value T `yaml:"value" json:"value"`

	// Error makes the call fail with this message. Transient wraps it as a
	// ToolInvocationError so workers retry it; Unavailable wraps it as a
	// ProviderUnavailableError.
	Error       string `yaml:"error,omitempty" json:"error,omitempty"`
	Transient   bool   `yaml:"transient,omitempty" json:"transient,omitempty"`
	Unavailable bool   `yaml:"unavailable,omitempty" json:"unavailable,omitempty"`

	// Panic makes the call panic with this value.
	Panic string `yaml:"panic,omitempty" json:"panic,omitempty"`

	// Delay is waited before replying. The wait ends early when the
	// context is done.
	Delay time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
}

// Script is the behavior of one collaborator.
type Script[T any] struct {
	Responses       []Response[T] `yaml:"responses,omitempty" json:"responses,omitempty"`
	DefaultResponse *Response[T]  `yaml:"default_response,omitempty" json:"default_response,omitempty"`
}

func (s Script[T]) configured() bool {
	return len(s.Responses) > 0 || s.DefaultResponse != nil
}

// Config scripts all four collaborators.
type Config struct {
	Secrets   Script[[]worker.SecretFinding] `yaml:"secret_scan" json:"secret_scan"`
	Structure Script[worker.Structure]       `yaml:"structure_analyze" json:"structure_analyze"`
	Docs      Script[worker.DocStats]        `yaml:"doc_review" json:"doc_review"`
	Judge     Script[worker.JudgeMetrics]    `yaml:"judge" json:"judge"`
}

// Load reads a YAML collaborator script.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading mock script %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &evalerr.ConfigurationError{Field: path, Reason: "parsing mock script", Err: err}
	}
	return cfg, nil
}

// CallRecord captures a single collaborator invocation.
type CallRecord struct {
	Tool      string        `json:"tool"`
	Args      int           `json:"args"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Registry implements every worker collaborator interface from a Config.
// All methods are safe for concurrent use.
type Registry struct {
	cfg     Config
	mu      sync.Mutex
	calls   []CallRecord
	callIdx map[string]int
}

// NewRegistry creates a registry replaying cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, callIdx: make(map[string]int)}
}

// Collaborators returns r wired as every collaborator. The judge is left
// nil when no judge script is configured, which the performance worker
// reports as unavailable.
func (r *Registry) Collaborators() worker.Collaborators {
	c := worker.Collaborators{Secrets: r, Structure: r, Docs: r}
	if r.cfg.Judge.configured() {
		c.Judge = r
	}
	return c
}

// SecretScan implements worker.SecretScanner.
func (r *Registry) SecretScan(ctx context.Context, files []string) ([]worker.SecretFinding, error) {
	return resolve(ctx, r, ToolSecretScan, r.cfg.Secrets, len(files))
}

// StructureAnalyze implements worker.StructureAnalyzer.
func (r *Registry) StructureAnalyze(ctx context.Context, files []string) (worker.Structure, error) {
	return resolve(ctx, r, ToolStructureAnalyze, r.cfg.Structure, len(files))
}

// DocReview implements worker.DocReviewer.
func (r *Registry) DocReview(ctx context.Context, readmeFiles []string) (worker.DocStats, error) {
	return resolve(ctx, r, ToolDocReview, r.cfg.Docs, len(readmeFiles))
}

// Judge implements worker.ExternalJudge.
func (r *Registry) Judge(ctx context.Context, prompt string) (worker.JudgeMetrics, error) {
	return resolve(ctx, r, ToolJudge, r.cfg.Judge, 1)
}

// resolve returns the next sequential response for tool, falling back to
// the default response once the sequence is exhausted. A tool with no
// script fails rather than silently returning zero values.
func resolve[T any](ctx context.Context, r *Registry, tool string, script Script[T], args int) (T, error) {
	var zero T
	start := time.Now()

	r.mu.Lock()
	idx := r.callIdx[tool]
	var resp Response[T]
	switch {
	case idx < len(script.Responses):
		resp = script.Responses[idx]
		r.callIdx[tool] = idx + 1
	case script.DefaultResponse != nil:
		resp = *script.DefaultResponse
	default:
		r.mu.Unlock()
		err := fmt.Errorf("no mock configured for tool %q", tool)
		if idx > 0 {
			err = fmt.Errorf("mock for tool %q: sequential responses exhausted and no default_response configured", tool)
		}
		r.record(tool, args, err, start)
		return zero, err
	}
	r.mu.Unlock()

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			r.record(tool, args, ctx.Err(), start)
			return zero, ctx.Err()
		}
	}

	if resp.Panic != "" {
		r.record(tool, args, errors.New("panic: "+resp.Panic), start)
		panic(resp.Panic)
	}

	if resp.Error != "" {
		var err error = fmt.Errorf("mock error for tool %q: %s", tool, resp.Error)
		switch {
		case resp.Unavailable:
			err = &evalerr.ProviderUnavailableError{Provider: tool, Err: err}
		case resp.Transient:
			err = evalerr.Transient(tool, err)
		}
		r.record(tool, args, err, start)
		return zero, err
	}

	r.record(tool, args, nil, start)
	return resp.Value, nil
}

func (r *Registry) record(tool string, args int, err error, start time.Time) {
	rec := CallRecord{Tool: tool, Args: args, Duration: time.Since(start), Timestamp: start}
	if err != nil {
		rec.Error = err.Error()
	}
	r.mu.Lock()
	r.calls = append(r.calls, rec)
	r.mu.Unlock()
}

// GetCalls returns a copy of all recorded calls.
func (r *Registry) GetCalls() []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, len(r.calls))
	copy(out, r.calls)
	return out
}

// GetCallsForTool returns recorded calls filtered to one tool.
func (r *Registry) GetCallsForTool(tool string) []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallRecord
	for _, c := range r.calls {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

// Float returns a pointer to v, for building JudgeMetrics.
func Float(v float64) *float64 {
	return &v
}
