package evaltest

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jdgilhuly/go_pillar_eval/pkg/config"
	"github.com/jdgilhuly/go_pillar_eval/pkg/dispatch"
	"github.com/jdgilhuly/go_pillar_eval/pkg/judge"
	"github.com/jdgilhuly/go_pillar_eval/pkg/mock"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
	"github.com/jdgilhuly/go_pillar_eval/pkg/provider"
	"github.com/jdgilhuly/go_pillar_eval/pkg/record"
	"github.com/jdgilhuly/go_pillar_eval/pkg/retry"
	"github.com/jdgilhuly/go_pillar_eval/pkg/verdict"
	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

// Option configures a Harness.
type Option func(*Harness)

// WithConfig sets the evaluation config on the harness.
func WithConfig(c *config.Config) Option {
	return func(h *Harness) {
		h.config = c
	}
}

// WithProfile selects the profile every case is evaluated under. Defaults
// to the built-in default profile.
func WithProfile(name string) Option {
	return func(h *Harness) {
		h.profile = name
	}
}

// WithProfiles sets the registry profiles are resolved from.
func WithProfiles(r *profile.Registry) Option {
	return func(h *Harness) {
		h.profiles = r
	}
}

// WithJudgeProvider routes the performance worker through an LLM judge
// backed by p instead of the scripted judge.
func WithJudgeProvider(p provider.Provider) Option {
	return func(h *Harness) {
		h.judgeProvider = p
	}
}

// WithFallback sets the simulated metric reported when the judge is
// unavailable. Defaults to 0.5.
func WithFallback(f float64) Option {
	return func(h *Harness) {
		h.fallback = f
	}
}

// WithResultFile configures the harness to write case results to a JSON
// file when all cases are complete.
func WithResultFile(path string) Option {
	return func(h *Harness) {
		h.resultFile = path
	}
}

// CaseResult captures the outcome of a single evaluation case.
type CaseResult struct {
	Name           string           `json:"name"`
	RunID          string           `json:"run_id,omitempty"`
	Decision       verdict.Decision `json:"decision,omitempty"`
	CompositeScore float64          `json:"composite_score"`
	Grade          string           `json:"grade,omitempty"`
	Status         record.Status    `json:"status,omitempty"`
	Duration       time.Duration    `json:"duration"`
	Error          string           `json:"error,omitempty"`
}

// Harness provides the scaffolding for running evaluation cases as standard
// Go tests.
type Harness struct {
	t             *testing.T
	config        *config.Config
	profiles      *profile.Registry
	profile       string
	judgeProvider provider.Provider
	fallback      float64
	resultFile    string

	mu      sync.Mutex
	results []CaseResult
}

// New creates a Harness bound to the given *testing.T.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	h := &Harness{
		t:        t,
		config:   config.Default(),
		profiles: profile.NewRegistry(),
		profile:  profile.NameDefault,
		fallback: 0.5,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.resultFile != "" {
		t.Cleanup(func() {
			h.writeResults()
		})
	}
	return h
}

// Run executes a named evaluation case as a subtest.
func (h *Harness) Run(name string, fn func(tc *TestCase)) {
	h.t.Helper()
	h.t.Run(name, func(t *testing.T) {
		t.Helper()
		tc := &TestCase{
			t:       t,
			harness: h,
			name:    name,
			files:   []string{"README.md", "main.go", "main_test.go"},
		}
		fn(tc)
	})
}

// Results returns the recorded case results.
func (h *Harness) Results() []CaseResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CaseResult, len(h.results))
	copy(out, h.results)
	return out
}

func (h *Harness) writeResults() {
	data, err := json.MarshalIndent(h.Results(), "", "  ")
	if err != nil {
		h.t.Errorf("evaltest: failed to marshal results: %v", err)
		return
	}
	if err := os.WriteFile(h.resultFile, data, 0o644); err != nil {
		h.t.Errorf("evaltest: failed to write results to %s: %v", h.resultFile, err)
	}
}

// TestCase scripts the collaborators of one evaluation and asserts on its
// record.
type TestCase struct {
	t        *testing.T
	harness  *Harness
	name     string
	files    []string
	script   mock.Config
	registry *mock.Registry
	judge    *judge.LLMJudge
	record   *record.Record
}

// Files replaces the repository file list handed to the workers.
func (tc *TestCase) Files(paths ...string) {
	tc.files = paths
}

// MockSecrets makes the secret scanner report found on every call.
func (tc *TestCase) MockSecrets(found ...worker.SecretFinding) {
	tc.script.Secrets.DefaultResponse = &mock.Response[[]worker.SecretFinding]{Value: found}
}

// MockStructure makes the structure analyzer return s on every call.
func (tc *TestCase) MockStructure(s worker.Structure) {
	tc.script.Structure.DefaultResponse = &mock.Response[worker.Structure]{Value: s}
}

// MockDocs makes the documentation reviewer return d on every call.
func (tc *TestCase) MockDocs(d worker.DocStats) {
	tc.script.Docs.DefaultResponse = &mock.Response[worker.DocStats]{Value: d}
}

// MockJudge makes the external judge return m on every call.
func (tc *TestCase) MockJudge(m worker.JudgeMetrics) {
	tc.script.Judge.DefaultResponse = &mock.Response[worker.JudgeMetrics]{Value: m}
}

// MockJudgeUnavailable makes the external judge unreachable.
func (tc *TestCase) MockJudgeUnavailable(reason string) {
	tc.script.Judge.DefaultResponse = &mock.Response[worker.JudgeMetrics]{Error: reason, Unavailable: true}
}

// MockToolError makes a collaborator fail permanently with errMsg.
func (tc *TestCase) MockToolError(tool, errMsg string) {
	tc.t.Helper()
	switch tool {
	case mock.ToolSecretScan:
		tc.script.Secrets.DefaultResponse = &mock.Response[[]worker.SecretFinding]{Error: errMsg}
	case mock.ToolStructureAnalyze:
		tc.script.Structure.DefaultResponse = &mock.Response[worker.Structure]{Error: errMsg}
	case mock.ToolDocReview:
		tc.script.Docs.DefaultResponse = &mock.Response[worker.DocStats]{Error: errMsg}
	case mock.ToolJudge:
		tc.script.Judge.DefaultResponse = &mock.Response[worker.JudgeMetrics]{Error: errMsg}
	default:
		tc.t.Fatalf("unknown tool %q", tool)
	}
}

// MockFlaky makes the first failures calls of a collaborator fail with a
// transient error before its scripted response is returned.
func (tc *TestCase) MockFlaky(tool string, failures int) {
	tc.t.Helper()
	switch tool {
	case mock.ToolSecretScan:
		flaky(&tc.script.Secrets, failures)
	case mock.ToolStructureAnalyze:
		flaky(&tc.script.Structure, failures)
	case mock.ToolDocReview:
		flaky(&tc.script.Docs, failures)
	case mock.ToolJudge:
		flaky(&tc.script.Judge, failures)
	default:
		tc.t.Fatalf("unknown tool %q", tool)
	}
}

func flaky[T any](s *mock.Script[T], n int) {
	pre := make([]mock.Response[T], n)
	for i := range pre {
		pre[i] = mock.Response[T]{Error: "transient failure", Transient: true}
	}
	s.Responses = append(pre, s.Responses...)
}

// Script replaces the whole collaborator script.
func (tc *TestCase) Script(cfg mock.Config) {
	tc.script = cfg
}

// Evaluate runs the four built-in workers against the scripted
// collaborators and returns the run record. Configuration errors fail the
// test immediately.
func (tc *TestCase) Evaluate() *record.Record {
	tc.t.Helper()
	h := tc.harness

	tc.registry = mock.NewRegistry(tc.script)
	collabs := tc.registry.Collaborators()
	if h.judgeProvider != nil {
		tc.judge = judge.New(h.judgeProvider, h.config.Judge.Model, nil)
		collabs.Judge = tc.judge
	}
	opts := worker.Options{
		Retry:    retry.Policy{MaxRetries: h.config.Retry.MaxRetries, BaseDelay: time.Millisecond},
		Fallback: h.fallback,
	}

	d := dispatch.New(h.config, h.profiles, worker.Builtins(collabs, opts))
	repo := worker.RepoContext{Ref: "evaltest://" + tc.name, Files: tc.files}

	start := time.Now()
	rec, err := d.Run(context.Background(), repo, h.profile)
	res := CaseResult{Name: tc.name, Duration: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
		tc.recordResult(res)
		tc.t.Fatalf("evaluation failed: %v", err)
		return nil
	}
	res.RunID = rec.RunID
	res.Decision = rec.Verdict.Decision
	res.CompositeScore = rec.Summary.OverallScore
	res.Grade = rec.Summary.Grade
	res.Status = rec.Status
	tc.recordResult(res)

	tc.record = rec
	return rec
}

func (tc *TestCase) recordResult(res CaseResult) {
	h := tc.harness
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, res)
}

// Record returns the run record produced by Evaluate.
func (tc *TestCase) Record() *record.Record {
	tc.t.Helper()
	if tc.record == nil {
		tc.t.Error("Record() called before Evaluate()")
	}
	return tc.record
}

// Calls returns every collaborator invocation made during Evaluate.
func (tc *TestCase) Calls() []mock.CallRecord {
	if tc.registry == nil {
		return nil
	}
	return tc.registry.GetCalls()
}

// JudgeUsage returns the tokens consumed by the LLM judge, if one was
// configured with WithJudgeProvider.
func (tc *TestCase) JudgeUsage() provider.Usage {
	if tc.judge == nil {
		return provider.Usage{}
	}
	return tc.judge.Usage()
}
