package worker

import (
	"context"
	"fmt"
	"math"

	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/retry"
)

const pointsPerSecret = 20

// Security scores the security pillar from secret-like patterns and tells
// the fidelity and ethics workers how many it found.
type Security struct {
	scanner SecretScanner
	opts    Options
}

// NewSecurity creates the security worker.
func NewSecurity(scanner SecretScanner, opts Options) *Security {
	return &Security{scanner: scanner, opts: opts}
}

func (w *Security) Name() string          { return "security" }
func (w *Security) Pillar() pillar.Pillar { return pillar.Security }

func (w *Security) Plan(repo RepoContext) TaskPlan {
	return TaskPlan{Inputs: repo.Files}
}

func (w *Security) Execute(ctx context.Context, repo RepoContext) (Outcome, error) {
	if w.scanner == nil {
		return Outcome{}, &evalerr.ProviderUnavailableError{Provider: "secret_scan"}
	}
	found, err := retry.Value(ctx, w.opts.Retry, func(ctx context.Context) ([]SecretFinding, error) {
		return w.scanner.SecretScan(ctx, repo.Files)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("secret scan: %w", err)
	}

	n := len(found)
	out := Outcome{
		Score:      pillar.Round2(math.Max(0, 100-pointsPerSecret*float64(n))),
		Confidence: 0.9,
		Summary:    fmt.Sprintf("scanned %d files, %d secret-like pattern(s)", len(repo.Files), n),
		Findings:   make([]pillar.Finding, 0, n),
	}
	for _, f := range found {
		out.Findings = append(out.Findings, pillar.Finding{
			Kind:     "secret",
			File:     f.File,
			Detail:   fmt.Sprintf("%s: %s", f.Pattern, f.Snippet),
			Severity: "high",
		})
	}
	if n > 0 {
		payload := collab.Payload{
			Kind:         collab.KindSecurityFindings,
			FindingCount: n,
			RiskLevel:    riskLevel(n),
		}
		out.Signals = []Signal{
			{To: pillar.Fidelity, Payload: payload},
			{To: pillar.Ethics, Payload: payload},
		}
	}
	return out, nil
}

// Receive is a no-op: security does not consume peer findings.
func (w *Security) Receive(pillar.WorkerResult, []collab.Message) []pillar.Adjustment {
	return nil
}

func riskLevel(n int) string {
	switch {
	case n >= 5:
		return "critical"
	case n >= 3:
		return "high"
	case n > 0:
		return "medium"
	default:
		return "none"
	}
}
