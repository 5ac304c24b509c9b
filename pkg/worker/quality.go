package worker

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/retry"
)

const (
	targetTestRatio  = 0.3
	targetLanguages  = 2
	targetFileCount  = 100
	penaltyPerSecret = 5
)

// Quality scores the fidelity pillar from repository structure. It loses
// points for every security finding reported before it freezes.
type Quality struct {
	analyzer StructureAnalyzer
	opts     Options
}

// NewQuality creates the quality worker.
func NewQuality(analyzer StructureAnalyzer, opts Options) *Quality {
	return &Quality{analyzer: analyzer, opts: opts}
}

func (w *Quality) Name() string          { return "quality" }
func (w *Quality) Pillar() pillar.Pillar { return pillar.Fidelity }

func (w *Quality) Plan(repo RepoContext) TaskPlan {
	return TaskPlan{Inputs: repo.Files, DependsOn: []pillar.Pillar{pillar.Security}}
}

func (w *Quality) Execute(ctx context.Context, repo RepoContext) (Outcome, error) {
	if w.analyzer == nil {
		return Outcome{}, &evalerr.ProviderUnavailableError{Provider: "structure_analyze"}
	}
	st, err := retry.Value(ctx, w.opts.Retry, func(ctx context.Context) (Structure, error) {
		return w.analyzer.StructureAnalyze(ctx, repo.Files)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("structure analysis: %w", err)
	}

	langs := len(st.Languages)
	score := 50*math.Min(st.TestRatio/targetTestRatio, 1) +
		30*float64(min(langs, targetLanguages))/targetLanguages +
		20*math.Min(float64(st.FileCount)/targetFileCount, 1)

	var findings []pillar.Finding
	if st.TestRatio < targetTestRatio {
		findings = append(findings, pillar.Finding{
			Kind:     "tests",
			Detail:   fmt.Sprintf("test ratio %.2f below %.2f", st.TestRatio, targetTestRatio),
			Severity: "medium",
		})
	}
	if st.FileCount == 0 {
		findings = append(findings, pillar.Finding{Kind: "structure", Detail: "no files", Severity: "high"})
	}
	if findings == nil {
		findings = []pillar.Finding{}
	}

	return Outcome{
		Score:      pillar.Round2(score),
		Confidence: 0.8,
		Summary: fmt.Sprintf("%d files, %d language(s) [%s], test ratio %.2f",
			st.FileCount, langs, strings.Join(st.Languages, ", "), st.TestRatio),
		Findings: findings,
	}, nil
}

// Receive charges five points per reported security finding, one
// adjustment per message.
func (w *Quality) Receive(_ pillar.WorkerResult, msgs []collab.Message) []pillar.Adjustment {
	var out []pillar.Adjustment
	for _, m := range msgs {
		if m.Inert || m.Payload.Kind != collab.KindSecurityFindings || m.Payload.FindingCount <= 0 {
			continue
		}
		out = append(out, pillar.Adjustment{
			Seq:     m.Seq,
			From:    m.From,
			Penalty: float64(penaltyPerSecret * m.Payload.FindingCount),
			Reason:  fmt.Sprintf("%d security finding(s)", m.Payload.FindingCount),
		})
	}
	return out
}
