package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/retry"
)

// promptFileSample caps how many file names go into the judge prompt.
const promptFileSample = 40

// Performance scores the performance pillar with an external judge. When
// the judge is unavailable the result is degraded and carries the
// configured fallback metric with zero confidence.
type Performance struct {
	judge ExternalJudge
	opts  Options
}

// NewPerformance creates the performance worker. judge may be nil.
func NewPerformance(judge ExternalJudge, opts Options) *Performance {
	return &Performance{judge: judge, opts: opts}
}

func (w *Performance) Name() string          { return "performance" }
func (w *Performance) Pillar() pillar.Pillar { return pillar.Performance }

func (w *Performance) Plan(repo RepoContext) TaskPlan {
	return TaskPlan{Inputs: []string{repo.Ref}}
}

func (w *Performance) Execute(ctx context.Context, repo RepoContext) (Outcome, error) {
	if w.judge == nil {
		return w.degraded(errors.New("no judge configured")), nil
	}

	metrics, err := retry.Value(ctx, w.opts.Retry, func(ctx context.Context) (JudgeMetrics, error) {
		return w.judge.Judge(ctx, JudgePrompt(repo))
	})
	if evalerr.IsProviderUnavailable(err) {
		return w.degraded(err), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("external judge: %w", err)
	}

	var (
		value  float64
		metric string
	)
	switch {
	case metrics.RefusalAccuracy != nil:
		value, metric = *metrics.RefusalAccuracy, "refusal_accuracy"
	case metrics.Faithfulness != nil:
		value, metric = *metrics.Faithfulness, "faithfulness"
	default:
		return w.degraded(errors.New("judge returned no metric")), nil
	}

	return Outcome{
		Score:      pillar.Round2(pillar.Clamp(value * 100)),
		Confidence: 0.8,
		Summary:    fmt.Sprintf("judge %s %.2f", metric, value),
		Findings:   []pillar.Finding{},
	}, nil
}

func (w *Performance) Receive(pillar.WorkerResult, []collab.Message) []pillar.Adjustment {
	return nil
}

func (w *Performance) degraded(cause error) Outcome {
	return Outcome{
		Score:      pillar.Round2(pillar.Clamp(w.opts.Fallback * 100)),
		Confidence: 0,
		Summary:    fmt.Sprintf("simulated metric %.2f: judge unavailable", w.opts.Fallback),
		Findings: []pillar.Finding{{
			Kind:     "judge_unavailable",
			Detail:   cause.Error(),
			Severity: "medium",
		}},
		Degraded: true,
	}
}

// JudgePrompt describes the repository to the external judge.
func JudgePrompt(repo RepoContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repo.Ref)
	fmt.Fprintf(&b, "Files (%d):\n", len(repo.Files))
	for i, f := range repo.Files {
		if i == promptFileSample {
			fmt.Fprintf(&b, "... and %d more\n", len(repo.Files)-promptFileSample)
			break
		}
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}
