package worker

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/retry"
)

const (
	targetSections   = 5
	targetWords      = 300
	securityGapCost  = 5
	findingNoSecDocs = "missing_security_section"
)

// Documentation scores the ethics pillar from README coverage. When the
// security worker reports findings and the docs say nothing about
// security, it takes a fixed penalty.
type Documentation struct {
	reviewer DocReviewer
	opts     Options
}

// NewDocumentation creates the documentation worker.
func NewDocumentation(reviewer DocReviewer, opts Options) *Documentation {
	return &Documentation{reviewer: reviewer, opts: opts}
}

func (w *Documentation) Name() string          { return "documentation" }
func (w *Documentation) Pillar() pillar.Pillar { return pillar.Ethics }

func (w *Documentation) Plan(repo RepoContext) TaskPlan {
	return TaskPlan{Inputs: ReadmeFiles(repo.Files), DependsOn: []pillar.Pillar{pillar.Security}}
}

func (w *Documentation) Execute(ctx context.Context, repo RepoContext) (Outcome, error) {
	readmes := ReadmeFiles(repo.Files)
	if len(readmes) == 0 {
		return Outcome{
			Score:      0,
			Confidence: 1,
			Summary:    "no README found",
			Findings: []pillar.Finding{
				{Kind: "readme", Detail: "repository has no README", Severity: "high"},
				{Kind: findingNoSecDocs, Detail: "no security documentation", Severity: "medium"},
			},
		}, nil
	}
	if w.reviewer == nil {
		return Outcome{}, &evalerr.ProviderUnavailableError{Provider: "doc_review"}
	}

	stats, err := retry.Value(ctx, w.opts.Retry, func(ctx context.Context) (DocStats, error) {
		return w.reviewer.DocReview(ctx, readmes)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("doc review: %w", err)
	}

	score := 50*math.Min(float64(stats.SectionCount)/targetSections, 1) +
		50*math.Min(float64(stats.WordCount)/targetWords, 1)

	findings := []pillar.Finding{}
	if stats.SectionCount < targetSections {
		findings = append(findings, pillar.Finding{
			Kind:     "sections",
			Detail:   fmt.Sprintf("%d of %d expected sections", stats.SectionCount, targetSections),
			Severity: "low",
		})
	}
	if stats.WordCount < targetWords {
		findings = append(findings, pillar.Finding{
			Kind:     "words",
			Detail:   fmt.Sprintf("%d of %d expected words", stats.WordCount, targetWords),
			Severity: "low",
		})
	}
	if !hasSecuritySection(stats.Sections) {
		findings = append(findings, pillar.Finding{
			Kind:     findingNoSecDocs,
			Detail:   "no security section in README",
			Severity: "medium",
		})
	}

	return Outcome{
		Score:      pillar.Round2(score),
		Confidence: 0.7,
		Summary:    fmt.Sprintf("%d README file(s), %d sections, %d words", len(readmes), stats.SectionCount, stats.WordCount),
		Findings:   findings,
	}, nil
}

// Receive applies a single penalty for all security findings reported,
// attributed to the first message that carried them.
func (w *Documentation) Receive(base pillar.WorkerResult, msgs []collab.Message) []pillar.Adjustment {
	if !hasFinding(base.Findings, findingNoSecDocs) {
		return nil
	}
	var first *collab.Message
	total := 0
	for i := range msgs {
		m := msgs[i]
		if m.Inert || m.Payload.Kind != collab.KindSecurityFindings || m.Payload.FindingCount <= 0 {
			continue
		}
		if first == nil {
			first = &msgs[i]
		}
		total += m.Payload.FindingCount
	}
	if first == nil {
		return nil
	}
	return []pillar.Adjustment{{
		Seq:     first.Seq,
		From:    first.From,
		Penalty: securityGapCost,
		Reason:  fmt.Sprintf("unaddressed security gap (%d security finding(s))", total),
	}}
}

// ReadmeFiles returns the files whose base name starts with "readme".
func ReadmeFiles(files []string) []string {
	var out []string
	for _, f := range files {
		if strings.HasPrefix(strings.ToLower(filepath.Base(f)), "readme") {
			out = append(out, f)
		}
	}
	return out
}

func hasSecuritySection(sections []string) bool {
	for _, s := range sections {
		if strings.Contains(strings.ToLower(s), "security") {
			return true
		}
	}
	return false
}

func hasFinding(fs []pillar.Finding, kind string) bool {
	for _, f := range fs {
		if f.Kind == kind {
			return true
		}
	}
	return false
}
