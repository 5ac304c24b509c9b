package diff

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/record"
	"github.com/jdgilhuly/go_pillar_eval/pkg/verdict"
)

// Category classifies a pillar comparison.
type Category string

const (
	Improved  Category = "improved"
	Regressed Category = "regressed"
	Unchanged Category = "unchanged"
	New       Category = "new"
	Removed   Category = "removed"
)

// PillarDiff represents the comparison of a single pillar between two runs.
type PillarDiff struct {
	Pillar     pillar.Pillar `json:"pillar"`
	Category   Category      `json:"category"`
	ScoreA     float64       `json:"score_a"`
	ScoreB     float64       `json:"score_b"`
	ScoreDelta float64       `json:"score_delta"`
	StatusA    string        `json:"status_a"`
	StatusB    string        `json:"status_b"`
}

// DiffResult holds the full comparison between two runs.
type DiffResult struct {
	RunA            string           `json:"run_a"`
	RunB            string           `json:"run_b"`
	DecisionA       verdict.Decision `json:"decision_a"`
	DecisionB       verdict.Decision `json:"decision_b"`
	DecisionChanged bool             `json:"decision_changed"`
	CompositeA      float64          `json:"composite_a"`
	CompositeB      float64          `json:"composite_b"`
	CompositeDelta  float64          `json:"composite_delta"`
	Pillars         []PillarDiff     `json:"pillars"`
	Summary
}

// Summary holds counts by category.
type Summary struct {
	Improved  int `json:"improved"`
	Regressed int `json:"regressed"`
	Unchanged int `json:"unchanged"`
	New       int `json:"new"`
	Removed   int `json:"removed"`
}

// Compare produces a diff between two run records. Pillars are matched by
// name and listed in canonical order. A threshold controls the minimum
// absolute score delta to classify a pillar as improved or regressed
// (below threshold = unchanged).
func Compare(a, b *record.Record, threshold float64) *DiffResult {
	dr := &DiffResult{
		RunA:            a.RunID,
		RunB:            b.RunID,
		DecisionA:       a.Verdict.Decision,
		DecisionB:       b.Verdict.Decision,
		DecisionChanged: a.Verdict.Decision != b.Verdict.Decision,
		CompositeA:      a.Summary.OverallScore,
		CompositeB:      b.Summary.OverallScore,
		CompositeDelta:  pillar.Round2(b.Summary.OverallScore - a.Summary.OverallScore),
		Pillars:         []PillarDiff{},
	}

	for _, p := range pillar.All() {
		ra, inA := a.Result(p)
		rb, inB := b.Result(p)
		if !inA && !inB {
			continue
		}

		pd := PillarDiff{Pillar: p}
		switch {
		case !inA:
			pd.Category = New
			pd.ScoreB, pd.StatusB = rb.Score, status(b, rb)
			dr.Summary.New++
		case !inB:
			pd.Category = Removed
			pd.ScoreA, pd.StatusA = ra.Score, status(a, ra)
			dr.Summary.Removed++
		default:
			pd.ScoreA, pd.StatusA = ra.Score, status(a, ra)
			pd.ScoreB, pd.StatusB = rb.Score, status(b, rb)
			pd.ScoreDelta = pillar.Round2(rb.Score - ra.Score)

			if math.Abs(pd.ScoreDelta) <= threshold {
				pd.Category = Unchanged
				dr.Summary.Unchanged++
			} else if pd.ScoreDelta > 0 {
				pd.Category = Improved
				dr.Summary.Improved++
			} else {
				pd.Category = Regressed
				dr.Summary.Regressed++
			}
		}
		dr.Pillars = append(dr.Pillars, pd)
	}

	return dr
}

// Filter returns a new DiffResult with only pillars matching the given
// categories. Pass nil to include all.
func (dr *DiffResult) Filter(categories []Category) *DiffResult {
	if len(categories) == 0 {
		return dr
	}

	catSet := make(map[Category]bool, len(categories))
	for _, c := range categories {
		catSet[c] = true
	}

	filtered := *dr
	filtered.Pillars = []PillarDiff{}
	for _, pd := range dr.Pillars {
		if catSet[pd.Category] {
			filtered.Pillars = append(filtered.Pillars, pd)
		}
	}
	return &filtered
}

// JSON serializes the diff result.
func (dr *DiffResult) JSON() ([]byte, error) {
	return json.MarshalIndent(dr, "", "  ")
}

// PrintTable writes a formatted diff table.
func (dr *DiffResult) PrintTable(w io.Writer) {
	sep := strings.Repeat("-", 82)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %s -> %s\n", dr.RunA, dr.RunB)
	change := "unchanged"
	if dr.DecisionChanged {
		change = "changed"
	}
	fmt.Fprintf(w, "  decision: %s -> %s (%s)  composite: %.2f -> %.2f (%+.2f)\n",
		dr.DecisionA, dr.DecisionB, change, dr.CompositeA, dr.CompositeB, dr.CompositeDelta)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %-12s  %-10s  %8s  %8s  %8s  %s\n", "PILLAR", "CHANGE", "SCORE A", "SCORE B", "DELTA", "GATE")
	fmt.Fprintf(w, "%s\n", sep)

	for _, pd := range dr.Pillars {
		var delta string
		switch pd.Category {
		case New:
			delta = "new"
		case Removed:
			delta = "removed"
		default:
			delta = fmt.Sprintf("%+.2f", pd.ScoreDelta)
		}

		fmt.Fprintf(w, "  %-12s  %-10s  %8.2f  %8.2f  %8s  %s -> %s\n",
			pd.Pillar, string(pd.Category), pd.ScoreA, pd.ScoreB, delta, dash(pd.StatusA), dash(pd.StatusB))
	}

	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %d improved  %d regressed  %d unchanged  %d new  %d removed\n",
		dr.Summary.Improved, dr.Summary.Regressed, dr.Summary.Unchanged,
		dr.Summary.New, dr.Summary.Removed)
	fmt.Fprintf(w, "%s\n", sep)
}

// status is the pillar's gate state when the profile gated it, otherwise
// the worker status.
func status(rec *record.Record, r pillar.WorkerResult) string {
	if pv, ok := rec.Verdict.Pillar(r.Pillar); ok {
		return strings.ToLower(string(pv.Status))
	}
	return string(r.Status)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
