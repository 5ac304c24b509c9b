// Package verdict applies per-pillar thresholds and veto rules to pillar
// metrics and produces the final decision of a run.
package verdict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
	"github.com/jdgilhuly/go_pillar_eval/pkg/score"
)

// Decision is the overall outcome of a run.
type Decision string

const (
	DecisionPass Decision = "PASS"
	DecisionWarn Decision = "WARN"
	DecisionFail Decision = "FAIL"
)

// MaxDrivers is the number of ranked drivers kept on a verdict.
const MaxDrivers = 3

// PillarVerdict is the gating result for one pillar.
type PillarVerdict struct {
	Pillar    pillar.Pillar          `json:"pillar"`
	Metric    float64                `json:"metric"`
	Threshold float64                `json:"threshold"`
	Status    State                  `json:"status"`
	Veto      bool                   `json:"veto"`
	Degraded  bool                   `json:"degraded"`
	Policy    profile.DegradedPolicy `json:"degraded_policy"`
	Reason    string                 `json:"reason"`
}

// Driver is a pillar ranked by how much it moved the outcome.
type Driver struct {
	Pillar     pillar.Pillar `json:"pillar"`
	Status     State         `json:"status"`
	Veto       bool          `json:"veto"`
	PointsLost float64       `json:"points_lost"`
	Reason     string        `json:"reason"`
}

// CompositeVerdict is the single authoritative decision for a run.
type CompositeVerdict struct {
	Decision       Decision        `json:"decision"`
	Profile        string          `json:"profile"`
	CompositeScore float64         `json:"composite_score"`
	Grade          string          `json:"grade"`
	Pillars        []PillarVerdict `json:"pillars"`
	VetoedBy       []pillar.Pillar `json:"vetoed_by"`
	Reason         string          `json:"reason"`
	Drivers        []Driver        `json:"drivers"`
}

// Pillar returns the verdict for p, if the profile gates it.
func (v CompositeVerdict) Pillar(p pillar.Pillar) (PillarVerdict, bool) {
	for _, pv := range v.Pillars {
		if pv.Pillar == p {
			return pv, true
		}
	}
	return PillarVerdict{}, false
}

// Failed returns the failing pillars in canonical order.
func (v CompositeVerdict) Failed() []pillar.Pillar {
	var out []pillar.Pillar
	for _, pv := range v.Pillars {
		if pv.Status == StateFail {
			out = append(out, pv.Pillar)
		}
	}
	return out
}

// Synthesize gates every pillar of prof and derives the decision. It is a
// pure function of its inputs.
//
// A pillar without a metric is treated as degraded with value 0. A degraded
// metric fails its pillar unless the pillar's policy is "evaluate", in which
// case it is compared to the threshold like any other metric but stays
// flagged. Any failing veto pillar fails the run outright; otherwise any
// failing pillar makes it a warning.
func Synthesize(metrics []pillar.Metric, summary score.Summary, prof *profile.Profile) CompositeVerdict {
	byPillar := make(map[pillar.Pillar]pillar.Metric, len(metrics))
	for _, m := range metrics {
		if _, dup := byPillar[m.Pillar]; !dup {
			byPillar[m.Pillar] = m
		}
	}

	v := CompositeVerdict{
		Profile:        prof.Name,
		CompositeScore: summary.OverallScore,
		Grade:          summary.Grade,
		Pillars:        make([]PillarVerdict, 0, len(prof.Pillars)),
		VetoedBy:       []pillar.Pillar{},
	}

	var failed []pillar.Pillar
	for _, p := range prof.PillarNames() {
		rule := prof.Pillars[p]
		m, ok := byPillar[p]
		pv := gate(p, m, ok, rule)
		v.Pillars = append(v.Pillars, pv)

		if pv.Status != StateFail {
			continue
		}
		if pv.Veto {
			v.VetoedBy = append(v.VetoedBy, p)
		} else {
			failed = append(failed, p)
		}
	}

	switch {
	case len(v.VetoedBy) > 0:
		v.Decision = DecisionFail
		v.Reason = fmt.Sprintf("veto pillar(s) failed: %s", join(v.VetoedBy))
		if len(failed) > 0 {
			v.Reason += fmt.Sprintf("; also failed: %s", join(failed))
		}
	case len(failed) > 0:
		v.Decision = DecisionWarn
		v.Reason = fmt.Sprintf("non-veto pillar(s) failed: %s", join(failed))
	default:
		v.Decision = DecisionPass
		v.Reason = "all pillars passed"
	}

	v.Drivers = drivers(v.Pillars, summary)
	return v
}

func gate(p pillar.Pillar, m pillar.Metric, present bool, rule profile.Rule) PillarVerdict {
	pv := PillarVerdict{
		Pillar:    p,
		Threshold: rule.Threshold,
		Status:    StatePending,
		Veto:      rule.Veto,
		Policy:    rule.Policy(),
	}
	if !present {
		m = pillar.Metric{Pillar: p, Value: 0, Degraded: true}
	}
	pv.Metric = m.Value
	pv.Degraded = m.Degraded

	var next State
	switch {
	case m.Degraded && pv.Policy == profile.DegradedFail:
		next = StateFail
		if present {
			pv.Reason = "metric unavailable (degraded)"
		} else {
			pv.Reason = "metric unavailable (no result)"
		}
	case m.Value >= rule.Threshold:
		next = StatePass
		pv.Reason = fmt.Sprintf("%.2f >= %.2f", m.Value, rule.Threshold)
	default:
		next = StateFail
		pv.Reason = fmt.Sprintf("%.2f < %.2f", m.Value, rule.Threshold)
	}
	if m.Degraded && pv.Policy == profile.DegradedEvaluate {
		pv.Reason += " (degraded, simulated metric)"
	}

	// Pending always has a legal move to pass or fail.
	pv.Status, _ = Transition(pv.Status, next)
	return pv
}

func drivers(pvs []PillarVerdict, summary score.Summary) []Driver {
	out := make([]Driver, 0, len(pvs))
	for _, pv := range pvs {
		weight := 0.0
		s := pv.Metric * 100
		if c, ok := summary.Contribution(pv.Pillar); ok {
			weight = c.Weight
			s = c.Score
		}
		out = append(out, Driver{
			Pillar:     pv.Pillar,
			Status:     pv.Status,
			Veto:       pv.Veto,
			PointsLost: pillar.Round2(weight * (100 - s) / 100),
			Reason:     pv.Reason,
		})
	}

	group := func(d Driver) int {
		switch {
		case d.Status == StateFail && d.Veto:
			return 0
		case d.Status == StateFail:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := group(out[i]), group(out[j])
		if gi != gj {
			return gi < gj
		}
		if out[i].PointsLost != out[j].PointsLost {
			return out[i].PointsLost > out[j].PointsLost
		}
		return pillar.Less(out[i].Pillar, out[j].Pillar)
	})

	if len(out) > MaxDrivers {
		out = out[:MaxDrivers]
	}
	return out
}

func join(ps []pillar.Pillar) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
