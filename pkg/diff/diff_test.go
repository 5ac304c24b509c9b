package diff

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
	"github.com/jdgilhuly/go_pillar_eval/pkg/record"
	"github.com/jdgilhuly/go_pillar_eval/pkg/verdict"
)

func done(p pillar.Pillar, score float64) pillar.WorkerResult {
	return pillar.WorkerResult{
		Worker: string(p), Pillar: p, Version: 1, BaseScore: score, Score: score,
		Status: pillar.StatusDone, Findings: []pillar.Finding{},
	}
}

func newRecord(t *testing.T, id string, results ...pillar.WorkerResult) *record.Record {
	t.Helper()
	prof, err := profile.NewRegistry().Resolve(profile.NameDefault)
	if err != nil {
		t.Fatal(err)
	}
	sum, v, err := record.Evaluate(results, prof)
	if err != nil {
		t.Fatal(err)
	}
	return &record.Record{RunID: id, Profile: prof.Name, Summary: sum, Verdict: v, Results: results}
}

func runA(t *testing.T) *record.Record {
	return newRecord(t, "run-a",
		done(pillar.Security, 80),
		done(pillar.Fidelity, 50),
		done(pillar.Ethics, 90),
		done(pillar.Performance, 75),
	)
}

func runB(t *testing.T) *record.Record {
	return newRecord(t, "run-b",
		done(pillar.Security, 80),
		done(pillar.Fidelity, 90),
		done(pillar.Ethics, 40),
	)
}

func TestCompare(t *testing.T) {
	dr := Compare(runA(t), runB(t), 0.0)

	if dr.RunA != "run-a" || dr.RunB != "run-b" {
		t.Errorf("RunA=%q RunB=%q", dr.RunA, dr.RunB)
	}
	if len(dr.Pillars) != 4 {
		t.Fatalf("len(Pillars) = %d, want 4", len(dr.Pillars))
	}

	want := []struct {
		p   pillar.Pillar
		cat Category
	}{
		{pillar.Security, Unchanged},
		{pillar.Fidelity, Improved},
		{pillar.Ethics, Regressed},
		{pillar.Performance, Removed},
	}
	for i, w := range want {
		if dr.Pillars[i].Pillar != w.p || dr.Pillars[i].Category != w.cat {
			t.Errorf("Pillars[%d] = %s %s, want %s %s", i, dr.Pillars[i].Pillar, dr.Pillars[i].Category, w.p, w.cat)
		}
	}

	if dr.Pillars[1].ScoreDelta != 40 || dr.Pillars[2].ScoreDelta != -50 {
		t.Errorf("deltas = %v, %v", dr.Pillars[1].ScoreDelta, dr.Pillars[2].ScoreDelta)
	}
	if dr.Pillars[2].StatusA != "pass" || dr.Pillars[2].StatusB != "fail" {
		t.Errorf("ethics gate = %s -> %s", dr.Pillars[2].StatusA, dr.Pillars[2].StatusB)
	}
	if dr.Summary != (Summary{Improved: 1, Regressed: 1, Unchanged: 1, Removed: 1}) {
		t.Errorf("Summary = %+v", dr.Summary)
	}

	if dr.DecisionA != verdict.DecisionWarn || dr.DecisionB != verdict.DecisionWarn || dr.DecisionChanged {
		t.Errorf("decisions = %s -> %s changed=%v", dr.DecisionA, dr.DecisionB, dr.DecisionChanged)
	}
}

func TestCompare_NewPillarAndDecisionChange(t *testing.T) {
	a := newRecord(t, "a", done(pillar.Security, 30), done(pillar.Fidelity, 90))
	b := newRecord(t, "b", done(pillar.Security, 90), done(pillar.Fidelity, 90),
		done(pillar.Ethics, 90), done(pillar.Performance, 90))

	dr := Compare(a, b, 0)
	if !dr.DecisionChanged || dr.DecisionA != verdict.DecisionFail || dr.DecisionB != verdict.DecisionPass {
		t.Errorf("decision = %s -> %s changed=%v", dr.DecisionA, dr.DecisionB, dr.DecisionChanged)
	}
	if dr.Summary.New != 2 || dr.Summary.Improved != 1 {
		t.Errorf("Summary = %+v", dr.Summary)
	}
	if dr.CompositeDelta != 30 {
		t.Errorf("CompositeDelta = %v, want 30", dr.CompositeDelta)
	}
}

func TestCompare_Threshold(t *testing.T) {
	a := newRecord(t, "a", done(pillar.Security, 80))
	b := newRecord(t, "b", done(pillar.Security, 84))

	if got := Compare(a, b, 5).Pillars[0].Category; got != Unchanged {
		t.Errorf("delta 4 with threshold 5 = %s, want unchanged", got)
	}
	if got := Compare(a, b, 2).Pillars[0].Category; got != Improved {
		t.Errorf("delta 4 with threshold 2 = %s, want improved", got)
	}
}

func TestFilter(t *testing.T) {
	dr := Compare(runA(t), runB(t), 0)

	filtered := dr.Filter([]Category{Regressed, Removed})
	if len(filtered.Pillars) != 2 {
		t.Fatalf("filtered = %d pillars, want 2", len(filtered.Pillars))
	}
	if filtered.Summary != dr.Summary || filtered.DecisionA != dr.DecisionA {
		t.Error("filter should keep summary and decisions")
	}
	if len(dr.Pillars) != 4 {
		t.Error("filter mutated the original")
	}
	if dr.Filter(nil) != dr {
		t.Error("Filter(nil) should return the receiver")
	}
}

func TestJSON(t *testing.T) {
	data, err := Compare(runA(t), runB(t), 0).JSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"run_a", "decision_changed", "composite_delta", "pillars", "regressed"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	Compare(runA(t), runB(t), 0).PrintTable(&buf)
	output := buf.String()

	for _, want := range []string{
		"run-a -> run-b",
		"decision: WARN -> WARN (unchanged)",
		"PILLAR", "CHANGE",
		"fidelity", "+40.00",
		"ethics", "-50.00", "pass -> fail",
		"removed", "pass -> -",
		"1 improved", "1 regressed", "1 unchanged", "0 new", "1 removed",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
}
