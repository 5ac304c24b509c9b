package evaltest

import (
	"fmt"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/record"
	"github.com/jdgilhuly/go_pillar_eval/pkg/verdict"
)

// evaluated reports whether Evaluate ran, failing the test otherwise.
func (tc *TestCase) evaluated(assertion string) bool {
	tc.t.Helper()
	if tc.record == nil {
		tc.t.Errorf("%s called before Evaluate()", assertion)
		return false
	}
	return true
}

func (tc *TestCase) result(assertion string, p pillar.Pillar) (pillar.WorkerResult, bool) {
	tc.t.Helper()
	if !tc.evaluated(assertion) {
		return pillar.WorkerResult{}, false
	}
	r, ok := tc.record.Result(p)
	if !ok {
		tc.t.Errorf("%s: no result for pillar %s", assertion, p)
	}
	return r, ok
}

// AssertDecision asserts the run decision.
func (tc *TestCase) AssertDecision(want verdict.Decision) {
	tc.t.Helper()
	if !tc.evaluated("AssertDecision") {
		return
	}
	if got := tc.record.Verdict.Decision; got != want {
		tc.t.Errorf("decision = %s, want %s\n  reason: %s", got, want, tc.record.Verdict.Reason)
	}
}

// AssertVetoedBy asserts exactly which veto pillars failed, in canonical
// order. Call with no arguments to assert no veto fired.
func (tc *TestCase) AssertVetoedBy(ps ...pillar.Pillar) {
	tc.t.Helper()
	if !tc.evaluated("AssertVetoedBy") {
		return
	}
	got := tc.record.Verdict.VetoedBy
	if fmt.Sprint(got) != fmt.Sprint(ps) && !(len(got) == 0 && len(ps) == 0) {
		tc.t.Errorf("vetoed by %v, want %v", got, ps)
	}
}

// AssertCompositeScore checks the composite score against matcher.
func (tc *TestCase) AssertCompositeScore(matcher ScoreMatcher) {
	tc.t.Helper()
	if !tc.evaluated("AssertCompositeScore") {
		return
	}
	if got := tc.record.Summary.OverallScore; !matcher.Match(got) {
		tc.t.Errorf("composite score %.2f does not satisfy %s", got, matcher)
	}
}

// AssertGrade asserts the composite grade band.
func (tc *TestCase) AssertGrade(want string) {
	tc.t.Helper()
	if !tc.evaluated("AssertGrade") {
		return
	}
	if got := tc.record.Summary.Grade; got != want {
		tc.t.Errorf("grade = %q, want %q (score %.2f)", got, want, tc.record.Summary.OverallScore)
	}
}

// AssertPillarScore checks the final score of a pillar against matcher.
func (tc *TestCase) AssertPillarScore(p pillar.Pillar, matcher ScoreMatcher) {
	tc.t.Helper()
	r, ok := tc.result("AssertPillarScore", p)
	if !ok {
		return
	}
	if !matcher.Match(r.Score) {
		tc.t.Errorf("%s score %.2f does not satisfy %s (%s)", p, r.Score, matcher, r.Summary)
	}
}

// AssertPillarGate asserts the gate state of a pillar.
func (tc *TestCase) AssertPillarGate(p pillar.Pillar, want verdict.State) {
	tc.t.Helper()
	if !tc.evaluated("AssertPillarGate") {
		return
	}
	pv, ok := tc.record.Verdict.Pillar(p)
	if !ok {
		tc.t.Errorf("pillar %s is not gated by profile %s", p, tc.record.Profile)
		return
	}
	if pv.Status != want {
		tc.t.Errorf("%s gate = %s, want %s (%s)", p, pv.Status, want, pv.Reason)
	}
}

// AssertWorkerStatus asserts how a pillar's worker finished.
func (tc *TestCase) AssertWorkerStatus(p pillar.Pillar, want pillar.Status) {
	tc.t.Helper()
	r, ok := tc.result("AssertWorkerStatus", p)
	if !ok {
		return
	}
	if r.Status != want {
		tc.t.Errorf("%s worker status = %s, want %s (error: %s)", p, r.Status, want, r.Error)
	}
}

// AssertDegraded asserts that a pillar's result is marked degraded.
func (tc *TestCase) AssertDegraded(p pillar.Pillar) {
	tc.t.Helper()
	r, ok := tc.result("AssertDegraded", p)
	if ok && !r.Degraded {
		tc.t.Errorf("%s result is not degraded", p)
	}
}

// AssertAdjusted asserts that at least one collaboration adjustment was
// applied to a pillar.
func (tc *TestCase) AssertAdjusted(p pillar.Pillar) {
	tc.t.Helper()
	r, ok := tc.result("AssertAdjusted", p)
	if ok && len(r.Adjustments) == 0 {
		tc.t.Errorf("%s was not adjusted (score %.2f)", p, r.Score)
	}
}

// AssertNotAdjusted asserts that a pillar kept its base score.
func (tc *TestCase) AssertNotAdjusted(p pillar.Pillar) {
	tc.t.Helper()
	r, ok := tc.result("AssertNotAdjusted", p)
	if !ok || len(r.Adjustments) == 0 {
		return
	}
	reasons := make([]string, len(r.Adjustments))
	for i, a := range r.Adjustments {
		reasons[i] = a.Reason
	}
	tc.t.Errorf("%s was adjusted: %s", p, strings.Join(reasons, "; "))
}

// AssertRunStatus asserts the completion status of the run.
func (tc *TestCase) AssertRunStatus(want record.Status) {
	tc.t.Helper()
	if !tc.evaluated("AssertRunStatus") {
		return
	}
	if got := tc.record.Status; got != want {
		tc.t.Errorf("run status = %s, want %s", got, want)
	}
}

// AssertInertMessages asserts how many collaboration messages arrived too
// late to affect their recipient.
func (tc *TestCase) AssertInertMessages(want int) {
	tc.t.Helper()
	if !tc.evaluated("AssertInertMessages") {
		return
	}
	got := 0
	for _, m := range tc.record.Messages {
		if m.Inert {
			got++
		}
	}
	if got != want {
		tc.t.Errorf("inert messages = %d, want %d", got, want)
	}
}

// AssertToolCalled asserts that a collaborator was invoked at least once.
func (tc *TestCase) AssertToolCalled(tool string) {
	tc.t.Helper()
	if tc.registry == nil {
		tc.t.Error("AssertToolCalled called before Evaluate()")
		return
	}
	if len(tc.registry.GetCallsForTool(tool)) == 0 {
		tc.t.Errorf("tool %q was not called", tool)
	}
}

// AssertToolNotCalled asserts that a collaborator was never invoked.
func (tc *TestCase) AssertToolNotCalled(tool string) {
	tc.t.Helper()
	if tc.registry == nil {
		tc.t.Error("AssertToolNotCalled called before Evaluate()")
		return
	}
	if n := len(tc.registry.GetCallsForTool(tool)); n > 0 {
		tc.t.Errorf("tool %q was called %d time(s) but should not have been", tool, n)
	}
}

// AssertToolCalledTimes asserts the exact number of invocations of a
// collaborator, retries included.
func (tc *TestCase) AssertToolCalledTimes(tool string, want int) {
	tc.t.Helper()
	if tc.registry == nil {
		tc.t.Error("AssertToolCalledTimes called before Evaluate()")
		return
	}
	if got := len(tc.registry.GetCallsForTool(tool)); got != want {
		tc.t.Errorf("tool %q called %d time(s), want %d", tool, got, want)
	}
}
