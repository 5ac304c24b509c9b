package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jdgilhuly/go_pillar_eval/pkg/audit"
	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
	"github.com/jdgilhuly/go_pillar_eval/pkg/record"
	"github.com/jdgilhuly/go_pillar_eval/pkg/verdict"
)

func sampleRecord(t *testing.T) *record.Record {
	t.Helper()
	created := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	results := []pillar.WorkerResult{
		{
			Worker: "security", Pillar: pillar.Security, Version: 1, BaseScore: 60, Score: 60,
			Confidence: 0.9, Status: pillar.StatusDone, Summary: "2 secret(s) found",
			Findings: []pillar.Finding{{Kind: "aws_access_key", File: "config.py", Detail: "AKIA****", Severity: "high"}},
			Timing:   pillar.NewTiming(created, created.Add(150*time.Millisecond)),
		},
		{
			Worker: "quality", Pillar: pillar.Fidelity, Version: 2, BaseScore: 31.64, Score: 21.64,
			Confidence: 0.8, Status: pillar.StatusDone, Findings: []pillar.Finding{},
			Adjustments: []pillar.Adjustment{{Seq: 1, From: pillar.Security, Penalty: 10, Delta: -10, Reason: "2 security finding(s)"}},
		},
		pillar.Failed("performance", pillar.Performance, pillar.StatusTimedOut, nil, pillar.Timing{}),
	}
	prof, err := profile.NewRegistry().Resolve(profile.NameDefault)
	if err != nil {
		t.Fatal(err)
	}
	sum, v, err := record.Evaluate(results, prof)
	if err != nil {
		t.Fatal(err)
	}
	return &record.Record{
		RunID: "3f1c2a9e-run", Repo: "/src/app", Profile: prof.Name, Mode: "sequential",
		Order:     []pillar.Pillar{pillar.Security, pillar.Fidelity, pillar.Ethics, pillar.Performance},
		CreatedAt: created, Status: record.StatusPartial,
		Summary: sum, Verdict: v, Results: results,
		Messages: []collab.Message{
			{Seq: 1, From: pillar.Security, To: pillar.Fidelity, Payload: collab.Payload{Kind: collab.KindSecurityFindings, FindingCount: 2}},
			{Seq: 2, From: pillar.Security, To: pillar.Ethics, Payload: collab.Payload{Kind: collab.KindSecurityFindings, FindingCount: 2}, Inert: true, InertReason: "recipient already frozen"},
		},
		Audit: []audit.Entry{{Seq: 1, Kind: audit.KindDispatch, Worker: "security", Detail: "stage 0, 3 input(s)"}},
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name  string
		plain string
		color string
	}{
		{"pass", DecisionLabel(verdict.DecisionPass, false), DecisionLabel(verdict.DecisionPass, true)},
		{"warn", DecisionLabel(verdict.DecisionWarn, false), DecisionLabel(verdict.DecisionWarn, true)},
		{"fail state", StateLabel(verdict.StateFail, false), StateLabel(verdict.StateFail, true)},
		{"timed out", StatusLabel(pillar.StatusTimedOut, false), StatusLabel(pillar.StatusTimedOut, true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if strings.Contains(tt.plain, "\x1b[") {
				t.Errorf("plain label has escape codes: %q", tt.plain)
			}
			if !strings.Contains(tt.color, tt.plain) || !strings.Contains(tt.color, "\x1b[") {
				t.Errorf("colored label = %q, want %q wrapped in escape codes", tt.color, tt.plain)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500us"},
		{150 * time.Millisecond, "150ms"},
		{2500 * time.Millisecond, "2.5s"},
		{0, "0us"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatDuration(tt.d)
			if got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestPrintRecord_Plain(t *testing.T) {
	var buf bytes.Buffer
	PrintRecord(&buf, sampleRecord(t), false)
	output := buf.String()

	for _, want := range []string{
		"Run 3f1c2a9e-run", "repo:    /src/app", "status: partial",
		"security > fidelity > ethics > performance",
		"WARN", "profile default",
		"PILLAR", "GATE", "FLAGS",
		"security", "veto",
		"timed_out", "degraded",
		"ethics", "no result",
		"Drivers:", "1. ",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Error("plain output contains escape codes")
	}
}

func TestPrintVerbose(t *testing.T) {
	var buf bytes.Buffer
	PrintVerbose(&buf, sampleRecord(t), false)
	output := buf.String()

	for _, want := range []string{
		"Adjustments:",
		"fidelity v2 -10.00 from security (message #1): 2 security finding(s)",
		"Collaboration:",
		"#1 security -> fidelity security_findings(2)",
		"[inert: recipient already frozen]",
		"Worker Results",
		"Score:      21.64 (base 31.64, v2)",
		"[high] aws_access_key config.py: AKIA****",
		"Duration:   150ms",
		"--- Audit ---",
		"stage 0, 3 input(s)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Count(output, "[inert") != 1 {
		t.Error("only the late message should be marked inert")
	}
}

func TestPrintHistoryAndTrend(t *testing.T) {
	created := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	PrintHistory(&buf, []record.Entry{
		{RunID: "b", Repo: "/src/app", Profile: "default", Decision: "FAIL", Score: 40, Grade: "needs_attention", CreatedAt: created},
		{RunID: "a", Repo: "/src/app", Profile: "default", Decision: "PASS", Score: 90, Grade: "excellent", CreatedAt: created.Add(-time.Hour)},
	}, false)
	out := buf.String()
	if !strings.Contains(out, "needs_attention") || strings.Index(out, "FAIL") > strings.Index(out, "PASS") {
		t.Errorf("history output:\n%s", out)
	}

	buf.Reset()
	PrintHistory(&buf, nil, false)
	if !strings.Contains(buf.String(), "No runs recorded") {
		t.Errorf("empty history = %q", buf.String())
	}

	buf.Reset()
	PrintTrend(&buf, pillar.Security, []record.Point{
		{RunID: "a", Pillar: pillar.Security, Score: 50, Status: "done", CreatedAt: created},
		{RunID: "b", Pillar: pillar.Security, Score: 0, Status: "timed_out", Degraded: true, CreatedAt: created.Add(time.Hour)},
	})
	out = buf.String()
	if !strings.Contains(out, strings.Repeat("#", 10)) || !strings.Contains(out, "(degraded)") {
		t.Errorf("trend output:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("a-very-long-worker-name", 10); got != "a-very-..." {
		t.Errorf("truncate(long) = %q", got)
	}
}
