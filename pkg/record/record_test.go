package record

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jdgilhuly/go_pillar_eval/pkg/audit"
	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
	"github.com/jdgilhuly/go_pillar_eval/pkg/verdict"
)

func sampleRecord(t *testing.T, id string, created time.Time, fidelity float64) *Record {
	t.Helper()
	prof, err := profile.NewRegistry().Resolve(profile.NameDefault)
	if err != nil {
		t.Fatal(err)
	}

	start := created.Add(time.Second)
	timing := pillar.NewTiming(start, start.Add(1500*time.Millisecond))
	base := pillar.WorkerResult{
		Worker: "quality", Pillar: pillar.Fidelity, Version: 1,
		BaseScore: fidelity + 10, Score: fidelity + 10, Confidence: 0.8,
		Summary: "quality", Findings: []pillar.Finding{}, Status: pillar.StatusDone, Timing: timing,
	}
	adjusted, err := base.WithAdjustment(pillar.Adjustment{Seq: 1, From: pillar.Security, Penalty: 10, Reason: "2 security finding(s)"})
	if err != nil {
		t.Fatal(err)
	}
	results := []pillar.WorkerResult{
		{Worker: "security", Pillar: pillar.Security, Version: 1, BaseScore: 60, Score: 60, Confidence: 0.9,
			Findings: []pillar.Finding{{Kind: "secret", File: "config.py", Detail: "aws_access_key"}},
			Status:   pillar.StatusDone, Timing: timing},
		adjusted,
		pillar.Failed("documentation", pillar.Ethics, pillar.StatusFailed, errors.New("boom"), timing),
	}

	sum, v, err := Evaluate(results, prof)
	if err != nil {
		t.Fatal(err)
	}

	log := audit.NewWithClock(func() time.Time { return created })
	log.Append(audit.KindDispatch, "security", "stage 0")
	bus := collab.NewBus(log)
	bus.Register(pillar.All()...)
	bus.Emit(pillar.Security, pillar.Fidelity, collab.Payload{Kind: collab.KindSecurityFindings, FindingCount: 2})

	rec := &Record{
		RunID:       id,
		Repo:        "/tmp/repo",
		Profile:     prof.Name,
		Rules:       prof,
		Mode:        "sequential",
		Order:       pillar.All(),
		CreatedAt:   created,
		CompletedAt: created.Add(5 * time.Second),
		Status:      StatusPartial,
		Summary:     sum,
		Verdict:     v,
		Results:     results,
		Messages:    bus.Messages(),
		Audit:       log.Entries(),
	}
	for _, r := range results {
		rec.Timing = append(rec.Timing, WorkerTiming{Worker: r.Worker, Pillar: r.Pillar, Status: r.Status, Timing: r.Timing})
	}
	return rec
}

func TestEvaluate(t *testing.T) {
	rec := sampleRecord(t, "run-1", time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), 21.64)
	// (60 + 21.64 + 0) / 3
	if rec.Summary.OverallScore != 27.21 {
		t.Errorf("OverallScore = %v", rec.Summary.OverallScore)
	}
	if rec.Verdict.Decision != verdict.DecisionWarn {
		t.Errorf("Decision = %s", rec.Verdict.Decision)
	}
	if r, ok := rec.Result(pillar.Fidelity); !ok || r.Version != 2 {
		t.Errorf("Result(fidelity) = %+v", r)
	}
}

func TestSaveLoad_VerdictByteIdentical(t *testing.T) {
	rec := sampleRecord(t, "3f1c2a9e-0000-4000-8000-000000000001", time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), 21.64)
	dir := t.TempDir()
	path := DefaultPath(dir, rec)
	if filepath.Base(path) != "20250615-100000-3f1c2a9e.json" {
		t.Errorf("DefaultPath() = %s", path)
	}

	if err := rec.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want, err := rec.VerdictJSON()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		_, v, err := Resynthesize(loaded, nil)
		if err != nil {
			t.Fatalf("Resynthesize() error: %v", err)
		}
		got, err := MarshalVerdict(v)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("resynthesized verdict differs:\n%s\nwant:\n%s", got, want)
		}
	}

	a, _ := rec.Canonical()
	b, _ := loaded.Canonical()
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding changed across save/load")
	}
}

func TestResynthesize_OtherProfile(t *testing.T) {
	rec := sampleRecord(t, "run-1", time.Now().UTC(), 21.64)
	hs, err := profile.NewRegistry().Resolve(profile.NameHighStakes)
	if err != nil {
		t.Fatal(err)
	}
	_, v, err := Resynthesize(rec, hs)
	if err != nil {
		t.Fatal(err)
	}
	if v.Decision != verdict.DecisionFail || v.Profile != profile.NameHighStakes {
		t.Errorf("Decision = %s under %s", v.Decision, v.Profile)
	}

	rec.Rules = nil
	if _, _, err := Resynthesize(rec, nil); err == nil {
		t.Error("expected error without a profile")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecord(t, "abcdef0123", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), 50)
	if err := (FileSink{Dir: dir}).Write(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(dir, "20250102-030405-abcdef01.json")); err != nil {
		t.Errorf("record not written: %v", err)
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGetList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	older := sampleRecord(t, "run-old", base, 21.64)
	newer := sampleRecord(t, "run-new", base.Add(time.Hour), 80)
	other := sampleRecord(t, "run-other", base.Add(2*time.Hour), 80)
	other.Repo = "/tmp/other"

	sinks := MultiSink{s}
	for _, rec := range []*Record{older, newer, other} {
		if err := sinks.Write(ctx, rec); err != nil {
			t.Fatalf("Write(%s) error: %v", rec.RunID, err)
		}
	}

	got, err := s.Get(ctx, "run-old")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	a, _ := older.VerdictJSON()
	b, _ := got.VerdictJSON()
	if !bytes.Equal(a, b) {
		t.Error("stored verdict differs")
	}

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}

	all, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].RunID != "run-other" || all[2].RunID != "run-old" {
		t.Errorf("List() = %+v", all)
	}
	if !all[2].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", all[2].CreatedAt, base)
	}

	repo, err := s.List(ctx, "/tmp/repo", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(repo) != 1 || repo[0].RunID != "run-new" || repo[0].Decision != string(newer.Verdict.Decision) {
		t.Errorf("List(repo, 1) = %+v", repo)
	}

	trend, err := s.Trend(ctx, "/tmp/repo", pillar.Fidelity, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(trend) != 2 || trend[0].Score != 80 || trend[1].Score != 21.64 {
		t.Errorf("Trend() = %+v", trend)
	}
	eth, _ := s.Trend(ctx, "", pillar.Ethics, 1)
	if len(eth) != 1 || !eth[0].Degraded || eth[0].Status != string(pillar.StatusFailed) {
		t.Errorf("Trend(ethics) = %+v", eth)
	}
}

func TestStore_PutReplaces(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	rec := sampleRecord(t, "run-1", time.Now().UTC(), 40)
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Status = StatusComplete
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("second Put() error: %v", err)
	}
	list, _ := s.List(ctx, "", 0)
	if len(list) != 1 || list[0].Status != StatusComplete {
		t.Errorf("List() = %+v", list)
	}
}

func TestStore_MigrateIdempotent(t *testing.T) {
	s := openStore(t)
	if err := s.Migrate(); err != nil {
		t.Errorf("second Migrate() error: %v", err)
	}
	if !strings.HasSuffix(s.Path(), "history.db") {
		t.Errorf("Path() = %s", s.Path())
	}
}
