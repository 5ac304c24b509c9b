// Package record holds the output of an evaluation run and its
// persistence: canonical JSON files and a SQLite run history.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jdgilhuly/go_pillar_eval/pkg/audit"
	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
	"github.com/jdgilhuly/go_pillar_eval/pkg/score"
	"github.com/jdgilhuly/go_pillar_eval/pkg/verdict"
)

// Status is the terminal status of a run.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusAborted  Status = "aborted"
)

// WorkerTiming is the timing of one worker in a run.
type WorkerTiming struct {
	Worker string        `json:"worker"`
	Pillar pillar.Pillar `json:"pillar"`
	Status pillar.Status `json:"status"`
	pillar.Timing
}

// Record is the finished, immutable output of one evaluation run.
type Record struct {
	RunID       string                   `json:"run_id"`
	Repo        string                   `json:"repo"`
	Profile     string                   `json:"profile"`
	Rules       *profile.Profile         `json:"rules"`
	Mode        string                   `json:"mode"`
	Order       []pillar.Pillar          `json:"order"`
	CreatedAt   time.Time                `json:"created_at"`
	CompletedAt time.Time                `json:"completed_at"`
	Status      Status                   `json:"status"`
	Summary     score.Summary            `json:"summary"`
	Verdict     verdict.CompositeVerdict `json:"verdict"`
	Results     []pillar.WorkerResult    `json:"results"`
	Messages    []collab.Message         `json:"messages"`
	Timing      []WorkerTiming           `json:"timing"`
	Audit       []audit.Entry            `json:"audit"`
}

// Evaluate aggregates the frozen results and synthesizes the verdict under
// prof. Dispatch and re-synthesis of a persisted record both go through
// here.
func Evaluate(results []pillar.WorkerResult, prof *profile.Profile) (score.Summary, verdict.CompositeVerdict, error) {
	sum, err := score.Aggregate(results, prof.Weights(), prof.Bands)
	if err != nil {
		return score.Summary{}, verdict.CompositeVerdict{}, fmt.Errorf("aggregating results: %w", err)
	}
	return sum, verdict.Synthesize(pillar.Metrics(results), sum, prof), nil
}

// Resynthesize re-runs aggregation and synthesis on the frozen results of
// rec. A nil prof uses the rules stored with the record.
func Resynthesize(rec *Record, prof *profile.Profile) (score.Summary, verdict.CompositeVerdict, error) {
	if prof == nil {
		prof = rec.Rules
	}
	if prof == nil {
		return score.Summary{}, verdict.CompositeVerdict{}, fmt.Errorf("run %s: no profile to synthesize with", rec.RunID)
	}
	return Evaluate(rec.Results, prof)
}

// Result returns the final result for p, if any.
func (r *Record) Result(p pillar.Pillar) (pillar.WorkerResult, bool) {
	for _, res := range r.Results {
		if res.Pillar == p {
			return res, true
		}
	}
	return pillar.WorkerResult{}, false
}

// Canonical encodes the record as indented JSON. The encoding is
// deterministic: every collection is an ordered slice or a map with sorted
// keys.
func (r *Record) Canonical() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	return data, nil
}

// VerdictJSON encodes only the verdict, canonically.
func (r *Record) VerdictJSON() ([]byte, error) {
	return MarshalVerdict(r.Verdict)
}

// MarshalVerdict encodes a verdict canonically.
func MarshalVerdict(v verdict.CompositeVerdict) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling verdict: %w", err)
	}
	return data, nil
}

// DefaultPath returns the default output file for rec inside dir.
func DefaultPath(dir string, rec *Record) string {
	id := rec.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.json", rec.CreatedAt.UTC().Format("20060102-150405"), id))
}

// Save writes the canonical encoding to path. Parent directories are
// created automatically.
func (r *Record) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating record directory %s: %w", dir, err)
	}

	data, err := r.Canonical()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing record to %s: %w", path, err)
	}
	return nil
}

// Load reads a record from a JSON file.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record file %s: %w", path, err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing record file %s: %w", path, err)
	}
	return &r, nil
}

// Sink receives finished records.
type Sink interface {
	Write(ctx context.Context, rec *Record) error
}

// FileSink writes each record to DefaultPath inside Dir.
type FileSink struct {
	Dir string
}

// Write saves rec.
func (s FileSink) Write(_ context.Context, rec *Record) error {
	return rec.Save(DefaultPath(s.Dir, rec))
}

// MultiSink writes to every sink in order and stops at the first error.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, rec *Record) error {
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
