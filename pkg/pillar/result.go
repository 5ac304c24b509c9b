package pillar

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyAdjusted is returned when an adjustment with the same message
	// sequence number has already been applied to a result.
	ErrAlreadyAdjusted = errors.New("adjustment already applied")
	// ErrNotAdjustable is returned when adjusting a result that did not finish.
	ErrNotAdjustable = errors.New("result is not adjustable")
)

// Status is the terminal state of a worker.
type Status string

const (
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// Finding is one structured observation made by a worker.
type Finding struct {
	Kind     string `json:"kind"`
	File     string `json:"file,omitempty"`
	Detail   string `json:"detail"`
	Severity string `json:"severity,omitempty"`
}

// Adjustment records a collaboration-driven score change. Seq is the
// sequence number of the message that caused it.
type Adjustment struct {
	Seq     uint64  `json:"seq"`
	From    Pillar  `json:"from"`
	Penalty float64 `json:"penalty"`
	Delta   float64 `json:"delta"`
	Reason  string  `json:"reason"`
}

// Timing captures when a worker ran.
type Timing struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// NewTiming builds a Timing from start and end.
func NewTiming(start, end time.Time) Timing {
	return Timing{Start: start, End: end, Duration: end.Sub(start)}
}

// WorkerResult is the frozen output of one worker. Values are never
// mutated; WithAdjustment returns a new version.
type WorkerResult struct {
	Worker      string       `json:"worker"`
	Pillar      Pillar       `json:"pillar"`
	Version     int          `json:"version"`
	BaseScore   float64      `json:"base_score"`
	Score       float64      `json:"score"`
	Confidence  float64      `json:"confidence"`
	Summary     string       `json:"summary"`
	Findings    []Finding    `json:"findings"`
	Status      Status       `json:"status"`
	Degraded    bool         `json:"degraded"`
	Error       string       `json:"error,omitempty"`
	Timing      Timing       `json:"timing"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
}

// Failed builds the degraded score-0 result substituted for a worker that
// faulted, timed out or was cancelled.
func Failed(worker string, p Pillar, status Status, err error, timing Timing) WorkerResult {
	r := WorkerResult{
		Worker:   worker,
		Pillar:   p,
		Version:  1,
		Status:   status,
		Degraded: true,
		Timing:   timing,
		Summary:  fmt.Sprintf("%s worker %s", worker, status),
		Findings: []Finding{},
	}
	if err != nil {
		r.Error = err.Error()
		r.Summary = fmt.Sprintf("%s worker %s: %v", worker, status, err)
	}
	return r
}

// Done reports whether the worker finished normally.
func (r WorkerResult) Done() bool {
	return r.Status == StatusDone
}

// WithAdjustment returns a new version of r with the adjustment applied.
// The score is clamped to [0, 100] and the delta actually applied is
// recorded alongside the requested penalty.
func (r WorkerResult) WithAdjustment(a Adjustment) (WorkerResult, error) {
	if !r.Done() {
		return r, fmt.Errorf("%s (%s): %w", r.Worker, r.Status, ErrNotAdjustable)
	}
	for _, prev := range r.Adjustments {
		if prev.Seq == a.Seq {
			return r, fmt.Errorf("%s: message #%d: %w", r.Worker, a.Seq, ErrAlreadyAdjusted)
		}
	}

	next := r.clone()
	next.Version = r.Version + 1
	next.Score = Round2(Clamp(r.Score - a.Penalty))
	a.Delta = Round2(next.Score - r.Score)
	next.Adjustments = append(next.Adjustments, a)
	next.Summary = fmt.Sprintf("%s [adjusted %+.2f by %s: %s]", r.Summary, a.Delta, a.From, a.Reason)
	return next, nil
}

// Metric derives the pillar metric from the result.
func (r WorkerResult) Metric() Metric {
	return Metric{
		Pillar:   r.Pillar,
		Value:    r.Score / 100,
		Degraded: r.Degraded || !r.Done(),
	}
}

func (r WorkerResult) clone() WorkerResult {
	out := r
	out.Findings = make([]Finding, len(r.Findings))
	copy(out.Findings, r.Findings)
	out.Adjustments = make([]Adjustment, len(r.Adjustments), len(r.Adjustments)+1)
	copy(out.Adjustments, r.Adjustments)
	return out
}

// Metric is the 0-1 value a pillar is gated on.
type Metric struct {
	Pillar   Pillar  `json:"pillar"`
	Value    float64 `json:"value"`
	Degraded bool    `json:"degraded"`
}

// Metrics derives one metric per result.
func Metrics(results []WorkerResult) []Metric {
	out := make([]Metric, 0, len(results))
	for _, r := range results {
		out = append(out, r.Metric())
	}
	return out
}
