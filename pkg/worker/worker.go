// Package worker defines the pillar worker contract and the closed set of
// built-in workers. A worker wraps one detection routine, produces a raw
// score with findings, and may emit collaboration signals to workers that
// have not yet frozen.
package worker

import (
	"context"

	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
)

// Worker is implemented by every pillar worker.
type Worker interface {
	// Name returns the worker identifier (e.g. "security").
	Name() string

	// Pillar returns the pillar the worker scores.
	Pillar() pillar.Pillar

	// Plan describes the inputs the worker reads and the pillars whose
	// findings it consumes. A worker that receives signals must list every
	// sender in DependsOn: in parallel mode an undeclared sender may share
	// its stage, and its message then arrives after the recipient froze.
	Plan(repo RepoContext) TaskPlan

	// Execute runs the detection routine. Collaborator calls block only
	// this worker.
	Execute(ctx context.Context, repo RepoContext) (Outcome, error)

	// Receive turns drained collaboration messages into adjustments of the
	// worker's base result. It must be deterministic.
	Receive(base pillar.WorkerResult, msgs []collab.Message) []pillar.Adjustment
}

// RepoContext is the repository reference handed to every worker.
type RepoContext struct {
	Ref   string   `json:"ref"`
	Root  string   `json:"root,omitempty"`
	Files []string `json:"files"`
}

// TaskPlan is what a worker reports during planning.
type TaskPlan struct {
	Inputs    []string        `json:"inputs"`
	DependsOn []pillar.Pillar `json:"depends_on,omitempty"`
}

// Signal is a collaboration message the worker wants sent once its result
// has frozen.
type Signal struct {
	To      pillar.Pillar  `json:"to"`
	Payload collab.Payload `json:"payload"`
}

// Outcome is the raw product of Execute.
type Outcome struct {
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence"`
	Summary    string           `json:"summary"`
	Findings   []pillar.Finding `json:"findings"`
	Degraded   bool             `json:"degraded"`
	Signals    []Signal         `json:"signals,omitempty"`
}

// Kinds returns the names of the built-in workers in reference order.
func Kinds() []string {
	return []string{"security", "quality", "documentation", "performance"}
}

// Collaborators bundles the external routines the built-in workers wrap.
type Collaborators struct {
	Secrets   SecretScanner
	Structure StructureAnalyzer
	Docs      DocReviewer
	Judge     ExternalJudge
}

// Builtins constructs the four built-in workers in reference order.
func Builtins(c Collaborators, opts Options) []Worker {
	return []Worker{
		NewSecurity(c.Secrets, opts),
		NewQuality(c.Structure, opts),
		NewDocumentation(c.Docs, opts),
		NewPerformance(c.Judge, opts),
	}
}
