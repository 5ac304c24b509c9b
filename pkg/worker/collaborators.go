package worker

import (
	"context"

	"github.com/jdgilhuly/go_pillar_eval/pkg/retry"
)

// SecretFinding is one secret-like pattern match.
type SecretFinding struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	File    string `yaml:"file" json:"file"`
	Line    int    `yaml:"line,omitempty" json:"line,omitempty"`
	Snippet string `yaml:"snippet" json:"snippet"`
}

// Structure summarizes the layout of a repository.
type Structure struct {
	Languages []string `yaml:"languages" json:"languages"`
	FileCount int      `yaml:"file_count" json:"file_count"`
	TestRatio float64  `yaml:"test_ratio" json:"test_ratio"`
}

// DocStats summarizes the README documentation.
type DocStats struct {
	SectionCount int      `yaml:"section_count" json:"section_count"`
	WordCount    int      `yaml:"word_count" json:"word_count"`
	Sections     []string `yaml:"sections,omitempty" json:"sections,omitempty"`
}

// JudgeMetrics holds what an external judge measured. A nil field was not
// measured.
type JudgeMetrics struct {
	RefusalAccuracy *float64 `yaml:"refusal_accuracy,omitempty" json:"refusal_accuracy,omitempty"`
	Faithfulness    *float64 `yaml:"faithfulness,omitempty" json:"faithfulness,omitempty"`
}

// SecretScanner finds secret-like patterns in files.
type SecretScanner interface {
	SecretScan(ctx context.Context, files []string) ([]SecretFinding, error)
}

// StructureAnalyzer counts files, languages and tests.
type StructureAnalyzer interface {
	StructureAnalyze(ctx context.Context, files []string) (Structure, error)
}

// DocReviewer measures README sections and words.
type DocReviewer interface {
	DocReview(ctx context.Context, readmeFiles []string) (DocStats, error)
}

// ExternalJudge scores a prompt. It may be unavailable, in which case it
// returns an evalerr.ProviderUnavailableError.
type ExternalJudge interface {
	Judge(ctx context.Context, prompt string) (JudgeMetrics, error)
}

// Options tune the built-in workers.
type Options struct {
	Retry retry.Policy

	// Fallback is the simulated metric (0-1) reported by the performance
	// worker when the judge is unavailable.
	Fallback float64
}

// DefaultOptions returns the reference retry policy and a 0.5 fallback.
func DefaultOptions() Options {
	return Options{Retry: retry.Default(), Fallback: 0.5}
}
