package scan

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

// DocReviewer implements worker.DocReviewer for Markdown READMEs. Headings
// of any level count as sections; fenced code blocks are not counted as
// words.
type DocReviewer struct{}

// NewDocReviewer returns a DocReviewer.
func NewDocReviewer() *DocReviewer { return &DocReviewer{} }

// DocReview sums sections and words across all README files.
func (r *DocReviewer) DocReview(ctx context.Context, readmeFiles []string) (worker.DocStats, error) {
	stats := worker.DocStats{}
	for _, path := range readmeFiles {
		if err := ctx.Err(); err != nil {
			return worker.DocStats{}, err
		}
		data, err := readHead(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return worker.DocStats{}, evalerr.Transient("doc_review", err)
		}
		sections, words := ParseMarkdown(string(data))
		stats.SectionCount += len(sections)
		stats.WordCount += words
		stats.Sections = append(stats.Sections, sections...)
	}
	return stats, nil
}

// ParseMarkdown returns the heading titles and the prose word count.
func ParseMarkdown(text string) (sections []string, words int) {
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if title != "" {
				sections = append(sections, title)
			}
			continue
		}
		words += len(strings.Fields(trimmed))
	}
	return sections, words
}
