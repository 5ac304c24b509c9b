package scan

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
}

// StructureAnalyzer implements worker.StructureAnalyzer from file names
// alone; it never reads file contents.
type StructureAnalyzer struct{}

// NewStructureAnalyzer returns a StructureAnalyzer.
func NewStructureAnalyzer() *StructureAnalyzer { return &StructureAnalyzer{} }

// StructureAnalyze reports the languages present, the file count and the
// share of files that are tests.
func (a *StructureAnalyzer) StructureAnalyze(ctx context.Context, files []string) (worker.Structure, error) {
	if err := ctx.Err(); err != nil {
		return worker.Structure{}, err
	}
	seen := make(map[string]bool)
	tests := 0
	for _, f := range files {
		if lang, ok := languageByExt[strings.ToLower(filepath.Ext(f))]; ok {
			seen[lang] = true
		}
		if IsTestFile(f) {
			tests++
		}
	}

	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	st := worker.Structure{Languages: langs, FileCount: len(files)}
	if len(files) > 0 {
		st.TestRatio = float64(tests) / float64(len(files))
	}
	return st, nil
}

// IsTestFile recognizes common test file naming conventions.
func IsTestFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if _, code := languageByExt[ext]; !code {
		return false
	}
	switch {
	case strings.HasSuffix(stem, "_test"), strings.HasPrefix(stem, "test_"):
		return true
	case strings.HasSuffix(stem, ".test"), strings.HasSuffix(stem, ".spec"), strings.HasSuffix(stem, "_spec"):
		return true
	case strings.HasSuffix(stem, "test") && ext == ".java":
		return true
	}
	for _, dir := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		if dir == "tests" || dir == "test" || dir == "__tests__" {
			return true
		}
	}
	return false
}
