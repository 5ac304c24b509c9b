// Package scan provides the file-system collaborators consumed by the
// built-in workers: a secret scanner, a structure analyzer and a README
// reviewer.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	".pillar":      true,
}

// ListFiles walks root and returns the paths of all regular files, joined
// with root and sorted.
func ListFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading repository: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository %s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Skipped reports whether a directory name is excluded from listings.
func Skipped(dir string) bool {
	return skipDirs[dir]
}

// Repo builds the repository context for root. The reference is the
// cleaned absolute path when it can be resolved.
func Repo(root string) (worker.RepoContext, error) {
	ref := root
	if abs, err := filepath.Abs(root); err == nil {
		ref = abs
	}
	files, err := ListFiles(root)
	if err != nil {
		return worker.RepoContext{}, err
	}
	return worker.RepoContext{Ref: ref, Root: root, Files: files}, nil
}

// Collaborators returns the file-system collaborators. The judge is left
// for the caller to wire.
func Collaborators() worker.Collaborators {
	return worker.Collaborators{
		Secrets:   NewSecretScanner(),
		Structure: NewStructureAnalyzer(),
		Docs:      NewDocReviewer(),
	}
}
