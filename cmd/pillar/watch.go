package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jdgilhuly/go_pillar_eval/pkg/config"
	"github.com/jdgilhuly/go_pillar_eval/pkg/scan"
)

const watchDebounce = 500 * time.Millisecond

// watchRepo runs eval once, then again after every burst of file changes
// under root until ctx is cancelled. Changes under ignore do not trigger a
// run. Failed evaluations are reported and watching continues.
func watchRepo(ctx context.Context, root string, ignore []string, logger *log.Logger, out io.Writer, eval func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root); err != nil {
		return err
	}

	runOnce := func() {
		if err := eval(ctx); err != nil {
			fmt.Fprintf(out, "evaluation failed: %v\n", err)
		}
		fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)...\n", root)
	}
	runOnce()

	trigger := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignored(event.Name, ignore) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !scan.Skipped(info.Name()) {
					if err := addWatchDirs(watcher, event.Name); err != nil {
						logger.Printf("watch %s: %v", event.Name, err)
					}
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Printf("change: %s %s", event.Op, event.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			runOnce()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("watcher error: %v", err)
		}
	}
}

// addWatchDirs watches dir and every directory below it that the scanner
// would not skip.
func addWatchDirs(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && scan.Skipped(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// ignoredPaths are the locations pillar itself writes to while running,
// including an explicit record path.
func ignoredPaths(cfg *config.Config, extra ...string) []string {
	var out []string
	for _, p := range append([]string{cfg.OutputDir, cfg.DBPath, cfg.LogFile}, extra...) {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			out = append(out, abs)
		}
	}
	return out
}

func ignored(path string, ignore []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, p := range ignore {
		// SQLite writes journal files next to the database.
		if abs == p || strings.HasPrefix(abs, p+string(filepath.Separator)) || strings.HasPrefix(abs, p+"-") {
			return true
		}
	}
	return false
}
