// Watch mode: re-analysis on BUILD/.bzl changes.
package analyzer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/rules-python-go/internal/ctxslog"
)

// watchDebounce batches an editor's burst of writes into one re-analysis.
const watchDebounce = 250 * time.Millisecond

// Watch analyzes the workspace, then re-analyzes it whenever a BUILD or .bzl
// file changes, passing each report to onReport. It blocks until the context
// is cancelled. Watching needs a real directory tree; in-memory filesystems
// produce no change events.
func (a *Analyzer) Watch(ctx context.Context, onReport func(*Report)) error {
	log := ctxslog.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	root := a.root
	if root == "" {
		root = "."
	}
	if err := watchDirRecursive(watcher, root); err != nil {
		return err
	}

	run := func() {
		if ctx.Err() != nil {
			return
		}
		report, err := a.Analyze(ctx)
		if err != nil {
			log.Error("analysis failed", "error", err)
			return
		}
		onReport(report)
	}
	run()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New directories must join the watch set before their files
			// can trigger events.
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if !skipDir(filepath.Base(event.Name)) {
						_ = watchDirRecursive(watcher, event.Name)
					}
					continue
				}
			}
			if !relevantChange(event.Name) {
				continue
			}
			// Macro edits hide behind the load() cache, so .bzl changes
			// drop everything.
			if filepath.Ext(event.Name) == ".bzl" {
				a.Invalidate()
			}
			log.Debug("file changed", "file", event.Name, "op", event.Op.String())

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, run)

		case err := <-watcher.Errors:
			log.Error("watcher error", "error", err)
		}
	}
}

// relevantChange reports whether a changed path affects analysis.
func relevantChange(path string) bool {
	base := filepath.Base(path)
	return base == "BUILD" || base == "BUILD.bazel" || filepath.Ext(base) == ".bzl"
}

// watchDirRecursive adds dir and every subdirectory to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
