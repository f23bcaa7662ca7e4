package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/jera/internal/storage"
)

// EventCallback is called for every detected document change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the project root and reports file
// change events until ctx is cancelled. The watcher only detects: it never
// writes the index itself. The callback is expected to route events into
// the service, which re-parses once and updates both the in-memory project
// and the index from the same trees.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that diffs the index
// against the disk and reports stragglers.
func Watch(ctx context.Context, db *DB, store storage.Provider, projectRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, projectRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", projectRoot))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	notify := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if filepath.Base(absPath) == ".jera" {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Report any documents already in the new directory.
					announceDirDocs(projectRoot, absPath, logger, cb)
					continue
				}
			}

			// Only process .wbs.md documents from here on. Temp files
			// (.jera-tmp-*) and .bak snapshots never match the suffix.
			if !strings.HasSuffix(absPath, storage.DocSuffix) {
				continue
			}

			rel, relErr := filepath.Rel(projectRoot, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: changed", slog.String("path", rel), slog.String("op", kind))
				notify(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				logger.Debug("watcher: removed", slog.String("path", rel))
				notify("deleted", rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We report the old path
				// gone immediately and schedule a short reconciliation
				// pass to catch any stragglers.
				logger.Debug("watcher: rename old gone", slog.String("path", rel))
				notify("deleted", rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename diffs the index against the disk using batch
// lookups: index entries without a file on disk are reported deleted, and
// on-disk files whose checksum differs from the indexed one are reported
// created or updated.
func reconcileAfterRename(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	if cb == nil {
		return
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	infos, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(infos))
	for _, info := range infos {
		disk[info.Path] = info.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			logger.Debug("reconcile: stale", slog.String("path", p))
			cb("deleted", p)
		}
	}

	for p, cs := range disk {
		indexed, known := checksums[p]
		if known && indexed == cs {
			continue
		}
		kind := "created"
		if known {
			kind = "updated"
		}
		logger.Debug("reconcile: changed", slog.String("path", p), slog.String("op", kind))
		cb(kind, p)
	}
}

// announceDirDocs reports any documents found in a newly created directory.
func announceDirDocs(projectRoot, dirPath string, logger *slog.Logger, cb EventCallback) {
	if cb == nil {
		return
	}
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, storage.DocSuffix) {
			return nil
		}
		rel, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil {
			return nil
		}
		logger.Debug("watcher: doc in new dir", slog.String("path", rel))
		cb("created", rel)
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// skipping the .jera state directory.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".jera" && path != root {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
