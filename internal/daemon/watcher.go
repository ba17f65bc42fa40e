package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InitFlagWatcher waits for a database directory's `initialized` flag
// file to appear, preferring fsnotify and falling back to polling if the
// watcher cannot be created — grounded in the teacher's FileWatcher
// (cmd/bd/daemon_watcher.go), generalized from watching a JSONL log file
// to watching the storage core's initflag marker (spec §3.4).
type InitFlagWatcher struct {
	dir          string
	flagPath     string
	pollInterval time.Duration
	log          *slog.Logger
}

// NewInitFlagWatcher builds a watcher over dir's initflag marker.
func NewInitFlagWatcher(dir string, log *slog.Logger) *InitFlagWatcher {
	if log == nil {
		log = slog.Default()
	}
	return &InitFlagWatcher{dir: dir, flagPath: filepath.Join(dir, "initialized"), pollInterval: 500 * time.Millisecond, log: log}
}

// Wait blocks until the flag file exists, ctx is cancelled, or an
// unrecoverable watcher error occurs.
func (w *InitFlagWatcher) Wait(ctx context.Context) error {
	if _, err := os.Stat(w.flagPath); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("fsnotify unavailable, falling back to polling", "err", err)
		return w.pollUntilPresent(ctx)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		w.log.Warn("fsnotify watch failed, falling back to polling", "err", err, "dir", w.dir)
		return w.pollUntilPresent(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return w.pollUntilPresent(ctx)
			}
			if ev.Name == w.flagPath {
				if _, err := os.Stat(w.flagPath); err == nil {
					return nil
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return w.pollUntilPresent(ctx)
			}
			w.log.Warn("fsnotify error", "err", err)
		}
	}
}

func (w *InitFlagWatcher) pollUntilPresent(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(w.flagPath); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
