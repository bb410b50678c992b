package loader

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the datasets when either backing file changes. Editors and
// atomic-rename writers emit bursts of events, so reloads are debounced with
// a settle delay.
type Watcher struct {
	paths  []string
	settle time.Duration
	reload func(context.Context) error
	logger *slog.Logger
}

func NewWatcher(paths []string, settle time.Duration, reload func(context.Context) error, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	return &Watcher{paths: paths, settle: settle, reload: reload, logger: logger}
}

// Run blocks until ctx is canceled. Directories rather than files are
// watched so renames and recreations keep being observed.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	watched := map[string]bool{}
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if watched[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			return err
		}
		watched[dir] = true
	}

	wanted := map[string]bool{}
	for _, p := range w.paths {
		wanted[filepath.Clean(p)] = true
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !wanted[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.settle)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.settle)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("dataset watcher error", "error", err)
		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Info("dataset change detected, reloading")
			if err := w.reload(ctx); err != nil {
				w.logger.Error("dataset reload failed", "error", err)
			}
		}
	}
}
