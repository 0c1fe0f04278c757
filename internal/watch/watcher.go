// Package watch reruns a compilation whenever the template file changes. At
// most one run is in flight at a time; change events arriving mid-run are
// coalesced into exactly one follow-up run.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceInterval is the settle delay after a filesystem event before a
// rerun is triggered, so editor save sequences (write + rename) collapse
// into a single run.
const DebounceInterval = 100 * time.Millisecond

// Option customises the watcher.
type Option func(*Watcher)

// WithLogger injects the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce overrides the settle delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher observes one template file and serialises reruns.
type Watcher struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration
}

// New constructs a watcher for the given template path.
func New(path string, opts ...Option) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		logger:   slog.Default(),
		debounce: DebounceInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until the context is cancelled, invoking run after each settled
// change to the watched file. Errors returned by run are reported to onError
// and watching continues; only watcher failures end the loop.
func (w *Watcher) Run(ctx context.Context, run func(context.Context) error, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directory, not the file itself: editors and atomic
	// writers replace the file, which changes the inode.
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	w.logger.Debug("watching for changes", "dir", dir, "file", base)

	// triggerCh has capacity one: a change arriving while a run is in flight
	// queues exactly one follow-up, never one run per event.
	triggerCh := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
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
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("filesystem event", "op", event.Op.String(), "name", event.Name)

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				select {
				case triggerCh <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-triggerCh:
			if err := run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}
}
