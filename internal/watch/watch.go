// Package watch triggers re-ingestion when files under configured watch
// paths are created or modified.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// IngestFunc triggers ingestion of a single file path. ingest.Pipeline's
// IngestPath satisfies this once its Result return value is discarded.
type IngestFunc func(ctx context.Context, path string) error

// debounceWindow collapses bursts of filesystem events (editors commonly
// write a file, then chmod it, then rename a swap file) into one ingest.
const debounceWindow = 500 * time.Millisecond

// Watcher recursively watches a set of root paths with fsnotify and calls
// Ingest for each file that settles after a create or write event. Grounded
// on the teacher's internal/watcher/hybrid.go HybridWatcher, trimmed of its
// polling fallback and gitignore matching: this module has no notion of a
// project-local ignore file, and fsnotify's inotify/kqueue/ReadDirectoryW
// backends cover every platform this ships on.
type Watcher struct {
	Ingest IngestFunc

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	timers  map[string]*time.Timer
	roots   []string
}

// New creates a Watcher. Call Start to begin watching.
func New(ingest IngestFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		Ingest: ingest,
		fsw:    fsw,
		timers: make(map[string]*time.Timer),
	}, nil
}

// Start watches roots recursively and processes events until ctx is
// cancelled or Close is called. It blocks, so callers should run it in its
// own goroutine.
func (w *Watcher) Start(ctx context.Context, roots []string) error {
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			slog.Warn("watch: failed to add root", "path", root, "error", err)
			continue
		}
		w.roots = append(w.roots, root)
	}

	for {
		select {
		case <-ctx.Done():
			return w.Close()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				slog.Warn("watch: failed to add new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	w.debounce(ctx, event.Name)
}

// debounce schedules an ingest for path after debounceWindow of quiet,
// resetting the timer on repeated events for the same path.
func (w *Watcher) debounce(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		if err := w.Ingest(ctx, path); err != nil {
			slog.Warn("watch: ingest failed", "path", path, "error", err)
		}
	})
}

// Close stops watching and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
