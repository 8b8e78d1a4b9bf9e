package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-runs the pipeline whenever a policy text file in a watched
// directory is created or rewritten, giving policy authors a live loop.
// Events per path are debounced so editors that write in bursts trigger
// one run.
type Watcher struct {
	pipeline *Pipeline
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onResult func(path string, result *RunResult, err error)
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher watches dir for .txt policy files. onResult is invoked
// after every triggered run, success or failure.
func NewWatcher(p *Pipeline, dir string, onResult func(string, *RunResult, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		pipeline: p,
		watcher:  fw,
		debounce: 200 * time.Millisecond,
		onResult: onResult,
		logger:   p.logger.With("component", "pipeline.watcher"),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Run processes events until the context is canceled or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".txt") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops watching. Pending debounced runs are dropped.
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.watcher.Close()
}

// schedule arms (or re-arms) the debounce timer for one path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.runFile(ctx, path)
	})
}

func (w *Watcher) runFile(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.timers, path)
	w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("policy file unreadable", "path", path, "error", err)
		if w.onResult != nil {
			w.onResult(path, nil, err)
		}
		return
	}

	result, err := w.pipeline.Run(ctx, string(data))
	if err != nil {
		w.logger.Warn("watched run failed", "path", path, "error", err)
	} else {
		w.logger.Info("watched run complete",
			"path", path, "entity_id", result.EntityID, "version", result.Version)
	}
	if w.onResult != nil {
		w.onResult(path, result, err)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}
