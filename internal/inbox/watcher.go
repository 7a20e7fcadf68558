// Package inbox watches a directory for new paper files and hands each one to
// a handler once it has stopped changing. Handlers run one at a time.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"maml/internal/logging"
)

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Extensions are the paper file types the watcher reacts to.
var Extensions = []string{".txt", ".html", ".htm"}

// Stats tracks watcher activity.
type Stats struct {
	Queued    int
	Processed int
	Failed    int
	LastPath  string
	LastError string
}

// Watcher debounces filesystem events under one directory.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	handler  Handler
	pending  map[string]time.Time
	settle   time.Duration
	existing bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    Stats
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must be quiet before it is handled.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) { w.settle = d }
}

// WithExisting queues files already in the directory at start.
func WithExisting() Option {
	return func(w *Watcher) { w.existing = true }
}

// New creates a watcher for dir.
func New(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		dir:     dir,
		handler: handler,
		pending: make(map[string]time.Time),
		settle:  500 * time.Millisecond,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	if w.existing {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", w.dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				w.queue(filepath.Join(w.dir, e.Name()))
			}
		}
	}
	logging.Builder("Inbox: watching %s", w.dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the in-flight handler to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.BuilderWarn("Inbox: error closing watcher: %v", err)
	}
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.queue(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.BuilderWarn("Inbox: watcher error: %v", err)
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Watcher) queue(path string) {
	if !isPaper(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[path]; !ok {
		w.stats.Queued++
	}
	w.pending[path] = time.Now()
}

// drain handles every settled file in name order.
func (w *Watcher) drain(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()
	sort.Strings(ready)

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		err := w.handler(ctx, path)

		w.mu.Lock()
		w.stats.LastPath = path
		if err != nil {
			w.stats.Failed++
			w.stats.LastError = err.Error()
		} else {
			w.stats.Processed++
		}
		w.mu.Unlock()

		if err != nil {
			logging.BuilderWarn("Inbox: %s failed: %v", path, err)
		}
	}
}

func isPaper(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
