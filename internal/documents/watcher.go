package documents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// HandlerFunc processes a document that landed in the inbox.
type HandlerFunc func(ctx context.Context, path string) error

// Watcher calls a handler for every supported file written to a directory.
// Writes are debounced per file so a PDF being copied in is handled once.
type Watcher struct {
	dir      string
	handler  HandlerFunc
	logger   *zap.Logger
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, handler HandlerFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:      dir,
		handler:  handler,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		timers:   make(map[string]*time.Timer),
	}
}

// WithDebounce sets the quiet period before a file is handled
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("Watching inbox", zap.String("dir", w.dir))

	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !Supported(ev.Name) || strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			w.schedule(ctx, ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Inbox watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, exists := w.timers[path]; exists && t.Stop() {
		t.Reset(w.debounce)
		return
	}

	var timer *time.Timer
	w.wg.Add(1)
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if w.timers[path] == timer {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		doc, err := inboxPath(path, w.dir)
		if err != nil {
			w.logger.Warn("Ignoring inbox entry", zap.String("path", path), zap.Error(err))
			return
		}
		w.logger.Info("New document in inbox", zap.String("path", doc))
		if err := w.handler(ctx, doc); err != nil {
			w.logger.Warn("Inbox document rejected", zap.String("path", path), zap.Error(err))
		}
	})
	w.timers[path] = timer
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	for path, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
