package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is how often the watcher stats the config file.
const DefaultPollInterval = 10 * time.Second

// Watcher reports modifications of a configuration file. It polls the
// file's modification time and also listens to fsnotify events on the
// parent directory so that edits are picked up before the next poll.
// Both paths compare the stat result, so one change fires handlers once.
type Watcher struct {
	path     string
	interval time.Duration
	debounce time.Duration
	handlers []func()
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	lastMod  time.Time
	lastSize int64
	missing  bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets the mtime poll interval. Default is 10s.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = d
	}
}

// WithDebounce sets the delay between a filesystem event and the stat.
// Default is 200ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     filepath.Clean(path),
		interval: DefaultPollInterval,
		debounce: 200 * time.Millisecond,
		handlers: make([]func(), 0),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnChange registers a handler called after each detected modification.
// Returns an unsubscribe function to remove the handler.
func (w *Watcher) OnChange(handler func()) func() {
	w.mu.Lock()
	w.handlers = append(w.handlers, handler)
	idx := len(w.handlers) - 1
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if idx < len(w.handlers) {
			w.handlers[idx] = nil
		}
	}
}

// Start records the current modification time and begins watching.
// A missing file is not an error; it is reported once it appears.
func (w *Watcher) Start() error {
	w.changed()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("Filesystem notifications unavailable, polling only", "error", err)
	} else if addErr := watcher.Add(filepath.Dir(w.path)); addErr != nil {
		w.logger.Warn("Failed to watch config directory, polling only", "error", addErr)
		watcher.Close()
	} else {
		w.watcher = watcher
	}

	w.logger.Info("Config watcher started", "path", w.path, "interval", w.interval)
	go w.watch()
	return nil
}

// Stop stops watching and cleans up resources.
func (w *Watcher) Stop() error {
	w.cancel()
	<-w.done
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) watch() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if w.watcher != nil {
		fsEvents = w.watcher.Events
		fsErrors = w.watcher.Errors
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Debug("Config watcher stopped")
			return

		case <-ticker.C:
			w.check()

		case event, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
				w.logger.Debug("Config file change detected", "op", event.Op.String())
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			w.check()

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

// check notifies handlers when the file's stat differs from the last one seen.
func (w *Watcher) check() {
	if !w.changed() {
		return
	}
	w.logger.Info("Config file changed", "path", w.path)

	w.mu.RLock()
	handlers := make([]func(), 0, len(w.handlers))
	for _, h := range w.handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	w.mu.RUnlock()

	for _, handler := range handlers {
		handler()
	}
}

// changed stats the file and records the result.
func (w *Watcher) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("Config file missing", "path", w.path)
		} else {
			w.logger.Warn("Failed to stat config file", "path", w.path, "error", err)
		}
		w.missing = true
		return false
	}

	mod, size := info.ModTime(), info.Size()
	if !w.missing && mod.Equal(w.lastMod) && size == w.lastSize {
		return false
	}
	first := w.lastMod.IsZero() && !w.missing
	w.lastMod, w.lastSize, w.missing = mod, size, false
	return !first
}
