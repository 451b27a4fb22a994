package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the file must stay quiet before a reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Source when its backing file changes. Editors often
// write in bursts, so changes are debounced; a reload that fails validation
// leaves the previous dataset in place.
type Watcher struct {
	source   *Source
	fs       *fsnotify.Watcher
	target   string
	debounce time.Duration
	logger   *zap.Logger
	onReload func(error)

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger attaches a logger.
func WithWatchLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithReloadHook runs fn after every reload attempt with its outcome.
func WithReloadHook(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watch starts watching the file behind source. The directory is watched
// rather than the file so atomic renames are picked up.
func Watch(source *Source, opts ...WatcherOption) (*Watcher, error) {
	if source == nil || source.Path() == "" {
		return nil, errors.New("dataset: watch requires a file-backed source")
	}
	target, err := filepath.Abs(source.Path())
	if err != nil {
		return nil, fmt.Errorf("dataset: watch: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dataset: watch: %w", err)
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("dataset: watch %s: %w", filepath.Dir(target), err)
	}

	w := &Watcher{
		source:   source,
		fs:       fsw,
		target:   target,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dataset watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	err := w.source.Reload()
	if err != nil {
		w.logger.Warn("dataset reload failed, keeping previous catalog",
			zap.String("path", w.target),
			zap.Error(err),
		)
	} else {
		stats := w.source.Current().Stats()
		w.logger.Info("dataset reloaded",
			zap.String("path", w.target),
			zap.Int("brands", stats.Brands),
			zap.Int("models", stats.Models),
		)
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}
