package printing

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultReloadDelay = 200 * time.Millisecond

// TemplateWatcher reloads the store when a template file changes
type TemplateWatcher struct {
	store   *TemplateStore
	watcher *fsnotify.Watcher
	delay   time.Duration
	logger  *zap.Logger

	// OnReload is called after every reload attempt (optional)
	OnReload func(error)

	mu      sync.Mutex
	timer   *time.Timer
	done    chan struct{}
	stopped sync.Once
}

// WatcherOption configures TemplateWatcher
type WatcherOption func(*TemplateWatcher)

// WithReloadDelay sets how long to wait for more changes before reloading
func WithReloadDelay(d time.Duration) WatcherOption {
	return func(w *TemplateWatcher) {
		w.delay = d
	}
}

// WithReloadHook sets a callback invoked after each reload
func WithReloadHook(fn func(error)) WatcherOption {
	return func(w *TemplateWatcher) {
		w.OnReload = fn
	}
}

// WatchTemplates starts watching the store's directory recursively
func WatchTemplates(store *TemplateStore, logger *zap.Logger, opts ...WatcherOption) (*TemplateWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &TemplateWatcher{
		store:   store,
		watcher: fsw,
		delay:   defaultReloadDelay,
		logger:  logger.Named("template_watcher"),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addRecursive(store.Dir()); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	go w.loop()
	w.logger.Info("Watching templates", zap.String("dir", store.Dir()), zap.String("pattern", templatePattern))
	return w, nil
}

func (w *TemplateWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Warn("Failed to watch directory", zap.String("path", p), zap.Error(err))
		}
		return nil
	})
}

func (w *TemplateWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Template watcher error", zap.Error(err))
		}
	}
}

func (w *TemplateWatcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.matches(event.Name) {
		return
	}

	w.logger.Debug("Template changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	w.schedule()
}

func (w *TemplateWatcher) matches(name string) bool {
	rel, err := filepath.Rel(w.store.Dir(), name)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(templatePattern, filepath.ToSlash(rel))
	return err == nil && ok
}

// schedule coalesces bursts of events (editors write several times per save)
func (w *TemplateWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.reload)
}

func (w *TemplateWatcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	err := w.store.Reload()
	if err != nil {
		w.logger.Error("Template reload failed, keeping previous templates", zap.Error(err))
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}

// Close stops watching
func (w *TemplateWatcher) Close() error {
	var err error
	w.stopped.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
