package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file on change and hands the reloaded Config to
// its onReload callback, grounded on hector's FileProvider.Watch.
type Watcher struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool

	onReload func(*Config)
}

// NewWatcher resolves path to an absolute path and returns a Watcher ready
// to Start.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &Watcher{path: abs, onReload: onReload}, nil
}

// Start begins watching the config file's directory for changes and
// blocks until ctx is cancelled or Close is called. Run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("watcher is closed")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create file watcher: %w", err)
	}
	w.watcher = fw
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	slog.Info("watching config file", "path", w.path)
	w.loop(ctx, fw, file)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, file string) {
	defer fw.Close()

	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			slog.Error("failed to reload config", "error", err)
			return
		}
		slog.Info("config reloaded", "path", w.path)
		if w.onReload != nil {
			w.onReload(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, reload)
			case event.Op&fsnotify.Remove != 0:
				slog.Warn("config file removed", "path", w.path)
				go w.tryRewatch(ctx, fw, file, reload)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) tryRewatch(ctx context.Context, fw *fsnotify.Watcher, file string, reload func()) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	dir := filepath.Dir(w.path)
	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(w.path); err != nil {
				continue
			}
			if err := fw.Add(dir); err != nil {
				continue
			}
			slog.Info("re-established watch on config file", "path", w.path)
			reload()
			return
		}
	}
	slog.Warn("failed to re-establish watch on config file", "path", w.path)
}

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		return err
	}
	return nil
}
