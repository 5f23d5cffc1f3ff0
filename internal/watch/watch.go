// Package watch rebuilds a script whenever it changes on disk.
//
// The watcher observes the script's directory rather than the file itself,
// so editors that save by writing a temp file and renaming it over the
// original are still seen. Bursts of events are debounced into one reload.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a reload fires.
const DefaultDebounce = 100 * time.Millisecond

// ErrAlreadyWatching is returned by a second call to Watch.
var ErrAlreadyWatching = errors.New("watcher already used")

// Config configures a Watcher.
type Config struct {
	// Path is the script file to watch.
	Path string

	// Debounce is the quiet period after the last change before the
	// reload runs (default DefaultDebounce).
	Debounce time.Duration

	// Logger receives watcher diagnostics (default slog.Default()).
	Logger *slog.Logger
}

// ReloadFunc is called with the watched path after each change.
// An error is logged and watching continues.
type ReloadFunc func(ctx context.Context, path string) error

// Watcher watches one script file. A Watcher is single-use.
type Watcher struct {
	path     string
	base     string
	debounce time.Duration
	logger   *slog.Logger
	fs       *fsnotify.Watcher
	used     bool
}

// New creates a watcher for cfg.Path. The file must exist.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch: path is required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("watch: %s is a directory", cfg.Path)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		base:     filepath.Base(abs),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		fs:       fs,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Watch calls reload once immediately, then again after every debounced
// change to the file, until ctx is cancelled. It returns nil on
// cancellation and releases the underlying watcher in every case.
func (w *Watcher) Watch(ctx context.Context, reload ReloadFunc) error {
	if w.used {
		return ErrAlreadyWatching
	}
	w.used = true
	defer w.fs.Close()

	w.logger.Info("watching script", "path", w.path, "debounce_ms", w.debounce.Milliseconds())
	w.run(ctx, reload)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("script changed", "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			if _, err := os.Stat(w.path); err != nil {
				// Removed, or mid-rename; the next create event reloads.
				w.logger.Debug("script missing, waiting", "error", err)
				continue
			}
			w.run(ctx, reload)
		}
	}
}

func (w *Watcher) run(ctx context.Context, reload ReloadFunc) {
	if err := reload(ctx, w.path); err != nil {
		w.logger.Error("reload failed", "path", w.path, "error", err)
	}
}

// relevant reports whether event touches the watched file's contents.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != w.base {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
