package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/getmockd/mockd-chaos/pkg/logging"
)

// DefaultDebounce is how long the watcher waits for a burst of file events to
// settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc receives a freshly loaded file set. Returning an error rejects it.
type ReloadFunc func(*File) error

// Watcher reloads route files when they change on disk.
//
// fsnotify is not recursive: the watcher follows the directories of the load
// roots and of every file it has read, so files created in a brand new
// subdirectory are picked up on the next change to a watched directory.
type Watcher struct {
	paths    []string
	reload   ReloadFunc
	observe  func(routes int, err error)
	log      *slog.Logger
	debounce time.Duration

	fs      *fsnotify.Watcher
	watched map[string]bool
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithWatchLogger sets the logger for reload outcomes.
func WithWatchLogger(log *slog.Logger) WatchOption {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadObserver is called after every reload attempt with the number of
// routes loaded and the outcome.
func WithReloadObserver(fn func(routes int, err error)) WatchOption {
	return func(w *Watcher) { w.observe = fn }
}

// NewWatcher watches the files Load(paths...) reads and calls reload with the
// result whenever they change.
func NewWatcher(paths []string, reload ReloadFunc, opts ...WatchOption) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoConfig
	}
	if reload == nil {
		return nil, errors.New("reload func cannot be nil")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		paths:    append([]string(nil), paths...),
		reload:   reload,
		log:      logging.Nop(),
		debounce: DefaultDebounce,
		fs:       fsw,
		watched:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range w.paths {
		if err := w.watchDir(rootDir(p)); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run processes file events until ctx is done. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

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
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.log.Debug("route file changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("route file watch error", "error", err)
		case <-fire:
			fire = nil
			_ = w.Reload()
		}
	}
}

// Reload loads the watched files and hands them to the reload func. On error
// the previous routes stay active.
func (w *Watcher) Reload() error {
	f, err := Load(w.paths...)
	if err == nil {
		err = w.reload(f)
	}

	routes := 0
	if f != nil {
		routes = len(f.Routes)
	}
	if w.observe != nil {
		w.observe(routes, err)
	}
	if err != nil {
		w.log.Error("route reload rejected, keeping previous routes", "error", err)
		return err
	}

	w.log.Info("routes reloaded", "routes", routes, "files", len(f.Sources))
	for _, src := range f.Sources {
		if err := w.watchDir(filepath.Dir(src)); err != nil {
			w.log.Warn("cannot watch route directory", "dir", filepath.Dir(src), "error", err)
		}
	}
	return nil
}

func (w *Watcher) watchDir(dir string) error {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if w.watched[dir] {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.watched[dir] = true
	return nil
}

// rootDir returns the directory to watch for a Load argument.
func rootDir(p string) string {
	if strings.ContainsAny(p, "*?[{") {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
		return filepath.FromSlash(base)
	}
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return filepath.Dir(p)
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return isRouteFile(ev.Name)
}
