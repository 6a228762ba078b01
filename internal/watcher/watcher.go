package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/raglet/raglet/internal/filter"
)

// DefaultDebounce batches bursts of events (a save-all, a git checkout)
// into one notification.
const DefaultDebounce = 2 * time.Second

// Watcher watches a directory tree and invokes a callback after file
// changes settle. Directories created during the watch are picked up.
type Watcher struct {
	fs       *fsnotify.Watcher
	matcher  *filter.Matcher
	root     string
	debounce time.Duration
	onChange func()
	log      *slog.Logger
	done     chan struct{}
}

// New builds a watcher over root. Events for files the filter would not
// index are ignored. onChange runs on the watcher's goroutine; keep it
// short.
func New(root string, cfg *filter.Config, debounce time.Duration, onChange func(), log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	matcher, err := filter.Compile(cfg)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		fs:       fsw,
		matcher:  matcher,
		root:     filepath.ToSlash(abs),
		debounce: debounce,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}
	if err := w.addTree(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers root and every non-excluded subdirectory.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are dropped from the watch, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && w.matcher.ExcludesDir(filepath.ToSlash(rel), d.Name()) {
			return filepath.SkipDir
		}
		if addErr := w.fs.Add(path); addErr != nil {
			w.log.Warn("watch failed", "dir", path, "error", addErr)
		}
		return nil
	})
}

// Run consumes events until the context is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("file change", "op", event.Op.String(), "path", event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			w.onChange()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// relevant filters events down to indexed files, and keeps the directory
// watch list current as subtrees appear.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	path := filepath.ToSlash(event.Name)
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)

	// A new directory needs its own watch; files may follow into it.
	if event.Op.Has(fsnotify.Create) {
		if fi, statErr := os.Stat(event.Name); statErr == nil && fi.IsDir() {
			if !w.matcher.ExcludesDir(rel, base) {
				_ = w.addTree(event.Name)
			}
			return false
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	return w.matcher.Admits(rel, base, ext)
}

// Close stops the watch. Safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
