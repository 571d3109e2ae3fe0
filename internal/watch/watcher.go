// Package watch regenerates output whenever a rebuild-trigger path changes.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// DefaultDebounce collapses bursts of metadata writes (a commit touches HEAD,
// the index, logs and refs) into one regeneration.
const DefaultDebounce = 500 * time.Millisecond

// Watcher is a rebuild-trigger registrar backed by fsnotify. Registered
// files are watched through their parent directory, since the tool replaces
// metadata files by renaming a lock file over them.
type Watcher struct {
	Debounce time.Duration
	Log      logr.Logger

	fsw      *fsnotify.Watcher
	triggers map[string]struct{}
	dirs     map[string]struct{}
	watched  map[string]struct{}
}

// New creates a Watcher.
func New(log logr.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		Debounce: DefaultDebounce,
		Log:      log,
		fsw:      fsw,
		triggers: make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		watched:  make(map[string]struct{}),
	}, nil
}

// Register starts watching path.
func (w *Watcher) Register(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	w.triggers[path] = struct{}{}
	dir := filepath.Dir(path)
	if info.IsDir() {
		w.dirs[path] = struct{}{}
		dir = path
	}
	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.watched[dir] = struct{}{}
	return nil
}

// Reset forgets the registered triggers. Directory watches stay in place and
// are reused if the same paths are registered again.
func (w *Watcher) Reset() {
	w.triggers = make(map[string]struct{})
	w.dirs = make(map[string]struct{})
}

// Triggers reports how many paths are registered.
func (w *Watcher) Triggers() int { return len(w.triggers) }

// relevant reports whether an event on name affects a trigger: the path itself
// or any entry of a watched trigger directory.
func (w *Watcher) relevant(name string) bool {
	name = filepath.Clean(name)
	if _, ok := w.triggers[name]; ok {
		return true
	}
	_, ok := w.dirs[filepath.Dir(name)]
	return ok
}

// Run calls regenerate once, then again after every debounced change to a
// registered trigger, until ctx is done. regenerate is expected to re-register
// the current trigger set; Run resets the set before each call.
//
// Errors from regenerate are logged and watching continues, so a transient
// failure (for example a half-finished rebase) recovers on the next change.
func (w *Watcher) Run(ctx context.Context, regenerate func(context.Context) error) error {
	w.Reset()
	if err := regenerate(ctx); err != nil {
		return err
	}
	w.Log.Info("watching rebuild triggers", "paths", w.Triggers())

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.Log.V(2).Info("trigger changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			prevTriggers, prevDirs := w.triggers, w.dirs
			w.Reset()
			if err := regenerate(ctx); err != nil {
				// Keep watching the last good set alongside whatever was registered.
				for p := range prevTriggers {
					w.triggers[p] = struct{}{}
				}
				for d := range prevDirs {
					w.dirs[d] = struct{}{}
				}
				w.Log.Error(err, "regeneration failed")
				continue
			}
			w.Log.Info("regenerated", "paths", w.Triggers())

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.Log.Error(err, "watcher error")
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
