// Package watch re-runs a handler whenever a program file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/plc-lang/plc/internal/cli"
)

// Handler processes the watched file. It runs on the watcher's goroutine, so
// changes made while it runs are coalesced into one later call.
type Handler func(ctx context.Context, path string)

// Watcher watches a single file. The parent directory is watched instead of
// the file itself so that editors which save by renaming a temporary file
// are still observed.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *cli.Logger
	fs       *fsnotify.Watcher
}

// New starts watching path. Events closer together than debounce trigger a
// single handler call.
func New(path string, debounce time.Duration, log *cli.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	if log == nil {
		log = cli.NewLoggerTo(nil, false, false)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch: add %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, debounce: debounce, log: log, fs: fs}, nil
}

// Path returns the absolute path being watched
func (w *Watcher) Path() string { return w.path }

// Close stops watching. Run returns once the watcher is closed.
func (w *Watcher) Close() error { return w.fs.Close() }

// Run calls h once immediately and then after every change to the file,
// until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	defer w.fs.Close()

	h(ctx, w.path)

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
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("watch: %s", ev)
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
			w.log.Warn("watch: %v", err)

		case <-fire:
			fire = nil
			w.log.Info("%s changed", filepath.Base(w.path))
			h(ctx, w.path)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create) != 0
}
