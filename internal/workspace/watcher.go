package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tonimelisma/notesync/internal/sync"
)

// Watch error backoff bounds.
const (
	watchErrInitBackoff = time.Second
	watchErrMaxBackoff  = 30 * time.Second
	watchErrBackoffMult = 2
)

// SaveFunc receives the content of a saved buffer.
type SaveFunc func(filename, content string) error

// FsWatcher is the subset of fsnotify.Watcher the Watcher uses.
type FsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// fsnotifyWatcher adapts *fsnotify.Watcher, whose channels are fields.
type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func (f *fsnotifyWatcher) Add(name string) error         { return f.w.Add(name) }
func (f *fsnotifyWatcher) Close() error                  { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }

func newFsnotifyWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &fsnotifyWatcher{w: w}, nil
}

// Watcher reports saved buffers in a workspace to a SaveFunc. With a
// non-zero debounce a file is reported once it has been quiet for that
// long; repeated saves of the same file collapse into one report.
type Watcher struct {
	dir      *Dir
	save     SaveFunc
	debounce time.Duration
	logger   *slog.Logger

	watcherFactory func() (FsWatcher, error)
	sleepFunc      func(ctx context.Context, d time.Duration) error
	nowFunc        func() time.Time
}

// NewWatcher creates a Watcher for dir.
func NewWatcher(dir *Dir, save SaveFunc, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		dir:            dir,
		save:           save,
		debounce:       debounce,
		logger:         logger,
		watcherFactory: newFsnotifyWatcher,
		sleepFunc:      timeSleep,
		nowFunc:        time.Now,
	}
}

// Run watches until ctx is canceled. Saves still waiting for their
// debounce window are flushed before returning.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := w.watcherFactory()
	if err != nil {
		return fmt.Errorf("workspace: creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir.Root()); err != nil {
		return fmt.Errorf("workspace: watching %s: %w", w.dir.Root(), err)
	}

	w.logger.Info("workspace watcher started",
		slog.String("dir", w.dir.Root()),
		slog.Duration("debounce", w.debounce),
	)

	return w.loop(ctx, fw)
}

func (w *Watcher) loop(ctx context.Context, fw FsWatcher) error {
	pending := make(map[string]time.Time)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	rearm := func() {
		timer.Stop()

		if next, ok := earliest(pending); ok {
			timer.Reset(max(next.Sub(w.nowFunc()), 0))
		}
	}

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			for name := range pending {
				w.report(name)
			}

			return nil

		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}

			name, ok := w.relevant(ev)
			if !ok {
				continue
			}

			errBackoff = watchErrInitBackoff

			if w.debounce <= 0 {
				w.report(name)
				continue
			}

			pending[name] = w.nowFunc().Add(w.debounce)
			rearm()

		case watchErr, ok := <-fw.Errors():
			if !ok {
				return nil
			}

			w.logger.Warn("workspace watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			if err := w.sleepFunc(ctx, errBackoff); err != nil {
				continue
			}

			errBackoff = min(errBackoff*watchErrBackoffMult, watchErrMaxBackoff)

		case <-timer.C:
			now := w.nowFunc()

			for name, due := range pending {
				if !due.After(now) {
					delete(pending, name)
					w.report(name)
				}
			}

			rearm()
		}
	}
}

// relevant returns the buffer filename an event refers to, or false for
// events that are not saves of a note file.
func (w *Watcher) relevant(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}

	if filepath.Dir(ev.Name) != filepath.Clean(w.dir.Root()) {
		return "", false
	}

	name := filepath.Base(ev.Name)
	if isIgnored(name) || w.dir.isPartial(name) {
		return "", false
	}

	return name, true
}

// report reads the file and passes it to the save callback.
func (w *Watcher) report(name string) {
	if w.dir.isPartial(name) {
		return
	}

	data, err := os.ReadFile(w.dir.Path(name))
	if err != nil {
		w.logger.Debug("workspace: skipping unreadable file",
			slog.String("name", name), slog.String("error", err.Error()))
		return
	}

	err = w.save(name, string(data))

	switch {
	case err == nil:
	case errors.Is(err, sync.ErrUnknownNote):
		w.logger.Debug("workspace: file belongs to no note", slog.String("name", name))
	default:
		w.logger.Warn("workspace: save failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}

func earliest(pending map[string]time.Time) (time.Time, bool) {
	var (
		first time.Time
		found bool
	)

	for _, due := range pending {
		if !found || due.Before(first) {
			first, found = due, true
		}
	}

	return first, found
}

// timeSleep waits for d or until ctx is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
