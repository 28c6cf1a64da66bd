// Package watcher reports changes to the dataset file so that indexes can
// be rebuilt when the extraction pipeline rewrites it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.DatasetWatcher = (*Watcher)(nil)

// ErrWatcherFailed indicates the filesystem watcher failed to initialise.
var ErrWatcherFailed = errors.New("failed to initialise filesystem watcher")

// DefaultDebounce is how long the file must stay quiet before a change is
// reported. Writers such as pandas flush a CSV in several writes.
const DefaultDebounce = 2 * time.Second

// Watcher watches one file. The parent directory is watched so that files
// replaced by rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// New creates a watcher for path. A zero debounce selects DefaultDebounce.
func New(path string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, debounce: debounce, watcher: w}, nil
}

// Run calls onChange after each quiet period following a change to the
// file, until ctx is done. Calls to onChange are never concurrent; changes
// that arrive while it runs are coalesced into one more call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	defer w.watcher.Close()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending bool
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("watcher: %s %s", event.Op, event.Name)
			pending = true
			stopTimer()
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			if !pending {
				continue
			}
			pending = false
			onChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops watching. Run returns once its context is done or the
// watcher is closed.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
