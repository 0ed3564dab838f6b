package template

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// DefaultReloadDelay batches bursts of editor writes into one reload.
const DefaultReloadDelay = 300 * time.Millisecond

// Watcher reloads a template library when files in its directory change.
type Watcher struct {
	fsys     afero.Fs
	dir      string
	delay    time.Duration
	onReload func(*Library, error)

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewWatcher starts watching dir. onReload receives every reload outcome,
// including failed ones, so callers can keep the last good library.
func NewWatcher(fsys afero.Fs, dir string, delay time.Duration, onReload func(*Library, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	return &Watcher{fsys: fsys, dir: dir, delay: delay, onReload: onReload, watcher: fw}, nil
}

// Run processes filesystem events until ctx is cancelled or the watcher
// is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isTemplateFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.onReload(nil, fmt.Errorf("watch error: %w", err))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	w.onReload(Load(w.fsys, w.dir))
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
