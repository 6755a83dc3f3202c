package users

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/networkupstools/nutd/internal/logging"
)

// reloadDebounce coalesces the write+rename pairs many editors produce into
// a single reload, the same problem the teacher's FileWatcher debounces
// for Unraid's INI files.
const reloadDebounce = 200 * time.Millisecond

// Watcher reloads a Store whenever its backing file changes, grounded on
// daemon/services/collectors/filewatcher.go: fsnotify watches the
// containing directory (not the file itself, since editors often replace
// a file rather than write in place) and a debounce timer coalesces bursts
// of events into one Load call.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *Store
	path    string
}

// NewWatcher creates a Watcher for store backed by path. It does not start
// watching until Run is called.
func NewWatcher(store *Store, path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, store: store, path: abs}, nil
}

// Run loads the users file once, then watches for changes until ctx is
// canceled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	if err := w.store.Load(w.path); err != nil {
		logging.Error("users: initial load of %s failed: %v", w.path, err)
	} else {
		logging.Success("users: loaded %s", w.path)
	}

	var timer *time.Timer
	reload := func() {
		if err := w.store.Load(w.path); err != nil {
			logging.Error("users: reload of %s failed: %v", w.path, err)
			return
		}
		logging.Info("users: reloaded %s", w.path)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				abs = event.Name
			}
			if abs != w.path {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("users: watcher error: %v", err)
		}
	}
}
