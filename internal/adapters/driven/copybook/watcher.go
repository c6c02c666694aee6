package copybook

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Chandra-mohn/coqu/internal/logger"
)

// Watcher marks loaded source files stale when they change on disk.
// Nothing is reloaded automatically: queries keep serving the loaded
// snapshot and /reload picks up the new content. This backs the
// workspace reload policy without any background mutation of Programs.
type Watcher struct {
	mu      sync.Mutex
	fs      *fsnotify.Watcher
	onStale func(path string)
	done    chan struct{}
}

// NewWatcher starts a watcher delivering stale notifications through
// onStale. The callback runs on the watcher goroutine and must only
// flip a flag.
func NewWatcher(onStale func(path string)) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fs: fs, onStale: onStale, done: make(chan struct{})}
	go w.loop(fs)
	return w, nil
}

// Add registers a source file.
func (w *Watcher) Add(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs == nil {
		return
	}
	if err := w.fs.Add(path); err != nil {
		logger.Debug("watcher: %s: %v", path, err)
	}
}

// Remove deregisters a source file.
func (w *Watcher) Remove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs != nil {
		w.fs.Remove(path)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.mu.Lock()
	fs := w.fs
	w.fs = nil
	w.mu.Unlock()
	if fs != nil {
		fs.Close()
		<-w.done
	}
}

func (w *Watcher) loop(fs *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				logger.Debug("watcher: %s changed (%s)", ev.Name, ev.Op)
				w.onStale(ev.Name)
			}
		case _, ok := <-fs.Errors:
			if !ok {
				return
			}
		}
	}
}
