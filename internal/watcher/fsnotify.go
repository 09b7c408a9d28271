package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// Option configures an FSNotifyWatcher.
type Option func(*FSNotifyWatcher)

// WithFilter drops events the filter rejects.
func WithFilter(filter func(Event) bool) Option {
	return func(w *FSNotifyWatcher) {
		w.filter = filter
	}
}

// WithBufferSize sets the event channel buffer size.
func WithBufferSize(n int) Option {
	return func(w *FSNotifyWatcher) {
		if n > 0 {
			w.bufSize = n
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(log logr.Logger) Option {
	return func(w *FSNotifyWatcher) {
		w.log = log
	}
}

// FSNotifyWatcher implements Watcher using fsnotify.
type FSNotifyWatcher struct {
	mu sync.RWMutex

	watcher *fsnotify.Watcher
	paths   map[string]bool
	filter  func(Event) bool
	bufSize int
	log     logr.Logger

	events chan Event
	errors chan error

	dropped atomic.Int64

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher: fsw,
		paths:   make(map[string]bool),
		bufSize: 100,
		log:     logr.Discard(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.events = make(chan Event, w.bufSize)
	w.errors = make(chan error, w.bufSize)

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Watch starts watching a path.
func (w *FSNotifyWatcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if w.paths[absPath] {
		return ErrAlreadyWatching
	}

	if err := w.watcher.Add(absPath); err != nil {
		return err
	}
	w.paths[absPath] = true
	w.log.V(1).Info("watching", "path", absPath)
	return nil
}

// Unwatch stops watching a path.
func (w *FSNotifyWatcher) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !w.paths[absPath] {
		return ErrNotWatching
	}
	if err := w.watcher.Remove(absPath); err != nil {
		return err
	}
	delete(w.paths, absPath)
	return nil
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()
	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

// WatchedPaths returns all watched paths.
func (w *FSNotifyWatcher) WatchedPaths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	return paths
}

// Dropped returns the number of events dropped on a full channel.
func (w *FSNotifyWatcher) Dropped() int64 {
	return w.dropped.Load()
}

func (w *FSNotifyWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.log.Error(err, "watcher error dropped")
			}
		}
	}
}

func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}

	event := Event{
		Path:      filepath.Clean(fsEvent.Name),
		Op:        op,
		Timestamp: time.Now(),
	}
	if w.filter != nil && !w.filter(event) {
		return
	}

	select {
	case w.events <- event:
	default:
		w.dropped.Add(1)
	}
}

// convertOp maps fsnotify operations; chmod-only events map to 0.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

var _ Watcher = (*FSNotifyWatcher)(nil)
