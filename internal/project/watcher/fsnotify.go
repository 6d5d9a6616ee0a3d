package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSNotifyWatcher implements Watcher on top of fsnotify. Each watched file
// is observed through its parent directory, which is registered with
// fsnotify while at least one of its files is watched.
type FSNotifyWatcher struct {
	fsw *fsnotify.Watcher

	mu     sync.RWMutex
	dirs   map[string]map[string]struct{} // directory -> watched base names
	closed bool

	events chan Event
	errors chan error

	delivered atomic.Int64
	failed    atomic.Int64

	done    chan struct{}
	stopped chan struct{}
}

// NewFSNotifyWatcher creates a watcher with no files.
func NewFSNotifyWatcher(opts ...WatcherOption) (*FSNotifyWatcher, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}

	w := &FSNotifyWatcher{
		fsw:     fsw,
		dirs:    make(map[string]map[string]struct{}),
		events:  make(chan Event, cfg.BufferSize),
		errors:  make(chan error, cfg.BufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func splitPath(path string) (dir, name string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}

// Watch starts watching the file at path.
func (w *FSNotifyWatcher) Watch(path string) error {
	dir, name, err := splitPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}

	names, ok := w.dirs[dir]
	if _, watched := names[name]; watched {
		return ErrAlreadyWatching
	}
	if !ok {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		names = make(map[string]struct{})
		w.dirs[dir] = names
	}
	names[name] = struct{}{}
	return nil
}

// Unwatch stops watching the file at path.
func (w *FSNotifyWatcher) Unwatch(path string) error {
	dir, name, err := splitPath(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}

	names := w.dirs[dir]
	if _, watched := names[name]; !watched {
		return ErrNotWatching
	}
	delete(names, name)
	if len(names) > 0 {
		return nil
	}
	delete(w.dirs, dir)
	return w.fsw.Remove(dir)
}

// IsWatching reports whether the file at path is watched.
func (w *FSNotifyWatcher) IsWatching(path string) bool {
	dir, name, err := splitPath(path)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.dirs[dir][name]
	return ok
}

func (w *FSNotifyWatcher) Events() <-chan Event { return w.events }
func (w *FSNotifyWatcher) Errors() <-chan error { return w.errors }

// Counts returns the number of delivered events and reported errors.
func (w *FSNotifyWatcher) Counts() (events, errs int64) {
	return w.delivered.Load(), w.failed.Load()
}

// Close stops the watcher and closes its channels.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	<-w.stopped
	close(w.events)
	close(w.errors)
	return w.fsw.Close()
}

func (w *FSNotifyWatcher) loop() {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

// handle forwards an fsnotify event when it names a watched file.
func (w *FSNotifyWatcher) handle(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}
	path := filepath.Clean(ev.Name)

	w.mu.RLock()
	_, watched := w.dirs[filepath.Dir(path)][filepath.Base(path)]
	w.mu.RUnlock()
	if !watched {
		return
	}

	select {
	case w.events <- Event{Path: path, Op: op, Timestamp: time.Now()}:
		w.delivered.Add(1)
	default:
		w.sendError(fmt.Errorf("%w: %s", ErrEventDropped, path))
	}
}

// convertOp maps fsnotify operations. Chmod never changes content and is
// dropped.
func convertOp(op fsnotify.Op) Op {
	var out Op
	for from, to := range map[fsnotify.Op]Op{
		fsnotify.Create: OpCreate,
		fsnotify.Write:  OpWrite,
		fsnotify.Remove: OpRemove,
		fsnotify.Rename: OpRename,
	} {
		if op.Has(from) {
			out |= to
		}
	}
	return out
}

func (w *FSNotifyWatcher) sendError(err error) {
	w.failed.Add(1)
	select {
	case w.errors <- err:
	default:
	}
}

var _ Watcher = (*FSNotifyWatcher)(nil)
