package watcher

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FSNotifyBackend multiplexes non-recursive directory watches over a single
// fsnotify.Watcher.
type FSNotifyBackend struct {
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	mu      sync.Mutex
	watches map[string]map[uint64]*fsHandle
	nextID  uint64
	stopCh  chan struct{}
	done    chan struct{}
	stopped bool
}

var _ Backend = (*FSNotifyBackend)(nil)

type fsHandle struct {
	backend  *FSNotifyBackend
	id       uint64
	path     string
	onChange func()

	mu     sync.Mutex
	alive  bool
	closed bool
}

// NewFSNotifyBackend creates a backend on top of fsnotify.
func NewFSNotifyBackend(logger *slog.Logger) (*FSNotifyBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	b := &FSNotifyBackend{
		fsw:     fsw,
		logger:  logger,
		watches: make(map[string]map[uint64]*fsHandle),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b, nil
}

// Name returns "fsnotify".
func (b *FSNotifyBackend) Name() string { return BackendFSNotify }

// Watch adds path to the underlying fsnotify watcher.
func (b *FSNotifyBackend) Watch(path string, onChange func()) (Handle, error) {
	path = filepath.Clean(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return nil, ErrClosed
	}

	if _, watched := b.watches[path]; !watched {
		if err := b.fsw.Add(path); err != nil {
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
		b.watches[path] = make(map[uint64]*fsHandle)
	}

	b.nextID++
	h := &fsHandle{
		backend:  b,
		id:       b.nextID,
		path:     path,
		onChange: onChange,
		alive:    true,
	}
	b.watches[path][h.id] = h
	return h, nil
}

// Close stops the event loop and closes the fsnotify watcher.
func (b *FSNotifyBackend) Close() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	close(b.stopCh)
	for _, handles := range b.watches {
		for _, h := range handles {
			h.markClosed()
		}
	}
	b.watches = make(map[string]map[uint64]*fsHandle)
	b.mu.Unlock()

	err := b.fsw.Close()
	<-b.done
	return err
}

func (b *FSNotifyBackend) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.stopCh:
			return
		case event, ok := <-b.fsw.Events:
			if !ok {
				return
			}
			b.handleEvent(event)
		case err, ok := <-b.fsw.Errors:
			if !ok {
				return
			}
			b.logger.Warn("fsnotify error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent notifies the handles of the directory containing the event and,
// when a watched directory itself goes away, the handles of that directory.
func (b *FSNotifyBackend) handleEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)
	gone := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	b.mu.Lock()
	var fire []func()
	for _, h := range b.watches[filepath.Dir(name)] {
		fire = append(fire, h.onChange)
	}
	if self, ok := b.watches[name]; ok {
		for _, h := range self {
			if gone {
				h.markDead()
			}
			fire = append(fire, h.onChange)
		}
		if gone {
			delete(b.watches, name)
			// Removing a deleted path fails on most platforms; the kernel
			// already dropped the watch.
			_ = b.fsw.Remove(name)
		}
	}
	b.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

func (b *FSNotifyBackend) release(h *fsHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handles, ok := b.watches[h.path]
	if !ok {
		return
	}
	delete(handles, h.id)
	if len(handles) == 0 {
		delete(b.watches, h.path)
		if !b.stopped {
			_ = b.fsw.Remove(h.path)
		}
	}
}

func (h *fsHandle) Path() string { return h.path }

func (h *fsHandle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive && !h.closed
}

func (h *fsHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.backend.release(h)
	return nil
}

func (h *fsHandle) markDead() {
	h.mu.Lock()
	h.alive = false
	h.mu.Unlock()
}

func (h *fsHandle) markClosed() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}
