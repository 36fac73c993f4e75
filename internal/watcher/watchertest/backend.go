// Package watchertest provides an in-memory watcher.Backend for tests.
package watchertest

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Chili6666/iclaude-workbench/internal/watcher"
)

// Backend is a watcher.Backend whose notifications are triggered manually.
type Backend struct {
	mu      sync.Mutex
	handles map[*Handle]struct{}
	fail    map[string]bool
	opened  int
	closed  bool
}

var _ watcher.Backend = (*Backend)(nil)

// Handle is a fake watch handle.
type Handle struct {
	backend  *Backend
	path     string
	onChange func()
	dead     bool
	closed   bool
}

// New creates an empty fake backend.
func New() *Backend {
	return &Backend{
		handles: make(map[*Handle]struct{}),
		fail:    make(map[string]bool),
	}
}

// Name returns "fake".
func (b *Backend) Name() string { return "fake" }

// Watch registers a fake handle unless FailOn was called for path.
func (b *Backend) Watch(path string, onChange func()) (watcher.Handle, error) {
	path = filepath.Clean(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, watcher.ErrClosed
	}
	if b.fail[path] {
		return nil, fmt.Errorf("watch %s: permission denied", path)
	}
	h := &Handle{backend: b, path: path, onChange: onChange}
	b.handles[h] = struct{}{}
	b.opened++
	return h, nil
}

// Close closes every handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for h := range b.handles {
		h.closed = true
	}
	b.handles = make(map[*Handle]struct{})
	return nil
}

// FailOn makes subsequent Watch calls for path fail.
func (b *Backend) FailOn(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[filepath.Clean(path)] = true
}

// Recover undoes FailOn for path.
func (b *Backend) Recover(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.fail, filepath.Clean(path))
}

// Fire invokes the callback of every open handle on path and reports how many
// handles were notified.
func (b *Backend) Fire(path string) int {
	path = filepath.Clean(path)

	b.mu.Lock()
	var fns []func()
	for h := range b.handles {
		if h.path == path && !h.dead {
			fns = append(fns, h.onChange)
		}
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Kill marks every handle on path as dead, as if the directory was removed.
func (b *Backend) Kill(path string) {
	path = filepath.Clean(path)

	b.mu.Lock()
	defer b.mu.Unlock()
	for h := range b.handles {
		if h.path == path {
			h.dead = true
		}
	}
}

// Open returns the sorted paths of open handles, one entry per handle.
func (b *Backend) Open() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	paths := make([]string, 0, len(b.handles))
	for h := range b.handles {
		paths = append(paths, h.path)
	}
	sort.Strings(paths)
	return paths
}

// Opened returns how many handles were created in total.
func (b *Backend) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Path returns the watched path.
func (h *Handle) Path() string { return h.path }

// Alive reports whether the handle is open and not killed.
func (h *Handle) Alive() bool {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	return !h.dead && !h.closed
}

// Close removes the handle from the backend.
func (h *Handle) Close() error {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	h.closed = true
	delete(h.backend.handles, h)
	return nil
}
