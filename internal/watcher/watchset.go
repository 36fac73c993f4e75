package watcher

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
)

// WatchSet owns the active watch handles of one aggregator. Every handle
// invokes the same onChange callback.
type WatchSet struct {
	backend  Backend
	onChange func()
	logger   *slog.Logger

	mu      sync.Mutex
	handles map[string]Handle
}

// NewWatchSet creates an empty watch set over backend.
func NewWatchSet(backend Backend, onChange func(), logger *slog.Logger) *WatchSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchSet{
		backend:  backend,
		onChange: onChange,
		logger:   logger,
		handles:  make(map[string]Handle),
	}
}

// Watch registers a watch on path. Failures are logged and otherwise ignored;
// the path simply receives no live updates. Returns whether a live watch is
// held for path afterwards.
func (w *WatchSet) Watch(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watchLocked(filepath.Clean(path))
}

// RebuildAll closes every held handle, then watches each path.
func (w *WatchSet) RebuildAll(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closeAllLocked()
	for _, p := range paths {
		w.watchLocked(filepath.Clean(p))
	}
}

// Reconcile brings the held handles in line with paths: handles for paths no
// longer wanted are closed, dead handles are replaced, and new paths are
// watched. Live handles for wanted paths are left untouched.
func (w *WatchSet) Reconcile(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wanted := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		wanted[filepath.Clean(p)] = struct{}{}
	}

	for path, h := range w.handles {
		if _, ok := wanted[path]; ok && h.Alive() {
			continue
		}
		_ = h.Close()
		delete(w.handles, path)
	}

	for _, p := range paths {
		w.watchLocked(filepath.Clean(p))
	}
}

// CloseAll releases every handle. Safe to call multiple times.
func (w *WatchSet) CloseAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeAllLocked()
}

// Paths returns the watched paths in sorted order.
func (w *WatchSet) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.handles))
	for p := range w.handles {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of held handles.
func (w *WatchSet) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.handles)
}

func (w *WatchSet) watchLocked(path string) bool {
	if h, ok := w.handles[path]; ok {
		if h.Alive() {
			return true
		}
		_ = h.Close()
		delete(w.handles, path)
	}

	h, err := w.backend.Watch(path, w.onChange)
	if err != nil {
		w.logger.Warn("failed to watch directory",
			slog.String("path", path),
			slog.String("backend", w.backend.Name()),
			slog.String("error", err.Error()))
		return false
	}
	w.handles[path] = h
	return true
}

func (w *WatchSet) closeAllLocked() {
	for path, h := range w.handles {
		_ = h.Close()
		delete(w.handles, path)
	}
}
