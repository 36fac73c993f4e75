package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PollingBackend watches directories by periodically listing their entries.
// Used as a fallback when fsnotify is not available or fails.
type PollingBackend struct {
	interval time.Duration
	logger   *slog.Logger
	mu       sync.Mutex
	handles  map[*pollHandle]struct{}
	stopped  bool
}

var _ Backend = (*PollingBackend)(nil)

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

type pollHandle struct {
	backend  *PollingBackend
	path     string
	onChange func()
	stopCh   chan struct{}
	done     chan struct{}

	mu     sync.Mutex
	state  map[string]fileSnapshot
	alive  bool
	closed bool
}

// NewPollingBackend creates a polling backend with the given interval.
func NewPollingBackend(interval time.Duration, logger *slog.Logger) *PollingBackend {
	if interval <= 0 {
		interval = DefaultOptions().PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PollingBackend{
		interval: interval,
		logger:   logger,
		handles:  make(map[*pollHandle]struct{}),
	}
}

// Name returns "polling".
func (p *PollingBackend) Name() string { return BackendPolling }

// Watch records a baseline listing of path and starts polling it.
func (p *PollingBackend) Watch(path string, onChange func()) (Handle, error) {
	path = filepath.Clean(path)

	state, err := snapshotDir(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil, ErrClosed
	}

	h := &pollHandle{
		backend:  p,
		path:     path,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		state:    state,
		alive:    true,
	}
	p.handles[h] = struct{}{}
	go h.run(p.interval)
	return h, nil
}

// Close stops every polling goroutine.
func (p *PollingBackend) Close() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	handles := make([]*pollHandle, 0, len(p.handles))
	for h := range p.handles {
		handles = append(handles, h)
	}
	p.handles = make(map[*pollHandle]struct{})
	p.mu.Unlock()

	for _, h := range handles {
		h.stop()
	}
	return nil
}

func (h *pollHandle) run(interval time.Duration) {
	defer close(h.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			if changed, gone := h.detectChanges(); changed {
				h.onChange()
				if gone {
					return
				}
			}
		}
	}
}

// detectChanges compares the current listing with the previous one.
// gone is true when the directory itself can no longer be read.
func (h *pollHandle) detectChanges() (changed, gone bool) {
	current, err := snapshotDir(h.path)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false, true
	}
	if err != nil {
		h.backend.logger.Debug("polled directory unavailable",
			slog.String("path", h.path),
			slog.String("error", err.Error()))
		h.alive = false
		return true, true
	}

	changed = len(current) != len(h.state)
	if !changed {
		for name, snap := range current {
			prev, ok := h.state[name]
			if !ok || prev != snap {
				changed = true
				break
			}
		}
	}
	h.state = current
	return changed, false
}

func (h *pollHandle) Path() string { return h.path }

func (h *pollHandle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive && !h.closed
}

func (h *pollHandle) Close() error {
	h.backend.mu.Lock()
	delete(h.backend.handles, h)
	h.backend.mu.Unlock()

	h.stop()
	return nil
}

func (h *pollHandle) stop() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.stopCh)
	h.mu.Unlock()
}

// snapshotDir lists the immediate entries of dir.
func snapshotDir(dir string) (map[string]fileSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	state := make(map[string]fileSnapshot, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue // Removed between listing and stat
		}
		state[e.Name()] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   e.IsDir(),
		}
	}
	return state, nil
}
