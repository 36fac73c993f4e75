package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Backend names accepted by NewBackend.
const (
	BackendAuto     = "auto"
	BackendFSNotify = "fsnotify"
	BackendPolling  = "polling"
)

// ErrClosed is returned when watching through a closed backend.
var ErrClosed = errors.New("watcher: backend closed")

// Backend registers non-recursive watches on single directories.
type Backend interface {
	// Watch starts watching path. onChange is invoked on every change
	// notification for the directory or its immediate entries. It may run on
	// any goroutine and must not block for long.
	Watch(path string, onChange func()) (Handle, error)

	// Name returns the backend type ("fsnotify" or "polling").
	Name() string

	// Close releases every handle and the backend itself.
	// Safe to call multiple times.
	Close() error
}

// Handle is one active watch returned by Backend.Watch.
type Handle interface {
	// Path returns the watched directory.
	Path() string

	// Alive reports whether the handle still receives notifications.
	// A handle dies when its directory is removed or renamed.
	Alive() bool

	// Close stops the watch. Safe to call multiple times.
	Close() error
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait after the last change before reloading.
	// Default: 100ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode (fallback).
	// Default: 2s
	PollInterval time.Duration

	// Backend selects the watch backend: "auto", "fsnotify" or "polling".
	// Default: "auto"
	Backend string

	// Logger receives watch diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 100 * time.Millisecond,
		PollInterval:   2 * time.Second,
		Backend:        BackendAuto,
	}
}

// Validate validates the options and returns an error if invalid.
func (o Options) Validate() error {
	if o.DebounceWindow < 0 {
		return fmt.Errorf("debounce window must not be negative: %s", o.DebounceWindow)
	}
	if o.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative: %s", o.PollInterval)
	}
	switch o.Backend {
	case "", BackendAuto, BackendFSNotify, BackendPolling:
		return nil
	default:
		return fmt.Errorf("unknown watch backend %q", o.Backend)
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.Backend == "" {
		o.Backend = defaults.Backend
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// NewBackend creates the backend selected by opts.Backend.
// "auto" tries fsnotify first and falls back to polling if it fails.
func NewBackend(opts Options) (Backend, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	switch opts.Backend {
	case BackendPolling:
		return NewPollingBackend(opts.PollInterval, opts.Logger), nil
	case BackendFSNotify:
		return NewFSNotifyBackend(opts.Logger)
	default:
		b, err := NewFSNotifyBackend(opts.Logger)
		if err == nil {
			return b, nil
		}
		opts.Logger.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()),
			slog.Duration("interval", opts.PollInterval))
		return NewPollingBackend(opts.PollInterval, opts.Logger), nil
	}
}
