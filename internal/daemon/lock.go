package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another daemon holds the lock")

// Lock is a cross-process exclusive lock that keeps a second daemon from
// taking over a live socket.
type Lock struct {
	flock  *flock.Flock
	locked bool
}

// NewLock creates a lock on path. The file is created on first acquire.
func NewLock(path string) *Lock {
	return &Lock{flock: flock.New(path)}
}

// Acquire takes the lock without blocking. It returns ErrAlreadyRunning
// when another process holds it.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	l.locked = true
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Held reports whether this Lock holds the file lock.
func (l *Lock) Held() bool {
	return l.locked
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.flock.Path()
}
