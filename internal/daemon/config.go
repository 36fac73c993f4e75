// Package daemon serves the bridge over a Unix socket so CLI commands and
// editor integrations can share one set of watchers.
//
// The wire format is newline-delimited JSON-RPC 2.0. Every method except
// subscribe is one request and one response per connection; subscribe keeps
// the connection open and streams notifications.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path.
	// Default: ~/.iclaude-workbench/daemon.sock
	SocketPath string

	// PIDPath stores the daemon's process ID.
	// Default: ~/.iclaude-workbench/daemon.pid
	PIDPath string

	// LockPath guards against two daemons sharing one socket.
	// Default: ~/.iclaude-workbench/daemon.lock
	LockPath string

	// Timeout bounds a single request/response exchange.
	// Default: 10s
	Timeout time.Duration

	// ShutdownGracePeriod is how long Serve waits for open connections.
	// Default: 5s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns the standard paths under ~/.iclaude-workbench.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".iclaude-workbench")

	return Config{
		SocketPath:          filepath.Join(dir, "daemon.sock"),
		PIDPath:             filepath.Join(dir, "daemon.pid"),
		LockPath:            filepath.Join(dir, "daemon.lock"),
		Timeout:             10 * time.Second,
		ShutdownGracePeriod: 5 * time.Second,
	}
}

// WithSocket returns a copy of c using socketPath. The pid and lock files
// move next to the socket so a custom socket gets its own daemon.
func (c Config) WithSocket(socketPath string) Config {
	if socketPath == "" || socketPath == c.SocketPath {
		return c
	}
	base := socketPath
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	c.SocketPath = socketPath
	c.PIDPath = base + ".pid"
	c.LockPath = base + ".lock"
	return c
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.LockPath == "" {
		return fmt.Errorf("lock path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directories of the socket, pid and lock files.
func (c Config) EnsureDir() error {
	seen := make(map[string]bool)
	for _, p := range []string{c.SocketPath, c.PIDPath, c.LockPath} {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
