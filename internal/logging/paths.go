package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.iclaude-workbench/logs, or a directory under the
// temp dir when the home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".iclaude-workbench", "logs")
	}
	return filepath.Join(home, ".iclaude-workbench", "logs")
}

// DefaultLogPath is the log file of serve and the daemon.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// MCPLogPath is the log file of the MCP stdio server.
func MCPLogPath() string {
	return filepath.Join(DefaultLogDir(), "mcp.log")
}

// LogSource selects which log files the viewer reads.
type LogSource string

const (
	// LogSourceServer is the serve/daemon log (default).
	LogSourceServer LogSource = "server"
	// LogSourceMCP is the MCP stdio server log.
	LogSourceMCP LogSource = "mcp"
	// LogSourceAll merges every source.
	LogSourceAll LogSource = "all"
)

// ParseLogSource maps a flag value to a LogSource, defaulting to server.
func ParseLogSource(s string) LogSource {
	switch LogSource(s) {
	case LogSourceMCP:
		return LogSourceMCP
	case LogSourceAll:
		return LogSourceAll
	default:
		return LogSourceServer
	}
}

// FindLogFiles returns the existing log files for source. An explicit path
// takes precedence and must exist.
func FindLogFiles(source LogSource, explicit string) ([]string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("log file not found: %s", explicit)
		}
		return []string{explicit}, nil
	}

	var candidates []string
	switch source {
	case LogSourceServer:
		candidates = []string{DefaultLogPath()}
	case LogSourceMCP:
		candidates = []string{MCPLogPath()}
	case LogSourceAll:
		candidates = []string{DefaultLogPath(), MCPLogPath()}
	default:
		return nil, fmt.Errorf("unknown log source: %s (use: server, mcp, all)", source)
	}

	var found []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no log files found for source %q (checked %v); run 'workbench serve' or 'workbench mcp' first", source, candidates)
	}
	return found, nil
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
