package logging

import (
	"log/slog"
)

// SetupStdioSafe initializes logging for the MCP stdio server.
//
// stdout carries the JSON-RPC stream exclusively, and some clients treat
// stderr output as a failed handshake, so records go to MCPLogPath only.
func SetupStdioSafe(level string) (*slog.Logger, func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      MCPLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("stdio-safe logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return logger, cleanup, nil
}
