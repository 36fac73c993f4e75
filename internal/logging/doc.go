// Package logging wires the workbench's slog loggers.
//
// Long-running surfaces (serve, daemon) write JSON lines to a rotating file
// under ~/.iclaude-workbench/logs and mirror them to a colored console
// handler on stderr. The MCP surface owns stdout, so it logs to file only.
// The Viewer reads those JSON files back for the logs command.
package logging
