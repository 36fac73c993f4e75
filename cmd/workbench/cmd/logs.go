package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/logging"
	"github.com/Chili6666/iclaude-workbench/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
	source  string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View daemon and MCP server logs",
		Long: `View and tail the workbench log files.

By default, shows the last 50 lines of the daemon log. Use -f to follow
new log entries in real-time (like 'tail -f').

Log Sources:
  server  serve and daemon logs (~/.iclaude-workbench/logs/server.log)
  mcp     MCP stdio server logs (~/.iclaude-workbench/logs/mcp.log)
  all     Both sources merged by timestamp`,
		Example: `  workbench logs                    # Last 50 lines (daemon)
  workbench logs --source mcp       # MCP server logs
  workbench logs --source all -f    # Follow all logs in real-time
  workbench logs -n 100             # Last 100 lines
  workbench logs --level error      # Only error logs
  workbench logs --filter "reload"  # Filter by pattern`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file (overrides --source)")
	cmd.Flags().StringVar(&opts.source, "source", "server", "Log source: server, mcp, or all")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	if opts.level != "" && !logging.ValidLevel(opts.level) {
		return fmt.Errorf("invalid level %q (use: debug, info, warn, error)", opts.level)
	}

	logSource := logging.ParseLogSource(opts.source)

	paths, err := logging.FindLogFiles(logSource, opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:      opts.level,
		Pattern:    pattern,
		NoColor:    opts.noColor || ui.DetectNoColor() || !ui.IsTTY(stdout),
		ShowSource: len(paths) > 1,
	}, stdout)

	if len(paths) == 1 {
		_, _ = fmt.Fprintf(stderr, "Log file: %s\n", paths[0])
	} else {
		_, _ = fmt.Fprintf(stderr, "Log files: %s\n", strings.Join(paths, ", "))
	}
	if opts.follow {
		_, _ = fmt.Fprintf(stderr, "Following... (Ctrl+C to stop)\n")
	}
	_, _ = fmt.Fprintln(stderr, "---")

	if !opts.follow {
		entries, err := viewer.Tail(paths, opts.lines)
		if err != nil {
			return err
		}
		viewer.Print(entries)
		return nil
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.Follow(ctx, paths, entries)
	}()

	for {
		select {
		case entry := <-entries:
			_, _ = fmt.Fprintln(stdout, viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stderr, "\n---")
			_, _ = fmt.Fprintln(stderr, "Stopped.")
			return nil
		}
	}
}
