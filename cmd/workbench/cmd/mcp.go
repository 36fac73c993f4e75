package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/logging"
	"github.com/Chili6666/iclaude-workbench/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve tasks and plans to MCP clients over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools: list_tasks, list_plans, search_plans, get_plan and
list_workspace_folders. Resources: workbench://tasks, workbench://plans and
plan://{id}.

The server uses the daemon when it is running and watches the files itself
otherwise. stdout carries only protocol messages; logs go to
~/.iclaude-workbench/logs/mcp.log.`,
		Example: `  # Register with an MCP client
  claude mcp add workbench -- workbench mcp`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport (stdio)")
	return cmd
}

func runMCP(ctx context.Context, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if debugMode {
		level = "debug"
	}
	logger, cleanup, err := logging.SetupStdioSafe(level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmds, viaDaemon, release, err := commander(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start engine", slog.String("error", err.Error()))
		return err
	}
	defer release()
	logger.Info("mcp backend ready", slog.Bool("daemon", viaDaemon))

	srv, err := mcp.NewServer(cmds, mcp.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := srv.Serve(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
