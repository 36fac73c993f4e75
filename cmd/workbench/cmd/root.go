// Package cmd provides the CLI commands for the workbench.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/config"
	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
	"github.com/Chili6666/iclaude-workbench/internal/logging"
	"github.com/Chili6666/iclaude-workbench/pkg/version"
)

// Persistent flags
var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the workbench CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workbench",
		Short: "Live view of agent task lists and plans",
		Long: `workbench watches the task and plan files written by agentic coding
sessions under ~/.claude and keeps an up-to-date view of them.

Run 'workbench daemon start' once, then use 'workbench board' for a live
board, or 'workbench tasks' and 'workbench plans' for a one-shot listing.
Every command also works without the daemon by scanning the files directly.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("workbench version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.iclaude-workbench/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newTasksCmd())
	cmd.AddCommand(newPlansCmd())
	cmd.AddCommand(newFoldersCmd())
	cmd.AddCommand(newOpenCmd())
	cmd.AddCommand(newCopyCmd())
	cmd.AddCommand(newBoardCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the default logger. Short-lived commands only log
// warnings to stderr; serve and mcp replace the logger with their own.
func startLogging(_ *cobra.Command, _ []string) error {
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
		return nil
	}

	slog.SetDefault(logging.SetupConsole("warn"))
	return nil
}

// stopLogging flushes the debug log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints any error in CLI form.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, werrors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads the configuration selected by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		code := werrors.ErrCodeConfigInvalid
		var pe *config.ParseError
		if errors.As(err, &pe) {
			code = werrors.ErrCodeConfigParse
		}
		return nil, werrors.New(code, err.Error(), err).
			WithSuggestion("Check the file with 'workbench config show' or recreate it with 'workbench config init --force'")
	}
	return cfg, nil
}
