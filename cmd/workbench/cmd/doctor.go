package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/config"
	"github.com/Chili6666/iclaude-workbench/internal/daemon"
	"github.com/Chili6666/iclaude-workbench/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and diagnose issues",
		Long: `Run diagnostics to ensure the workbench can watch and read agent files.

Checks:
  - Tasks and plans roots exist and are directories
  - The state directory (~/.iclaude-workbench) is writable
  - File descriptor and inotify watch limits
  - The configured watch backend works
  - Every task file parses and matches the task schema

Use --verbose to list the offending task files.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  workbench doctor

  # Verbose output with details
  workbench doctor --verbose

  # JSON output for scripting
  workbench doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := newScanner(cfg, slog.Default())
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithScanner(sc),
	)

	results := checker.RunAll(ctx, preflight.Targets{
		TasksRoot:    cfg.TasksRoot(),
		PlansRoot:    cfg.PlansRoot(),
		StateDir:     config.StateDir(),
		WatchBackend: cfg.Watch.Backend,
		PollInterval: cfg.PollInterval(),
	})
	results = append(results, daemonCheck(cfg))

	if jsonOutput {
		return outputJSON(cmd, checker, results)
	}

	checker.PrintResults(results)

	if checker.HasCriticalFailures(results) {
		return &doctorError{message: "system check failed"}
	}
	return nil
}

// daemonCheck reports whether the daemon answers. Not running is fine.
func daemonCheck(cfg *config.Config) preflight.CheckResult {
	dcfg := daemonConfig(cfg)
	result := preflight.CheckResult{Name: "daemon", Status: preflight.StatusPass}

	if daemon.NewClient(dcfg).IsRunning() {
		result.Message = "running on " + dcfg.SocketPath
		return result
	}
	if daemon.NewPIDFile(dcfg.PIDPath).IsRunning() {
		result.Status = preflight.StatusWarn
		result.Message = "process alive but socket not answering"
		result.Details = "Run 'workbench daemon stop' and start it again"
		return result
	}
	result.Message = "not running (commands scan files directly)"
	return result
}

// doctorError is a custom error for doctor command failures.
type doctorError struct {
	message string
}

func (e *doctorError) Error() string {
	return e.message
}

// JSONOutput is the structure for JSON output.
type JSONOutput struct {
	Status   string            `json:"status"`
	Checks   []JSONCheckResult `json:"checks"`
	Warnings []string          `json:"warnings,omitempty"`
	Errors   []string          `json:"errors,omitempty"`
}

// JSONCheckResult is a single check result for JSON output.
type JSONCheckResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func outputJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	output := JSONOutput{
		Status: checker.SummaryStatus(results),
		Checks: make([]JSONCheckResult, len(results)),
	}

	for i, r := range results {
		output.Checks[i] = JSONCheckResult{
			Name:     r.Name,
			Status:   statusToString(r.Status),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}

		if r.IsCritical() {
			output.Errors = append(output.Errors, r.Name+": "+r.Message)
		} else if r.Status != preflight.StatusPass {
			output.Warnings = append(output.Warnings, r.Name+": "+r.Message)
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return err
	}
	if checker.HasCriticalFailures(results) {
		return &doctorError{message: "system check failed"}
	}
	return nil
}

func statusToString(s preflight.CheckStatus) string {
	switch s {
	case preflight.StatusPass:
		return "pass"
	case preflight.StatusWarn:
		return "warn"
	case preflight.StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}
