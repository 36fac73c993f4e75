package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/config"
	"github.com/Chili6666/iclaude-workbench/internal/watcher"
	"github.com/Chili6666/iclaude-workbench/pkg/version"
)

// versionReport is the build info plus the watch setup this binary would
// use with the current configuration.
type versionReport struct {
	version.BuildInfo
	WatchBackend   string `json:"watch_backend,omitempty"`
	ConfigBackend  string `json:"config_backend,omitempty"`
	TasksRoot      string `json:"tasks_root,omitempty"`
	PlansRoot      string `json:"plans_root,omitempty"`
	ConfigError    string `json:"config_error,omitempty"`
}

func newVersionCmd() *cobra.Command {
	var jsonOutput bool
	var shortOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including git commit, build date and Go version,
followed by the watch backend and the task and plan roots the current
configuration resolves to.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if shortOutput {
				_, err := fmt.Fprintln(out, version.Short())
				return err
			}

			report := buildVersionReport()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return writeVersionReport(out, report)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")

	return cmd
}

// buildVersionReport never fails: a broken config only drops the
// environment fields.
func buildVersionReport() versionReport {
	report := versionReport{BuildInfo: version.GetInfo()}

	cfg, err := config.Load(configPath)
	if err != nil {
		report.ConfigError = err.Error()
		return report
	}
	report.ConfigBackend = cfg.Watch.Backend
	report.TasksRoot = cfg.TasksRoot()
	report.PlansRoot = cfg.PlansRoot()

	backend, err := watcher.NewBackend(watcher.Options{
		PollInterval: cfg.PollInterval(),
		Backend:      cfg.Watch.Backend,
		Logger:       slog.Default(),
	})
	if err != nil {
		report.ConfigError = err.Error()
		return report
	}
	report.WatchBackend = backend.Name()
	_ = backend.Close()
	return report
}

func writeVersionReport(w io.Writer, r versionReport) error {
	if _, err := fmt.Fprintln(w, version.String()); err != nil {
		return err
	}
	if r.ConfigError != "" {
		_, err := fmt.Fprintf(w, "  config:        %s\n", r.ConfigError)
		return err
	}
	_, err := fmt.Fprintf(w, "  watch backend: %s (configured: %s)\n  tasks root:    %s\n  plans root:    %s\n",
		r.WatchBackend, r.ConfigBackend, r.TasksRoot, r.PlansRoot)
	return err
}
