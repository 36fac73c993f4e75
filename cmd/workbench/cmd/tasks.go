package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
	"github.com/Chili6666/iclaude-workbench/internal/output"
	"github.com/Chili6666/iclaude-workbench/internal/task"
	"github.com/Chili6666/iclaude-workbench/internal/ui"
)

type tasksOptions struct {
	session    string
	status     string
	summary    bool
	jsonOutput bool
}

func newTasksCmd() *cobra.Command {
	var opts tasksOptions

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks across all sessions",
		Long: `List every task found under the tasks root, in session scan order.

Uses the daemon when it is running, otherwise scans the files directly.`,
		Example: `  # All tasks
  workbench tasks

  # Tasks still being worked on
  workbench tasks --status in_progress

  # One line per session
  workbench tasks --summary

  # Machine-readable
  workbench tasks --session 4f1c --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTasks(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.session, "session", "", "Only tasks of this session")
	cmd.Flags().StringVar(&opts.status, "status", "", "Only tasks with this status (pending|in_progress|completed)")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Show per-session progress instead of tasks")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runTasks(ctx context.Context, cmd *cobra.Command, opts tasksOptions) error {
	if opts.status != "" && !task.Status(opts.status).Valid() {
		return werrors.ValidationError("unknown status: "+opts.status, nil).
			WithSuggestion("Use pending, in_progress or completed")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cmds, _, release, err := commander(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer release()

	msg, err := cmds.Handle(ctx, bridge.Command{Type: bridge.CmdRequestTasks})
	if err != nil {
		return err
	}
	tasks := filterTasks(msg.Tasks, opts.session, task.Status(opts.status))

	out := output.New(cmd.OutOrStdout()).WithColor(useColor(cmd))

	if opts.summary {
		summaries := ui.Summarize(tasks)
		if opts.jsonOutput {
			return out.JSON(summaries)
		}
		printSummaries(out, summaries)
		return nil
	}

	if opts.jsonOutput {
		if tasks == nil {
			tasks = []task.Task{}
		}
		return out.JSON(tasks)
	}

	if len(tasks) == 0 {
		out.Status("", "No tasks found")
		return nil
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		subject := t.Subject
		if t.Status == task.StatusInProgress && t.ActiveForm != "" {
			subject = t.ActiveForm
		}
		rows = append(rows, []string{
			ui.StatusIcon(t.Status) + " " + string(t.Status),
			shortID(t.SessionID),
			t.ID,
			truncate(subject, 60),
			t.Owner,
		})
	}
	out.Table([]string{"STATUS", "SESSION", "ID", "SUBJECT", "OWNER"}, rows)
	out.Statusf("", "%d tasks", len(tasks))
	return nil
}

// filterTasks keeps tasks matching a session id prefix and a status. Empty
// filters match everything.
func filterTasks(tasks []task.Task, session string, status task.Status) []task.Task {
	var out []task.Task
	for _, t := range tasks {
		if session != "" && !strings.HasPrefix(t.SessionID, session) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out
}

func printSummaries(out *output.Writer, summaries []ui.SessionSummary) {
	if len(summaries) == 0 {
		out.Status("", "No sessions found")
		return
	}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			shortID(s.ID),
			strconv.Itoa(s.Total()),
			strconv.Itoa(s.Pending),
			strconv.Itoa(s.InProgress),
			strconv.Itoa(s.Completed),
			fmt.Sprintf("%.0f%%", s.Progress()*100),
		})
	}
	out.Table([]string{"SESSION", "TASKS", "PENDING", "IN PROGRESS", "DONE", "PROGRESS"}, rows)
}

// shortID abbreviates session UUIDs for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// useColor reports whether cmd writes to a color terminal.
func useColor(cmd *cobra.Command) bool {
	return ui.IsTTY(cmd.OutOrStdout()) && !ui.DetectNoColor()
}
