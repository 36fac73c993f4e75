package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/output"
	"github.com/Chili6666/iclaude-workbench/internal/plan"
)

func newPlansCmd() *cobra.Command {
	var (
		query      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List plans, most recently modified first",
		Long: `List the Markdown plans in the plans directory.

--search matches the query case-insensitively against each plan's title and
content.`,
		Example: `  # All plans
  workbench plans

  # Plans mentioning "migration"
  workbench plans --search migration

  # Print one plan
  workbench plans show curious-otter`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlans(cmd.Context(), cmd, query, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&query, "search", "", "Only plans whose title or content contains this text")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newPlansShowCmd())

	return cmd
}

func newPlansShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a plan's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanShow(cmd.Context(), cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runPlans(ctx context.Context, cmd *cobra.Command, query string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cmds, _, release, err := commander(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer release()

	c := bridge.Command{Type: bridge.CmdRequestPlans}
	if query != "" {
		c = bridge.Command{Type: bridge.CmdSearchPlans, Query: query}
	}
	msg, err := cmds.Handle(ctx, c)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout()).WithColor(useColor(cmd))
	plans := msg.Plans
	if jsonOutput {
		if plans == nil {
			plans = []plan.Plan{}
		}
		return out.JSON(plans)
	}

	if len(plans) == 0 {
		if query != "" {
			out.Statusf("", "No plans match %q", query)
		} else {
			out.Status("", "No plans found")
		}
		return nil
	}

	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []string{
			p.ID,
			truncate(p.Title, 60),
			formatModified(p.ModifiedAt),
		})
	}
	out.Table([]string{"ID", "TITLE", "MODIFIED"}, rows)
	out.Statusf("", "%d plans", len(plans))
	return nil
}

func runPlanShow(ctx context.Context, cmd *cobra.Command, id string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cmds, _, release, err := commander(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer release()

	msg, err := cmds.Handle(ctx, bridge.Command{Type: bridge.CmdRequestPlanContent, PlanID: id})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(msg.Plan)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), msg.Plan.Content)
	return err
}

func formatModified(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
