package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/output"
)

func newOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <plan-id|file>",
		Short: "Open a plan or task file in the editor",
		Long: `Open a file with editor.command, $VISUAL, $EDITOR or the platform
opener. The argument is a plan id or a path to a task or plan file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func newCopyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "copy <plan-id|file> [folder]",
		Short: "Copy a plan into a project folder",
		Long: `Copy a plan file into a folder. Without a folder the plan goes to the
first workspace root.

An existing file is only replaced after confirmation, or with --force.`,
		Example: `  # Into the current project
  workbench copy curious-otter

  # Into a subfolder
  workbench copy curious-otter ./docs/plans`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 2 {
				folder = args[1]
			}
			return runCopy(cmd.Context(), cmd, args[0], folder, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file without asking")
	return cmd
}

func runOpen(ctx context.Context, cmd *cobra.Command, target string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, err := newEngine(cfg, slog.Default(), engineOptions{})
	if err != nil {
		return err
	}
	defer eng.close()
	if err := eng.start(ctx); err != nil {
		return err
	}

	path, kind, err := resolvePlanFile(ctx, eng.bridge, target)
	if err != nil {
		return err
	}

	msg, err := eng.bridge.Handle(ctx, bridge.Command{Type: kind, FilePath: path})
	if err != nil {
		return err
	}
	output.New(cmd.OutOrStdout()).Successf("Opened %s", msg.Path)
	return nil
}

func runCopy(ctx context.Context, cmd *cobra.Command, source, folder string, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	confirm := func(_ context.Context, dst string) bool {
		if force {
			return true
		}
		return promptYesNo(in, cmd.ErrOrStderr(), fmt.Sprintf("%s already exists. Overwrite?", dst))
	}

	eng, err := newEngine(cfg, slog.Default(), engineOptions{confirm: confirm})
	if err != nil {
		return err
	}
	defer eng.close()
	if err := eng.start(ctx); err != nil {
		return err
	}

	src, _, err := resolvePlanFile(ctx, eng.bridge, source)
	if err != nil {
		return err
	}

	c := bridge.Command{Type: bridge.CmdCopyPlanToProject, SourcePath: src}
	if folder != "" {
		dst, err := filepath.Abs(folder)
		if err != nil {
			return err
		}
		c = bridge.Command{Type: bridge.CmdCopyPlanToFolder, SourcePath: src, TargetFolderPath: dst}
	}

	msg, err := eng.bridge.Handle(ctx, c)
	if err != nil {
		return err
	}
	output.New(cmd.OutOrStdout()).Successf("Copied to %s", msg.Path)
	return nil
}

// resolvePlanFile maps a plan id or a file path to an absolute path and the
// open command for it.
func resolvePlanFile(ctx context.Context, cmds bridge.Commander, target string) (string, string, error) {
	if strings.ContainsRune(target, os.PathSeparator) || filepath.Ext(target) != "" {
		abs, err := filepath.Abs(target)
		if err != nil {
			return "", "", err
		}
		if filepath.Ext(abs) == ".json" {
			return abs, bridge.CmdOpenTaskFile, nil
		}
		return abs, bridge.CmdOpenPlanFile, nil
	}

	msg, err := cmds.Handle(ctx, bridge.Command{Type: bridge.CmdRequestPlanContent, PlanID: target})
	if err != nil {
		return "", "", err
	}
	return msg.Plan.FilePath, bridge.CmdOpenPlanFile, nil
}

// promptYesNo asks on w and reads the answer from r. Anything but y or yes
// is a no, and so is a non-interactive input.
func promptYesNo(r io.Reader, w io.Writer, question string) bool {
	if f, ok := r.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	_, _ = fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
