package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Chili6666/iclaude-workbench/internal/output"
	"github.com/Chili6666/iclaude-workbench/internal/workspace"
)

func newFoldersCmd() *cobra.Command {
	var (
		depth      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "folders [root...]",
		Short: "List workspace folders plans can be copied into",
		Long: `List the folders below each workspace root, depth first in name order.

Without arguments the roots come from workspace.roots, or the current
directory. Hidden, dependency and build directories are skipped.`,
		Example: `  # Folders of the configured roots
  workbench folders

  # Three levels below two roots
  workbench folders --depth 3 ~/src/api ~/src/web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolders(cmd.Context(), cmd, args, depth, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "Levels below each root (default: workspace.max_depth)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// runFolders lists folders in-process: the roots are the caller's, not the
// daemon's.
func runFolders(_ context.Context, cmd *cobra.Command, args []string, depth int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	roots := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return err
		}
		roots = append(roots, abs)
	}
	if len(roots) == 0 {
		roots = cfg.WorkspaceRoots()
	}
	if depth <= 0 {
		depth = cfg.Workspace.MaxDepth
	}

	sc, err := newScanner(cfg, slog.Default())
	if err != nil {
		return err
	}
	folders := workspace.NewLister(sc, slog.Default()).List(roots, depth)

	out := output.New(cmd.OutOrStdout()).WithColor(useColor(cmd))
	if jsonOutput {
		if folders == nil {
			folders = []workspace.Folder{}
		}
		return out.JSON(folders)
	}

	if len(folders) == 0 {
		out.Status("", "No folders found")
		return nil
	}
	rows := make([][]string, 0, len(folders))
	for _, f := range folders {
		rows = append(rows, []string{f.Name, f.Path})
	}
	out.Table([]string{"NAME", "PATH"}, rows)
	return nil
}
