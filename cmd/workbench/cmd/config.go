package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Chili6666/iclaude-workbench/internal/config"
	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
	"github.com/Chili6666/iclaude-workbench/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/iclaude-workbench/config.yaml, .yml or .toml)
  3. Environment variables (WORKBENCH_*)

--config replaces the user config file for one command.`,
		Example: `  # Create user config from the defaults
  workbench config init

  # Show effective configuration
  workbench config show

  # Print user config file path
  workbench config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Write the default configuration to ~/.config/iclaude-workbench/config.yaml
(or $XDG_CONFIG_HOME/iclaude-workbench/config.yaml if XDG_CONFIG_HOME is set).

With --force an existing file is backed up next to itself before it is
replaced.`,
		Example: `  # Create user config
  workbench config init

  # Overwrite existing config
  workbench config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources.

Sources:
  merged    defaults, user config and environment (default)
  user      the user config file as written
  defaults  the built-in defaults`,
		Example: `  # Show merged configuration
  workbench config show

  # Show as JSON
  workbench config show --json

  # Show only the defaults
  workbench config show --source defaults`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Long:  `Print the path of the user configuration file in use, or the default path if there is none.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.FindUserConfig()
			if path == "" {
				path = config.GetUserConfigPath()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("User configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Newline()
		out.Status("💡", "Use --force to replace it with the defaults (a backup is kept)")
		return nil
	}

	written, backup, err := config.InitUserConfig(force)
	if err != nil {
		return werrors.New(werrors.ErrCodeFilePermission, "failed to write user configuration", err).
			WithDetail("path", path)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", written)
	if backup != "" {
		out.Statusf("💾", "Backup: %s", backup)
	}
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Edit the file to add workspace roots or ignore patterns")
	out.Status("", "  2. Run 'workbench config show' to verify")
	out.Status("", "  3. Run 'workbench daemon start'")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var cfg *config.Config
	var sourceDesc string

	switch source {
	case "merged":
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c
		sourceDesc = "merged (defaults + user + env)"
		if configPath != "" {
			sourceDesc = fmt.Sprintf("merged (defaults + %s + env)", configPath)
		}

	case "user":
		path := configPath
		if path == "" {
			path = config.FindUserConfig()
		}
		if path == "" {
			out.Warning("No user configuration file found")
			out.Statusf("📁", "Expected at: %s", config.GetUserConfigPath())
			out.Status("💡", "Run 'workbench config init' to create one")
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return werrors.New(werrors.ErrCodeFileNotFound, "failed to read user config", err).
				WithDetail("path", path)
		}
		if !jsonOutput {
			out.Statusf("📋", "Configuration source: user (%s)", path)
			out.Newline()
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c
		sourceDesc = fmt.Sprintf("user (%s)", path)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (hardcoded)"

	default:
		return werrors.ValidationError(fmt.Sprintf("invalid source: %s (use: merged, user, defaults)", source), nil)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	out.Statusf("📋", "Configuration source: %s", sourceDesc)
	out.Newline()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
