// Package config loads workbench settings from defaults, the user config
// file, and WORKBENCH_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// AppName names the config and state directories.
const AppName = "iclaude-workbench"

// Config is the complete workbench configuration.
type Config struct {
	// Home is the base directory holding .claude/. Defaults to the user's
	// home directory.
	Home      string          `yaml:"home" toml:"home" json:"home"`
	Tasks     TasksConfig     `yaml:"tasks" toml:"tasks" json:"tasks"`
	Plans     PlansConfig     `yaml:"plans" toml:"plans" json:"plans"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch" json:"watch"`
	Workspace WorkspaceConfig `yaml:"workspace" toml:"workspace" json:"workspace"`
	Ignore    IgnoreConfig    `yaml:"ignore" toml:"ignore" json:"ignore"`
	Server    ServerConfig    `yaml:"server" toml:"server" json:"server"`
	Editor    EditorConfig    `yaml:"editor" toml:"editor" json:"editor"`
}

// TasksConfig locates the tasks tree. An empty Root means <home>/.claude/tasks.
type TasksConfig struct {
	Root string `yaml:"root" toml:"root" json:"root"`
}

// PlansConfig locates the plans directory. An empty Root means
// <home>/.claude/plans.
type PlansConfig struct {
	Root string `yaml:"root" toml:"root" json:"root"`
}

// WatchConfig tunes change detection.
type WatchConfig struct {
	// Debounce is the quiet period before a reload, e.g. "100ms".
	Debounce string `yaml:"debounce" toml:"debounce" json:"debounce"`
	// Backend is auto, fsnotify or polling.
	Backend string `yaml:"backend" toml:"backend" json:"backend"`
	// PollInterval applies to the polling backend.
	PollInterval string `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
	// FullRebuild closes and reopens every task watch on each reload
	// instead of reconciling the set.
	FullRebuild bool `yaml:"full_rebuild" toml:"full_rebuild" json:"full_rebuild"`
}

// WorkspaceConfig configures the folder lister.
type WorkspaceConfig struct {
	Roots    []string `yaml:"roots" toml:"roots" json:"roots"`
	MaxDepth int      `yaml:"max_depth" toml:"max_depth" json:"max_depth"`
}

// IgnoreConfig adds glob patterns to the built-in ignore policy.
type IgnoreConfig struct {
	Patterns []string `yaml:"patterns" toml:"patterns" json:"patterns"`
}

// ServerConfig configures the daemon and HTTP surfaces.
type ServerConfig struct {
	SocketPath string `yaml:"socket_path" toml:"socket_path" json:"socket_path"`
	HTTPAddr   string `yaml:"http_addr" toml:"http_addr" json:"http_addr"`
	LogLevel   string `yaml:"log_level" toml:"log_level" json:"log_level"`
}

// EditorConfig selects the command used to open plans. Empty falls back to
// $VISUAL, $EDITOR, then the platform opener.
type EditorConfig struct {
	Command string `yaml:"command" toml:"command" json:"command"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Debounce:     "100ms",
			Backend:      "auto",
			PollInterval: "2s",
		},
		Workspace: WorkspaceConfig{
			Roots:    []string{},
			MaxDepth: 2,
		},
		Ignore: IgnoreConfig{
			Patterns: []string{},
		},
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:7421",
			LogLevel: "info",
		},
	}
}

// GetUserConfigDir returns $XDG_CONFIG_HOME/iclaude-workbench, or
// ~/.config/iclaude-workbench.
func GetUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

// GetUserConfigPath returns the YAML user config path.
func GetUserConfigPath() string {
	return filepath.Join(GetUserConfigDir(), "config.yaml")
}

// FindUserConfig returns the user config file in use: config.yaml, then
// config.yml, then config.toml. Empty means none exists.
func FindUserConfig() string {
	dir := GetUserConfigDir()
	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// Load builds the effective configuration. When path is empty the user
// config file is used if one exists; a non-empty path must exist.
//
// Precedence: defaults, then the file, then WORKBENCH_* variables.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = FindUserConfig()
	} else if !fileExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFile parses a YAML or TOML file (by extension) and merges it.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&parsed); err != nil {
			return &ParseError{Path: path, Err: err}
		}
	default:
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return &ParseError{Path: path, Err: err}
		}
	}

	c.mergeWith(&parsed)
	return nil
}

// ParseError reports a malformed config file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// mergeWith copies the non-zero values of other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Home != "" {
		c.Home = other.Home
	}
	if other.Tasks.Root != "" {
		c.Tasks.Root = other.Tasks.Root
	}
	if other.Plans.Root != "" {
		c.Plans.Root = other.Plans.Root
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.Backend != "" {
		c.Watch.Backend = other.Watch.Backend
	}
	if other.Watch.PollInterval != "" {
		c.Watch.PollInterval = other.Watch.PollInterval
	}
	if other.Watch.FullRebuild {
		c.Watch.FullRebuild = true
	}

	if len(other.Workspace.Roots) > 0 {
		c.Workspace.Roots = other.Workspace.Roots
	}
	if other.Workspace.MaxDepth != 0 {
		c.Workspace.MaxDepth = other.Workspace.MaxDepth
	}

	// Extra ignore patterns accumulate.
	c.Ignore.Patterns = append(c.Ignore.Patterns, other.Ignore.Patterns...)

	if other.Server.SocketPath != "" {
		c.Server.SocketPath = other.Server.SocketPath
	}
	if other.Server.HTTPAddr != "" {
		c.Server.HTTPAddr = other.Server.HTTPAddr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Editor.Command != "" {
		c.Editor.Command = other.Editor.Command
	}
}

// applyEnvOverrides applies WORKBENCH_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WORKBENCH_HOME"); v != "" {
		c.Home = v
	}
	if v := os.Getenv("WORKBENCH_TASKS_DIR"); v != "" {
		c.Tasks.Root = v
	}
	if v := os.Getenv("WORKBENCH_PLANS_DIR"); v != "" {
		c.Plans.Root = v
	}
	if v := os.Getenv("WORKBENCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("WORKBENCH_WATCH_BACKEND"); v != "" {
		c.Watch.Backend = v
	}
	if v := os.Getenv("WORKBENCH_FULL_REBUILD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch.FullRebuild = b
		}
	}
	if v := os.Getenv("WORKBENCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("WORKBENCH_SOCKET"); v != "" {
		c.Server.SocketPath = v
	}
	if v := os.Getenv("WORKBENCH_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("WORKBENCH_EDITOR"); v != "" {
		c.Editor.Command = v
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if _, err := parsePositiveDuration("watch.debounce", c.Watch.Debounce); err != nil {
		return err
	}
	if _, err := parsePositiveDuration("watch.poll_interval", c.Watch.PollInterval); err != nil {
		return err
	}

	switch strings.ToLower(c.Watch.Backend) {
	case "auto", "fsnotify", "polling":
	default:
		return fmt.Errorf("watch.backend must be 'auto', 'fsnotify' or 'polling', got %q", c.Watch.Backend)
	}

	if c.Workspace.MaxDepth < 0 {
		return fmt.Errorf("workspace.max_depth must be non-negative, got %d", c.Workspace.MaxDepth)
	}

	for _, p := range c.Ignore.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("ignore.patterns: bad pattern %q: %w", p, err)
		}
	}

	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel)
	}

	return nil
}

// HomeDir returns the configured base directory, or the user's home.
func (c *Config) HomeDir() string {
	if c.Home != "" {
		return expandHome(c.Home)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// TasksRoot returns <home>/.claude/tasks unless overridden.
func (c *Config) TasksRoot() string {
	if c.Tasks.Root != "" {
		return expandHome(c.Tasks.Root)
	}
	return filepath.Join(c.HomeDir(), ".claude", "tasks")
}

// PlansRoot returns <home>/.claude/plans unless overridden.
func (c *Config) PlansRoot() string {
	if c.Plans.Root != "" {
		return expandHome(c.Plans.Root)
	}
	return filepath.Join(c.HomeDir(), ".claude", "plans")
}

// DebounceWindow returns the parsed watch.debounce. Call after Validate.
func (c *Config) DebounceWindow() time.Duration {
	d, _ := time.ParseDuration(c.Watch.Debounce)
	return d
}

// PollInterval returns the parsed watch.poll_interval. Call after Validate.
func (c *Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Watch.PollInterval)
	return d
}

// WorkspaceRoots returns the configured roots, or the current directory.
func (c *Config) WorkspaceRoots() []string {
	if len(c.Workspace.Roots) > 0 {
		roots := make([]string, len(c.Workspace.Roots))
		for i, r := range c.Workspace.Roots {
			roots[i] = expandHome(r)
		}
		return roots
	}
	if wd, err := os.Getwd(); err == nil {
		return []string{wd}
	}
	return []string{"."}
}

// StateDir is ~/.iclaude-workbench, home of the socket and pid file.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "."+AppName)
	}
	return filepath.Join(home, "."+AppName)
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return d, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
