package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/config"
	"github.com/Chili6666/iclaude-workbench/internal/daemon"
	"github.com/Chili6666/iclaude-workbench/internal/plan"
	"github.com/Chili6666/iclaude-workbench/internal/scanner"
	"github.com/Chili6666/iclaude-workbench/internal/task"
	"github.com/Chili6666/iclaude-workbench/internal/watcher"
	"github.com/Chili6666/iclaude-workbench/internal/workspace"
	"github.com/Chili6666/iclaude-workbench/pkg/version"
)

// engine is the in-process aggregation stack: both aggregators on a shared
// watch backend, the folder lister and the bridge on top.
type engine struct {
	cfg     *config.Config
	backend watcher.Backend
	scanner *scanner.Scanner
	tasks   *task.Aggregator
	plans   *plan.Aggregator
	bridge  *bridge.Bridge
	logger  *slog.Logger
}

// engineOptions overrides the collaborators the bridge acts through.
type engineOptions struct {
	roots   []string
	confirm func(ctx context.Context, dst string) bool
}

// newEngine wires the stack from cfg. Nothing is read until start.
func newEngine(cfg *config.Config, logger *slog.Logger, opts engineOptions) (*engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sc, err := newScanner(cfg, logger)
	if err != nil {
		return nil, err
	}

	backend, err := watcher.NewBackend(watcher.Options{
		DebounceWindow: cfg.DebounceWindow(),
		PollInterval:   cfg.PollInterval(),
		Backend:        cfg.Watch.Backend,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create watch backend: %w", err)
	}

	tasks := task.NewAggregator(task.Config{
		Root:           cfg.TasksRoot(),
		DebounceWindow: cfg.DebounceWindow(),
		FullRebuild:    cfg.Watch.FullRebuild,
	}, backend, task.WithLogger(logger), task.WithScanner(sc))

	plans := plan.NewAggregator(plan.Config{
		Root:           cfg.PlansRoot(),
		DebounceWindow: cfg.DebounceWindow(),
	}, backend, plan.WithLogger(logger), plan.WithScanner(sc))

	roots := opts.roots
	if len(roots) == 0 {
		roots = cfg.WorkspaceRoots()
	}

	b := bridge.New(
		tasks,
		plans,
		workspace.NewLister(sc, logger),
		roots,
		&bridge.EditorOpener{Command: cfg.Editor.Command, Logger: logger},
		&bridge.FileCopier{Confirm: opts.confirm},
		bridge.WithLogger(logger),
		bridge.WithMaxDepth(cfg.Workspace.MaxDepth),
	)

	return &engine{
		cfg:     cfg,
		backend: backend,
		scanner: sc,
		tasks:   tasks,
		plans:   plans,
		bridge:  b,
		logger:  logger,
	}, nil
}

// newScanner builds the scanner with the configured extra ignore patterns.
func newScanner(cfg *config.Config, logger *slog.Logger) (*scanner.Scanner, error) {
	policy, err := scanner.NewPolicy(cfg.Ignore.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore patterns: %w", err)
	}
	return scanner.New(policy, logger), nil
}

// start loads both snapshots and begins watching. ctx bounds the watch
// triggered reloads.
func (e *engine) start(ctx context.Context) error {
	if err := e.tasks.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task aggregator: %w", err)
	}
	if err := e.plans.Start(ctx); err != nil {
		_ = e.tasks.Close()
		return fmt.Errorf("failed to start plan aggregator: %w", err)
	}
	e.bridge.Start()
	return nil
}

// close stops the bridge, both aggregators and the backend.
func (e *engine) close() {
	e.bridge.Stop()
	_ = e.tasks.Close()
	_ = e.plans.Close()
	_ = e.backend.Close()
}

// fillStatus adds the engine's counters to a daemon status reply.
func (e *engine) fillStatus(st *daemon.StatusResult) {
	ts := e.tasks.Stats()
	ps := e.plans.Stats()

	st.Version = version.Version
	st.TasksRoot = ts.Root
	st.PlansRoot = ps.Root
	st.Sessions = ts.Sessions
	st.Tasks = ts.Tasks
	st.Plans = ps.Plans
	st.Watched = ts.Watched
	if ps.Watching {
		st.Watched++
	}
	st.Reloads = ts.Reloads + ps.Reloads
	st.WatchMode = e.backend.Name()
}
