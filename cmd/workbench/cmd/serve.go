package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Chili6666/iclaude-workbench/internal/daemon"
	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
	"github.com/Chili6666/iclaude-workbench/internal/logging"
	"github.com/Chili6666/iclaude-workbench/internal/web"
)

type serveOptions struct {
	httpAddr string
	noHTTP   bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon in the foreground",
		Long: `Run the aggregation daemon in the foreground.

serve watches the tasks and plans directories and serves the live state on
the daemon socket and, unless disabled, on an HTTP address with a JSON API
and a server-sent event stream.

Logs go to ~/.iclaude-workbench/logs/server.log and to stderr.`,
		Example: `  # Serve on the configured socket and HTTP address
  workbench serve

  # Socket only
  workbench serve --no-http

  # Custom HTTP address
  workbench serve --http 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http", "", "HTTP listen address (default: server.http_addr)")
	cmd.Flags().BoolVar(&opts.noHTTP, "no-http", false, "Disable the HTTP API")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dcfg := daemonConfig(cfg)
	if err := dcfg.EnsureDir(); err != nil {
		return werrors.New(werrors.ErrCodeFilePermission, "failed to create daemon directory", err)
	}

	lock := daemon.NewLock(dcfg.LockPath)
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return werrors.New(werrors.ErrCodeDaemonRunning, "daemon is already running", err).
				WithDetail("lock", dcfg.LockPath).
				WithSuggestion("Run 'workbench daemon stop' first")
		}
		return err
	}
	defer func() { _ = lock.Release() }()

	logger := slog.Default()
	if !debugMode {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Server.LogLevel
		l, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		defer cleanup()
		logger = l
		slog.SetDefault(logger)
	}

	pidFile := daemon.NewPIDFile(dcfg.PIDPath)
	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = pidFile.Remove() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(cfg, logger, engineOptions{})
	if err != nil {
		return err
	}
	defer eng.close()
	if err := eng.start(ctx); err != nil {
		return err
	}

	srv := daemon.NewServer(dcfg.SocketPath, eng.bridge,
		daemon.WithServerLogger(logger),
		daemon.WithStatus(eng.fillStatus),
		daemon.WithRequestTimeout(dcfg.Timeout),
	)

	httpAddr := opts.httpAddr
	if httpAddr == "" {
		httpAddr = cfg.Server.HTTPAddr
	}
	if opts.noHTTP {
		httpAddr = ""
	}

	logger.Info("workbench serving",
		slog.String("socket", dcfg.SocketPath),
		slog.String("http", httpAddr),
		slog.String("tasks_root", cfg.TasksRoot()),
		slog.String("plans_root", cfg.PlansRoot()),
		slog.String("watch_backend", eng.backend.Name()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if httpAddr != "" {
		api := web.NewServer(eng.bridge, web.WithLogger(logger))
		g.Go(func() error {
			return api.ListenAndServe(gctx, httpAddr)
		})
	}

	err = g.Wait()
	logger.Info("workbench stopped")
	return err
}
