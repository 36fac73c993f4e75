package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/daemon"
	"github.com/Chili6666/iclaude-workbench/internal/ui"
)

// boardQueue is the number of messages buffered between an in-process
// bridge and the board. Every message is a full snapshot, so dropping one
// under load only delays the view.
const boardQueue = 64

type boardOptions struct {
	plain   bool
	noColor bool
}

func newBoardCmd() *cobra.Command {
	var opts boardOptions

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Live task and plan board",
		Long: `Show a live board of every session's tasks and the plans list.

In a terminal the board is interactive: tab switches between tasks and
plans, j/k scroll and q quits. In pipes and CI it prints one line per
update instead.

The board follows the daemon when it is running, otherwise it watches the
files itself.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Print updates as plain lines")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runBoard(ctx context.Context, cmd *cobra.Command, opts boardOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	board := ui.NewBoard(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor),
		ui.WithTitle(cfg.TasksRoot()),
	))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return board.Run(gctx)
	})

	client := daemon.NewClient(daemonConfig(cfg))
	if client.IsRunning() {
		g.Go(func() error {
			defer cancel()
			return client.Subscribe(gctx, board.Send)
		})
		return g.Wait()
	}

	eng, err := newEngine(cfg, slog.Default(), engineOptions{})
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	defer eng.close()
	if err := eng.start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	g.Go(func() error {
		pumpBoard(gctx, eng.bridge, board)
		return nil
	})
	return g.Wait()
}

// pumpBoard sends the bridge snapshot and then every published message to
// board until ctx is done.
func pumpBoard(ctx context.Context, b *bridge.Bridge, board ui.Board) {
	queue := make(chan bridge.Message, boardQueue)
	sub := b.Subscribe(func(m bridge.Message) {
		select {
		case queue <- m:
		default:
			slog.Debug("board queue full, dropping update", slog.String("type", m.Type))
		}
	})
	defer b.Unsubscribe(sub)

	for _, m := range b.Snapshot() {
		board.Send(m)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-queue:
			board.Send(m)
		}
	}
}
