package cmd

import (
	"context"
	"log/slog"

	"github.com/Chili6666/iclaude-workbench/internal/bridge"
	"github.com/Chili6666/iclaude-workbench/internal/config"
	"github.com/Chili6666/iclaude-workbench/internal/daemon"
)

// daemonConfig returns the daemon paths, honoring server.socket_path.
func daemonConfig(cfg *config.Config) daemon.Config {
	return daemon.DefaultConfig().WithSocket(cfg.Server.SocketPath)
}

// commander returns the running daemon's client when there is one, and an
// in-process engine otherwise. The returned release function must be
// called when done.
func commander(ctx context.Context, cfg *config.Config, logger *slog.Logger) (bridge.Commander, bool, func(), error) {
	client := daemon.NewClient(daemonConfig(cfg))
	if client.IsRunning() {
		logger.Debug("using daemon", slog.String("socket", daemonConfig(cfg).SocketPath))
		return bridge.CommanderFunc(client.Command), true, func() {}, nil
	}

	eng, err := newEngine(cfg, logger, engineOptions{})
	if err != nil {
		return nil, false, nil, err
	}
	if err := eng.start(ctx); err != nil {
		eng.close()
		return nil, false, nil, err
	}
	return eng.bridge, false, eng.close, nil
}
