package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/runbox/internal/config"
	"github.com/tgifai/runbox/internal/pkg/logs"
	"github.com/tgifai/runbox/internal/server"
)

var serveHwd = &ServeRunner{}

type ServeRunner struct{}

func (r *ServeRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the execute API over HTTP until interrupted",
		Action: r.run,
	}
}

func (r *ServeRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err = initLogger(cmd, cfg.Logging, false); err != nil {
		return fmt.Errorf("init logger error: %w", err)
	}
	hlog.SetLogger(logs.NewHlogLogger(logs.DefaultLogger()))

	if err = os.MkdirAll(cfg.Server.Workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	logs.CtxInfo(ctx, "booting runbox, using config file: %s...", config.Path())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svr, err := server.New(cfg, server.WithLogger(logs.DefaultLogger()))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err = svr.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	logs.CtxInfo(ctx, "ALL IS WELL!!! Press Ctrl+C to stop.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case sig := <-signalCh:
		logs.CtxInfo(ctx, "Received shutdown signal (%s). Stopping server...", sig.String())
	case <-ctx.Done():
		logs.CtxInfo(ctx, "Context canceled. Stopping server...")
	}

	if err = svr.Stop(context.Background()); err != nil {
		logs.CtxError(ctx, "stop server error: %v", err)
	}

	logs.CtxInfo(ctx, "all stopped, good bye!")
	return nil
}
