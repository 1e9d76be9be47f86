package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/runbox/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:  "runbox",
		Usage: "Run commands and compile-then-run pipelines under supervision",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file (default ~/.runbox/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (silly, debug, verbose, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			runHwd.cmd(),
			execHwd.cmd(),
			serveHwd.cmd(),
			initHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
