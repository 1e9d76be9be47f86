package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/runbox/internal/config"
	"github.com/tgifai/runbox/internal/pkg/logs"
	"github.com/tgifai/runbox/internal/process"
)

var runHwd = &RunRunner{}

type RunRunner struct{}

func (r *RunRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run one command and print its classified result as JSON",
		ArgsUsage: "<command...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Working directory",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Kill the process tree after this long (0 uses the configured default)",
			},
			&cli.StringFlag{
				Name:  "shell",
				Usage: "Shell binary used to run the command",
			},
			&cli.BoolFlag{
				Name:  "no-shell",
				Usage: "Split the command on whitespace and run it without a shell",
			},
			&cli.StringSliceFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Line written to stdin, repeatable",
			},
		},
		Action: r.run,
	}
}

func (r *RunRunner) run(ctx context.Context, cmd *cli.Command) error {
	command := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if command == "" {
		return errors.New("a command is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err = initLogger(cmd, cfg.Logging, true); err != nil {
		return fmt.Errorf("init logger error: %w", err)
	}

	p := r.build(cmd, cfg.Runner).SetCommand(command)
	if err = p.Run(ctx); err != nil {
		return err
	}
	if err = p.WriteInputWhenRequested(asLines(cmd.StringSlice("input"))...); err != nil {
		logs.CtxDebug(ctx, "[run] stdin: %v", err)
	}

	out, err := p.Wait(ctx)
	if err != nil {
		return err
	}
	if err = printJSON(out); err != nil {
		return err
	}
	return exitWith(exitCodeFor(out.Type))
}

func (r *RunRunner) build(cmd *cli.Command, runner config.RunnerConfig) *process.Process {
	dir := runner.Directory
	if one := strings.TrimSpace(cmd.String("dir")); one != "" {
		dir = one
	}
	timeout := runner.Timeout()
	if one := cmd.Duration("timeout"); one > 0 {
		timeout = one
	}

	p := process.New(
		process.WithLogger(logs.DefaultLogger()),
		process.WithWaitDelay(runner.WaitDelay()),
	).
		InDirectory(dir).
		HideCommandPromptOnWindows(runner.HideWindowEnabled()).
		WithExecutionTimeout(timeout)

	shell := runner.Shell
	if one := strings.TrimSpace(cmd.String("shell")); one != "" {
		shell = one
	}
	switch {
	case cmd.Bool("no-shell"):
		p.WithShell(false)
	case shell != "":
		p.WithNamedShell(shell)
	}
	return p
}
