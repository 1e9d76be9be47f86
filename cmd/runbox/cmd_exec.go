package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/runbox/internal/command"
	"github.com/tgifai/runbox/internal/compiler"
	"github.com/tgifai/runbox/internal/pkg/logs"
	"github.com/tgifai/runbox/internal/pkg/prometheus"
)

var execHwd = &ExecRunner{}

type ExecRunner struct{}

func (r *ExecRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "exec",
		Usage: "Run an optional compile command, then the run command, and print the report as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "run",
				Aliases:  []string{"r"},
				Usage:    "Run command template, e.g. \"./{binary}\"",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "compile",
				Usage: "Compile command template, e.g. \"gcc {source} -o {binary}\"",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Working directory",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Per-phase time limit (0 uses the configured default)",
			},
			&cli.StringSliceFlag{
				Name:  "var",
				Usage: "Template variable as name=value, repeatable",
			},
			&cli.StringSliceFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Line written to the run phase's stdin, repeatable",
			},
		},
		Action: r.run,
	}
}

func (r *ExecRunner) run(ctx context.Context, cmd *cli.Command) error {
	vars, err := parseVars(cmd.StringSlice("var"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err = initLogger(cmd, cfg.Logging, true); err != nil {
		return fmt.Errorf("init logger error: %w", err)
	}

	opts := compiler.Options{
		Directory:        cfg.Runner.Directory,
		Compile:          cmd.String("compile"),
		Run:              cmd.String("run"),
		ExecutionTimeout: cfg.Runner.Timeout(),
		Variables:        vars,
		Inputs:           asLines(cmd.StringSlice("input")),
		Shell:            cfg.Runner.Shell,
		HideWindow:       cfg.Runner.HideWindowEnabled(),
		WaitDelay:        cfg.Runner.WaitDelay(),
	}
	if one := strings.TrimSpace(cmd.String("dir")); one != "" {
		opts.Directory = one
	}
	if one := cmd.Duration("timeout"); one > 0 {
		opts.ExecutionTimeout = one
	}

	pipeline := compiler.New(
		compiler.WithLogger(logs.DefaultLogger()),
		compiler.WithMetrics(prometheus.GetMetrics()),
		compiler.WithOptions(opts),
	)
	report, err := pipeline.ExecuteAndWait(ctx)
	if err != nil {
		return err
	}
	if err = printJSON(report); err != nil {
		return err
	}

	if report.ShortCircuited {
		return exitWith(exitCodeFor(report.Compile.Type))
	}
	return exitWith(exitCodeFor(report.Run.Type))
}

// parseVars turns name=value pairs into text bindings.
func parseVars(pairs []string) (map[string]command.Value, error) {
	vars := make(map[string]command.Value, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", pair)
		}
		vars[name] = command.Text(value)
	}
	return vars, nil
}
