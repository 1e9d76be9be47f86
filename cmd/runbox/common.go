package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/runbox/internal/config"
	"github.com/tgifai/runbox/internal/pkg/logs"
	"github.com/tgifai/runbox/internal/process"
)

const (
	exitSuccess  = 0
	exitError    = 1
	exitTimedOut = 2
)

// loadConfig reads the config named by --config, falling back to defaults
// when the file does not exist.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config error: %w", err)
	}
	return cfg, nil
}

// initLogger installs the default logger. One-shot commands keep stdout for
// their JSON result, so console logging moves to stderr.
func initLogger(cmd *cli.Command, cfg config.LoggingConfig, oneShot bool) error {
	level := cfg.Level
	if override := strings.TrimSpace(cmd.String("log-level")); override != "" {
		level = override
	}
	output := cfg.Output
	if oneShot {
		switch output {
		case "stdout":
			output = "stderr"
		case "both":
			output = "file"
		}
	}
	return logs.Init(logs.Options{
		Level:      level,
		Format:     cfg.Format,
		Output:     output,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	})
}

func printJSON(v any) error {
	raw, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(raw))
	return err
}

func exitCodeFor(t process.ReturnType) int {
	switch t {
	case process.TypeSuccess:
		return exitSuccess
	case process.TypeTimedOut:
		return exitTimedOut
	default:
		return exitError
	}
}

func exitWith(code int) error {
	if code == exitSuccess {
		return nil
	}
	return cli.Exit("", code)
}

// asLines appends a trailing newline to every CLI input that lacks one.
func asLines(inputs []string) []string {
	out := make([]string, 0, len(inputs))
	for _, one := range inputs {
		if !strings.HasSuffix(one, "\n") {
			one += "\n"
		}
		out = append(out, one)
	}
	return out
}
