package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/runbox/internal/config"
	"github.com/tgifai/runbox/internal/consts"
	"github.com/tgifai/runbox/internal/pkg/utils"
)

var initHwd = &InitRunner{}

type InitRunner struct {
	scanner *bufio.Scanner
	yes     bool
}

func (r *InitRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a config file and create the execution workspace",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Accept every default without prompting",
			},
		},
		Action: r.run,
	}
}

var (
	cStep    = color.New(color.FgCyan, color.Bold)
	cWarn    = color.New(color.FgYellow)
	cSuccess = color.New(color.FgGreen)
	cError   = color.New(color.FgRed)
	cPrompt  = color.New(color.FgWhite, color.Bold)
	cDim     = color.New(color.FgHiBlack)
)

func (r *InitRunner) run(_ context.Context, cmd *cli.Command) error {
	r.scanner = bufio.NewScanner(os.Stdin)
	r.yes = cmd.Bool("yes")

	cfgPath := strings.TrimSpace(cmd.String("config"))
	if cfgPath == "" {
		cfgPath = consts.DefaultConfigPath()
	}
	if _, err := os.Stat(cfgPath); err == nil {
		cWarn.Printf("  Config already exists at %s\n", cfgPath)
		if !r.confirm("  Overwrite existing config?", false) {
			fmt.Println("  Aborted.")
			return nil
		}
		fmt.Println()
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config error: %w", err)
	}

	r.printStepHeader("Step 1", "HTTP service")
	server := cfg.Server
	server.Bind = r.promptDefault("  Listen address", server.Bind)
	server.Workspace = r.promptDefault("  Workspace directory", server.Workspace)
	if server.APIKey == "" {
		server.APIKey = utils.RandStr(32)
	}
	server.APIKey = r.promptDefault("  API key (\"-\" disables auth)", server.APIKey)
	if server.APIKey == "-" {
		server.APIKey = ""
	}
	server.MaxConcurrent = r.promptInt("  Max concurrent executions", server.MaxConcurrent)
	fmt.Println()

	r.printStepHeader("Step 2", "Runner")
	runner := cfg.Runner
	runner.TimeoutMS = r.promptInt("  Default timeout (ms)", runner.TimeoutMS)
	runner.Shell = r.promptDefault("  Shell (empty uses the platform default)", runner.Shell)
	fmt.Println()

	if err = config.Apply("server", &server); err != nil {
		cError.Printf("  ✗ Invalid server settings: %v\n", err)
		return err
	}
	if err = config.Apply("runner", &runner); err != nil {
		cError.Printf("  ✗ Invalid runner settings: %v\n", err)
		return err
	}

	cDim.Printf("  Config file:  %s\n", cfgPath)
	cDim.Printf("  Workspace:    %s\n", server.Workspace)
	cDim.Printf("  Listen:       %s\n", server.Bind)
	fmt.Println()
	if !r.confirm("  Write config and create workspace?", true) {
		fmt.Println("  Aborted.")
		return nil
	}

	if err = config.Save(); err != nil {
		cError.Printf("  ✗ Failed to write config: %v\n", err)
		return err
	}
	cSuccess.Printf("  ✓ Created %s\n", cfgPath)

	if err = os.MkdirAll(server.Workspace, 0o755); err != nil {
		cError.Printf("  ✗ Failed to create workspace: %v\n", err)
		return err
	}
	cSuccess.Printf("  ✓ Workspace ready at %s\n", server.Workspace)
	fmt.Println()
	fmt.Println("  Start the service with \"runbox serve\".")
	return nil
}

func (r *InitRunner) promptDefault(label string, defaultVal string) string {
	if r.yes {
		return defaultVal
	}
	if defaultVal != "" {
		cPrompt.Printf("%s ", label)
		cDim.Printf("[%s]", defaultVal)
		cPrompt.Print(" > ")
	} else {
		cPrompt.Printf("%s > ", label)
	}

	if r.scanner.Scan() {
		val := strings.TrimSpace(r.scanner.Text())
		if val != "" {
			return val
		}
	}
	return defaultVal
}

func (r *InitRunner) promptInt(label string, defaultVal int) int {
	for {
		val := r.promptDefault(label, strconv.Itoa(defaultVal))
		n, err := strconv.Atoi(val)
		if err == nil && n >= 0 {
			return n
		}
		cError.Println("  Please enter a non-negative number.")
	}
}

func (r *InitRunner) confirm(label string, defaultYes bool) bool {
	if r.yes {
		return true
	}
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	cPrompt.Printf("%s %s > ", label, hint)
	if r.scanner.Scan() {
		val := strings.ToLower(strings.TrimSpace(r.scanner.Text()))
		if val == "" {
			return defaultYes
		}
		return val == "y" || val == "yes"
	}
	return defaultYes
}

func (r *InitRunner) printStepHeader(step string, title string) {
	if r.yes {
		return
	}
	cStep.Printf("═══ %s: %s ═══\n\n", step, title)
}
