// Package compiler runs an optional compile command followed by a run command,
// each in its own supervised process. The run phase only starts when the
// compile phase finished with a SUCCESS result.
package compiler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgifai/runbox/internal/command"
	"github.com/tgifai/runbox/internal/pkg/logs"
	"github.com/tgifai/runbox/internal/pkg/utils"
	"github.com/tgifai/runbox/internal/process"
)

const maxLoggedCommand = 200

type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// Recorder receives per-phase execution events.
type Recorder interface {
	ObservePhase(phase, resultType string, took time.Duration)
	IncShortCircuit()
	AddInflight(delta float64)
}

type Options struct {
	Directory        string
	Compile          string
	Run              string
	ExecutionTimeout time.Duration
	Variables        map[string]command.Value
	Inputs           []string

	// Shell names the shell binary; empty uses the platform default.
	Shell      string
	HideWindow bool
	WaitDelay  time.Duration
}

// Report is the outcome of one pipeline execution. Run is nil when the
// compile phase did not succeed.
type Report struct {
	ID             string          `json:"id"`
	Compile        *process.Output `json:"compile,omitempty"`
	Run            *process.Output `json:"run,omitempty"`
	ShortCircuited bool            `json:"short_circuited"`
}

type Option func(*Compiler)

func WithLogger(l logs.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithOptions(opts Options) Option {
	return func(c *Compiler) {
		c.opts = opts
		c.opts.Variables = make(map[string]command.Value, len(opts.Variables))
		for name, value := range opts.Variables {
			c.putVariable(name, value)
		}
		c.opts.Inputs = append([]string(nil), opts.Inputs...)
	}
}

func WithMetrics(r Recorder) Option {
	return func(c *Compiler) {
		c.metrics = r
	}
}

type Compiler struct {
	logger  logs.Logger
	metrics Recorder

	mu               sync.Mutex
	opts             Options
	onCompileFailure func(process.Output)
}

func New(opts ...Option) *Compiler {
	c := &Compiler{
		logger: logs.DefaultLogger(),
		opts: Options{
			Directory:  ".",
			HideWindow: true,
			Variables:  make(map[string]command.Value),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compiler) update(fn func()) *Compiler {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
	return c
}

func (c *Compiler) Directory(dir string) *Compiler {
	return c.update(func() { c.opts.Directory = dir })
}

func (c *Compiler) CompileCommand(tpl string) *Compiler {
	return c.update(func() { c.opts.Compile = tpl })
}

func (c *Compiler) RunCommand(tpl string) *Compiler {
	return c.update(func() { c.opts.Run = tpl })
}

func (c *Compiler) ExecutionTimeout(d time.Duration) *Compiler {
	return c.update(func() { c.opts.ExecutionTimeout = d })
}

// PutVariable binds name to value. The name is trimmed and empty names are
// ignored.
func (c *Compiler) PutVariable(name string, value command.Value) *Compiler {
	return c.update(func() { c.putVariable(name, value) })
}

// SetVariables merges vars into the current bindings, last write wins.
func (c *Compiler) SetVariables(vars map[string]command.Value) *Compiler {
	return c.update(func() {
		for name, value := range vars {
			c.putVariable(name, value)
		}
	})
}

func (c *Compiler) putVariable(name string, value command.Value) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if c.opts.Variables == nil {
		c.opts.Variables = make(map[string]command.Value)
	}
	c.opts.Variables[name] = value
}

// StageInputs sets the stdin lines fed to the run phase. They are written
// verbatim, so callers add their own line endings.
func (c *Compiler) StageInputs(inputs ...string) *Compiler {
	return c.update(func() { c.opts.Inputs = append([]string(nil), inputs...) })
}

// WriteInputWhenRequested is an alias of StageInputs.
func (c *Compiler) WriteInputWhenRequested(inputs ...string) *Compiler {
	return c.StageInputs(inputs...)
}

// OnCompileFailure registers a hook that receives the compile result whenever
// it short-circuits the pipeline.
func (c *Compiler) OnCompileFailure(fn func(process.Output)) *Compiler {
	return c.update(func() { c.onCompileFailure = fn })
}

type execution struct {
	id               string
	opts             Options
	compileCmd       string
	runCmd           string
	onCompileFailure func(process.Output)
}

func (c *Compiler) prepare(ctx context.Context) (context.Context, *execution, error) {
	c.mu.Lock()
	opts := c.opts
	opts.Variables = make(map[string]command.Value, len(c.opts.Variables))
	for name, value := range c.opts.Variables {
		opts.Variables[name] = value
	}
	opts.Inputs = append([]string(nil), c.opts.Inputs...)
	hook := c.onCompileFailure
	c.mu.Unlock()

	if strings.TrimSpace(opts.Run) == "" {
		return ctx, nil, process.ErrCommandNotDefined
	}

	if ctx == nil {
		ctx = context.Background()
	}
	exec := &execution{
		id:               uuid.New().String(),
		opts:             opts,
		runCmd:           command.Resolve(opts.Run, opts.Variables),
		onCompileFailure: hook,
	}
	if c.logger.GetLogID(ctx) == "" {
		ctx = c.logger.SetLogID(ctx, exec.id)
	}
	if strings.TrimSpace(opts.Compile) != "" {
		exec.compileCmd = command.Resolve(opts.Compile, opts.Variables)
	}
	return ctx, exec, nil
}

func (e *execution) firstPhase() Phase {
	if e.compileCmd != "" {
		return PhaseCompile
	}
	return PhaseRun
}

// Execute starts the pipeline and returns once the first phase is running.
// callback receives the run result. It is never called when the compile phase
// fails; use OnCompileFailure or ExecuteAndWait to observe that case.
func (c *Compiler) Execute(ctx context.Context, callback func(process.Output)) error {
	ctx, exec, err := c.prepare(ctx)
	if err != nil {
		return err
	}
	first, err := c.startFirst(ctx, exec)
	if err != nil {
		return err
	}

	go func() {
		report, err := c.complete(ctx, exec, first)
		if err != nil {
			c.logger.CtxError(ctx, "[compiler] pipeline %s failed: %v", exec.id, err)
			return
		}
		if report.ShortCircuited || callback == nil {
			return
		}
		callback(*report.Run)
	}()
	return nil
}

// ExecuteAndWait runs the pipeline to completion. A failed compile phase is
// reported through Report.ShortCircuited, not as an error.
func (c *Compiler) ExecuteAndWait(ctx context.Context) (*Report, error) {
	ctx, exec, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}
	first, err := c.startFirst(ctx, exec)
	if err != nil {
		return nil, err
	}
	return c.complete(ctx, exec, first)
}

func (c *Compiler) startFirst(ctx context.Context, exec *execution) (*process.Process, error) {
	if exec.firstPhase() == PhaseCompile {
		return c.spawn(ctx, exec, PhaseCompile, exec.compileCmd, nil)
	}
	return c.spawn(ctx, exec, PhaseRun, exec.runCmd, exec.opts.Inputs)
}

func (c *Compiler) complete(ctx context.Context, exec *execution, first *process.Process) (*Report, error) {
	report := &Report{ID: exec.id}

	if exec.firstPhase() == PhaseCompile {
		<-first.Done()
		out := first.Result()
		report.Compile = &out
		if !out.Succeeded() {
			report.ShortCircuited = true
			if c.metrics != nil {
				c.metrics.IncShortCircuit()
			}
			c.logger.CtxVerbose(ctx, "[compiler] compile phase ended with %s, skipping run", out.Type)
			if exec.onCompileFailure != nil {
				exec.onCompileFailure(out)
			}
			return report, nil
		}

		runner, err := c.spawn(ctx, exec, PhaseRun, exec.runCmd, exec.opts.Inputs)
		if err != nil {
			return report, err
		}
		first = runner
	}

	<-first.Done()
	out := first.Result()
	report.Run = &out
	return report, nil
}

func (c *Compiler) spawn(ctx context.Context, exec *execution, phase Phase, cmdline string, inputs []string) (*process.Process, error) {
	p := process.New(
		process.WithLogger(c.logger),
		process.WithWaitDelay(exec.opts.WaitDelay),
	).
		InDirectory(exec.opts.Directory).
		HideCommandPromptOnWindows(exec.opts.HideWindow).
		WithExecutionTimeout(exec.opts.ExecutionTimeout).
		SetCommand(cmdline)
	if exec.opts.Shell != "" {
		p.WithNamedShell(exec.opts.Shell)
	}

	p.OnFinish(func(out process.Output) {
		c.logger.CtxDebug(ctx, "[compiler] %s phase finished: type=%s code=%d took=%dms",
			phase, out.Type, out.ExitCode(), out.Took)
		if c.metrics != nil {
			c.metrics.AddInflight(-1)
			took := time.Duration(-1)
			if out.Took >= 0 {
				took = time.Duration(out.Took) * time.Millisecond
			}
			c.metrics.ObservePhase(string(phase), string(out.Type), took)
		}
	})

	c.logger.CtxVerbose(ctx, "[compiler] starting %s phase: %s", phase, utils.Truncate(cmdline, maxLoggedCommand))
	if c.metrics != nil {
		c.metrics.AddInflight(1)
	}
	if err := p.Run(ctx); err != nil {
		if c.metrics != nil {
			c.metrics.AddInflight(-1)
		}
		return nil, fmt.Errorf("%s phase: %w", phase, err)
	}

	// A phase without inputs gets EOF right away so it cannot block on stdin.
	if err := p.WriteInputWhenRequested(inputs...); err != nil {
		c.logger.CtxDebug(ctx, "[compiler] %s phase stdin: %v", phase, err)
	}
	return p, nil
}
