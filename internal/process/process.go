// Package process supervises a single child process: it streams the child's
// output, enforces an execution timeout by killing the whole process tree and
// delivers exactly one classified Output when the child exits.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tgifai/runbox/internal/pkg/logs"
)

const (
	defaultWaitDelay     = 500 * time.Millisecond
	maxStreamBufferBytes = 1 << 20 // 1 MiB per stream
)

type Option func(*Process)

func WithLogger(l logs.Logger) Option {
	return func(p *Process) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithWaitDelay bounds how long the exit event waits for output pipes still
// held open by descendants after the direct child has exited.
func WithWaitDelay(d time.Duration) Option {
	return func(p *Process) {
		if d > 0 {
			p.waitDelay = d
		}
	}
}

// Process owns exactly one OS process from Run to exit.
type Process struct {
	logger    logs.Logger
	waitDelay time.Duration

	dir        string
	useShell   bool
	shell      string
	hideWindow bool
	timeout    time.Duration
	command    string

	mu            sync.Mutex
	state         State
	ctx           context.Context
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	stdinClosed   bool
	started       time.Time
	timer         *time.Timer
	killRequested bool

	stdout     *tailBuffer
	stderr     *tailBuffer
	lastStream stream
	output     Output

	consumers []func(Output)
	done      chan struct{}
}

func New(opts ...Option) *Process {
	p := &Process{
		logger:     logs.DefaultLogger(),
		waitDelay:  defaultWaitDelay,
		dir:        ".",
		useShell:   true,
		hideWindow: true,
		stdout:     newTailBuffer(maxStreamBufferBytes),
		stderr:     newTailBuffer(maxStreamBufferBytes),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// configure applies fn only while the process has not been spawned yet.
func (p *Process) configure(fn func()) *Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateIdle {
		fn()
	}
	return p
}

func (p *Process) InDirectory(dir string) *Process {
	return p.configure(func() {
		if strings.TrimSpace(dir) != "" {
			p.dir = dir
		}
	})
}

// WithShell toggles running the command through the platform shell. With the
// shell off the command is split on whitespace into program and arguments.
func (p *Process) WithShell(enabled bool) *Process {
	return p.configure(func() {
		p.useShell = enabled
		if !enabled {
			p.shell = ""
		}
	})
}

// WithNamedShell runs the command through the given shell binary.
func (p *Process) WithNamedShell(shell string) *Process {
	return p.configure(func() {
		p.useShell = true
		p.shell = strings.TrimSpace(shell)
	})
}

func (p *Process) HideCommandPromptOnWindows(hide bool) *Process {
	return p.configure(func() {
		p.hideWindow = hide
	})
}

// WithExecutionTimeout sets the time limit; zero or negative disables it.
func (p *Process) WithExecutionTimeout(timeout time.Duration) *Process {
	return p.configure(func() {
		p.timeout = timeout
	})
}

func (p *Process) SetCommand(command string) *Process {
	return p.configure(func() {
		p.command = command
	})
}

// Run spawns the process and returns as soon as it has started. The result is
// delivered through OnFinish and Wait.
func (p *Process) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return ErrAlreadyStarted
	}
	command := strings.TrimSpace(p.command)
	if command == "" {
		return ErrCommandNotDefined
	}

	cmd := p.buildCommand(command)
	cmd.Dir = p.dir
	cmd.Stdout = &streamWriter{p: p, kind: streamStdout}
	cmd.Stderr = &streamWriter{p: p, kind: streamStderr}
	cmd.WaitDelay = p.waitDelay
	setCommandProcessGroup(cmd, p.hideWindow)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("prepare stdin pipe: %w", err)
	}

	p.started = time.Now()
	if err := cmd.Start(); err != nil {
		p.started = time.Time{}
		return fmt.Errorf("start process failed: %w", err)
	}

	p.ctx = ctx
	p.cmd = cmd
	p.stdin = stdin
	p.state = StateRunning
	if p.timeout > 0 {
		p.timer = time.AfterFunc(p.timeout, p.onTimeout)
	}

	p.logger.CtxDebug(ctx, "[process] started pid=%d dir=%s timeout=%v command=%q",
		cmd.Process.Pid, p.dir, p.timeout, command)

	go p.wait()
	return nil
}

func (p *Process) buildCommand(command string) *exec.Cmd {
	if p.useShell {
		return shellCommand(p.shell, command)
	}
	fields := strings.Fields(command)
	return exec.Command(fields[0], fields[1:]...)
}

// WriteInputWhenRequested writes each input verbatim to stdin, in order, and
// then closes stdin.
func (p *Process) WriteInputWhenRequested(inputs ...string) error {
	p.mu.Lock()
	switch {
	case p.state == StateIdle:
		p.mu.Unlock()
		return ErrProcessNotStarted
	case p.state == StateFinished:
		p.mu.Unlock()
		return ErrProcessFinished
	case p.stdinClosed:
		p.mu.Unlock()
		return ErrInputClosed
	}
	stdin := p.stdin
	p.stdinClosed = true
	ctx := p.ctx
	p.mu.Unlock()

	for i, one := range inputs {
		if _, err := io.WriteString(stdin, one); err != nil {
			_ = stdin.Close()
			return fmt.Errorf("write input #%d: %w", i, err)
		}
	}
	p.logger.CtxTrace(ctx, "[process] wrote %d input(s), closing stdin", len(inputs))
	return stdin.Close()
}

// OnFinish registers a consumer of the terminal Output. A consumer registered
// after the process finished is called immediately with the cached result.
func (p *Process) OnFinish(fn func(Output)) *Process {
	if fn == nil {
		return p
	}
	p.mu.Lock()
	if p.state == StateFinished {
		out := p.output
		p.mu.Unlock()
		fn(out)
		return p
	}
	p.consumers = append(p.consumers, fn)
	p.mu.Unlock()
	return p
}

// Wait blocks until the process has finished or ctx is done.
func (p *Process) Wait(ctx context.Context) (Output, error) {
	if p.State() == StateIdle {
		return Output{}, ErrProcessNotStarted
	}
	select {
	case <-p.done:
		return p.Result(), nil
	case <-ctx.Done():
		return Output{}, ctx.Err()
	}
}

// Done is closed once the terminal Output is available.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Result returns the current Output; it is final once Done is closed.
func (p *Process) Result() Output {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pid returns the OS process id, or -1 before Run.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Kill terminates the process together with every descendant. The exit event
// still fires afterwards and reports TypeTimedOut with a nil Code.
func (p *Process) Kill() error {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.mu.Unlock()
		return ErrProcessNotStarted
	case StateFinished:
		p.mu.Unlock()
		return nil
	}
	p.killRequested = true
	cmd := p.cmd
	p.mu.Unlock()

	if err := killProcessTree(cmd); err != nil {
		return fmt.Errorf("kill process tree: %w", err)
	}
	return nil
}

func (p *Process) onTimeout() {
	p.mu.Lock()
	ctx := p.ctx
	running := p.state == StateRunning
	p.mu.Unlock()
	if !running {
		return
	}

	p.logger.CtxWarn(ctx, "[process] execution timeout after %v, killing pid=%d", p.timeout, p.Pid())
	if err := p.Kill(); err != nil {
		p.logger.CtxError(ctx, "[process] kill on timeout failed: %v", err)
	}
}

// record classifies one chunk of output: stdout means success, stderr means
// error, and whichever stream spoke last decides.
func (p *Process) record(kind stream, chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateFinished {
		return
	}

	switch kind {
	case streamStdout:
		_, _ = p.stdout.Write(chunk)
		p.output.Type = TypeSuccess
	case streamStderr:
		_, _ = p.stderr.Write(chunk)
		p.output.Type = TypeError
	}
	p.lastStream = kind
}

func (p *Process) wait() {
	waitErr := p.cmd.Wait()

	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}

	out := p.output
	switch p.lastStream {
	case streamStdout:
		out.Data = strings.TrimSpace(p.stdout.String())
	case streamStderr:
		out.Data = strings.TrimSpace(p.stderr.String())
	}

	state := p.cmd.ProcessState
	switch {
	case state == nil:
		code := -1
		out.Code = &code
		out.Type = TypeError
		if out.Data == "" && waitErr != nil {
			out.Data = waitErr.Error()
		}
	case killedByRequest(state, p.killRequested):
		out.Code = nil
		out.Type = TypeTimedOut
	default:
		code, _ := exitStatus(state)
		out.Code = &code
		if out.Type == "" {
			if code == 0 {
				out.Type = TypeSuccess
			} else {
				out.Type = TypeError
			}
		}
	}

	if p.started.IsZero() {
		out.Took = -1
	} else {
		out.Took = time.Since(p.started).Milliseconds()
	}

	p.output = out
	p.state = StateFinished
	consumers := p.consumers
	p.consumers = nil
	ctx := p.ctx
	close(p.done)
	p.mu.Unlock()

	if waitErr != nil && !isExitError(waitErr) {
		p.logger.CtxDebug(ctx, "[process] wait returned: %v", waitErr)
	}
	p.logger.CtxDebug(ctx, "[process] finished type=%s code=%s took=%dms",
		out.Type, formatCode(out.Code), out.Took)

	for _, fn := range consumers {
		fn(out)
	}
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func formatCode(code *int) string {
	if code == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *code)
}

type streamWriter struct {
	p    *Process
	kind stream
}

func (w *streamWriter) Write(b []byte) (int, error) {
	w.p.record(w.kind, b)
	return len(b), nil
}

// tailBuffer keeps the last max bytes written to it. It is guarded by the
// owning Process's mutex.
type tailBuffer struct {
	max  int
	data []byte
}

func newTailBuffer(maxBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = maxStreamBufferBytes
	}
	return &tailBuffer{max: maxBytes}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if over := len(b.data) - b.max; over > 0 {
		b.data = append([]byte(nil), b.data[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
