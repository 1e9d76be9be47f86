//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

const defaultShell = "sh"

func shellCommand(shell string, command string) *exec.Cmd {
	if shell == "" {
		shell = defaultShell
	}
	return exec.Command(shell, "-c", command)
}

// setCommandProcessGroup puts the child in its own process group so the whole
// tree can be signalled at once. hideWindow only matters on Windows.
func setCommandProcessGroup(cmd *exec.Cmd, _ bool) {
	if cmd == nil {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessTree(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// exitStatus maps a finished process onto an exit code. Signal deaths report
// 128+signal, matching shell convention.
func exitStatus(state *os.ProcessState) (code int, signaled bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return state.ExitCode(), false
	}
	if ws.Signaled() {
		return 128 + int(ws.Signal()), true
	}
	return ws.ExitStatus(), false
}

func killedByRequest(state *os.ProcessState, killRequested bool) bool {
	_, signaled := exitStatus(state)
	return killRequested && signaled
}
