//go:build windows

package process

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const defaultShell = "cmd"

func shellCommand(shell string, command string) *exec.Cmd {
	if shell == "" {
		shell = defaultShell
	}
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(shell), filepath.Ext(shell)))
	if base == "cmd" {
		return exec.Command(shell, "/C", command)
	}
	return exec.Command(shell, "-c", command)
}

func setCommandProcessGroup(cmd *exec.Cmd, hideWindow bool) {
	if cmd == nil {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    hideWindow,
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessTree uses taskkill /T so children started through cmd.exe go too.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pid := strconv.Itoa(cmd.Process.Pid)
	if err := exec.Command("taskkill", "/T", "/F", "/PID", pid).Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func exitStatus(state *os.ProcessState) (code int, signaled bool) {
	return state.ExitCode(), false
}

func killedByRequest(state *os.ProcessState, killRequested bool) bool {
	return killRequested && !state.Success()
}
