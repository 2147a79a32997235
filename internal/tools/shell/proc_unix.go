//go:build unix

package shell

import (
	"os/exec"
	"syscall"
)

// systemShell returns the shell binary and its command flag.
func systemShell() (string, string) {
	return "/bin/sh", "-c"
}

// setProcessGroup places the command in its own process group so that
// terminate can kill the whole tree, not just the shell.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate kills the command's entire process group. Called by the exec
// machinery when the timeout context fires.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	// Negative pid targets the process group.
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return nil
	}
	return err
}
