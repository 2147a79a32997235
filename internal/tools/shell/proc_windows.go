//go:build windows

package shell

import "os/exec"

// systemShell returns the shell binary and its command flag.
func systemShell() (string, string) {
	return "cmd", "/C"
}

// setProcessGroup is a no-op on Windows; child cleanup relies on the exec
// package's default process kill.
func setProcessGroup(cmd *exec.Cmd) {}

// terminate kills the command process. Grandchildren are not tracked on
// Windows without job objects.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
