//go:build unix

package workerpool

import (
	"os/exec"
	"syscall"
)

// processGroupAttr places the child in its own process group so Cancel
// can kill the whole group (not just the direct child), avoiding orphan
// CLI shells when the CLI itself forks helpers.
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalProcessGroup signals the negative PID, i.e. the whole process
// group rooted at cmd's child.
func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}
