//go:build !unix

package workerpool

import (
	"os/exec"
	"syscall"
)

// processGroupAttr has no process-group equivalent wired on non-Unix
// targets; the child is killed directly instead of as a group.
func processGroupAttr() *syscall.SysProcAttr {
	return nil
}

func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
