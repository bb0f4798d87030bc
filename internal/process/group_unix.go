//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the client in its own process group and kills the
// whole group on cancellation, so wrapper scripts do not outlive the deadline.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
