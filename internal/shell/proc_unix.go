//go:build unix

package shell

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the child in its own process group so that a
// timeout or cancellation kills everything the shell spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
