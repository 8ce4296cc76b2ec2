//go:build unix

package osutil

import (
	"errors"
	"os/exec"
	"syscall"
)

// SetProcessGroup runs the command in its own process group so that helpers
// it spawns (git remote helpers, credential helpers) die with it.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// SetProcessGroupKill makes context cancellation kill the whole process group.
// Must be called after SetProcessGroup and before cmd.Start().
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
}
