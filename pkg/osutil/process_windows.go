//go:build windows

package osutil

import (
	"errors"
	"os"
	"os/exec"
)

// SetProcessGroup is a no-op on Windows.
func SetProcessGroup(_ *exec.Cmd) {}

// SetProcessGroupKill makes context cancellation kill the process. Children
// are not tracked on Windows.
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		err := cmd.Process.Signal(os.Kill)
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return err
	}
}
