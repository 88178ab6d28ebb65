//go:build windows

package tactile

import (
	"errors"
	"os"
	"os/exec"
)

// setupProcessGroup is a no-op on Windows; only the direct child is killed.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
