//go:build !windows

package warpcli

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// spawnDaemon runs the current executable with args in its own process
// group so it survives the CLI.
func spawnDaemon(args ...string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	// Release process so it doesn't become a zombie when it exits
	return cmd.Process.Release()
}
