//go:build !windows

package daemon

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isProcessRunning probes pid with signal 0. EPERM means the process exists
// but belongs to another user.
func isProcessRunning(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// terminate asks pid to shut down gracefully.
func terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}
