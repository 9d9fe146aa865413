//go:build windows

package daemon

import (
	"golang.org/x/sys/windows"
)

// isProcessRunning opens pid with the minimal SYNCHRONIZE right.
func isProcessRunning(pid int) bool {
	handle, err := windows.OpenProcess(windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return false
	}
	windows.CloseHandle(handle)
	return true
}

// terminate ends pid. Windows has no SIGTERM; the stop command prefers the
// RPC path and only falls back to this.
func terminate(pid int) error {
	handle, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)
	return windows.TerminateProcess(handle, 1)
}
