package daemon

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

var errStillRunning = errors.New("daemon: process still running")

// Stop asks the daemon recorded in p to terminate and waits up to timeout
// for it to exit. It returns the pid it signalled.
func Stop(p *PIDFile, timeout time.Duration) (int, error) {
	pid, running := p.Running()
	if !running {
		return pid, ErrNotRunning
	}
	if err := terminate(pid); err != nil {
		return pid, fmt.Errorf("daemon: signal %d: %w", pid, err)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = timeout
	err := backoff.Retry(func() error {
		if isProcessRunning(pid) {
			return errStillRunning
		}
		return nil
	}, b)
	if err != nil {
		return pid, ErrShutdownTimeout
	}
	return pid, nil
}
