package warpcli

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
)

const daemonStartTimeout = 5 * time.Second

// spawnFunc starts a detached daemon. Replaced in tests.
var spawnFunc = spawnDaemon

// WaitReady dials until the daemon answers, the token is rejected or
// timeout elapses.
func WaitReady(ctx context.Context, opts *Options, timeout time.Duration) (*Client, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = timeout

	var c *Client
	err := backoff.Retry(func() error {
		var err error
		c, err = Dial(ctx, opts)
		if errors.Is(err, ErrUnauthorized) {
			return &backoff.PermanentError{Err: err}
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// EnsureDaemon connects to the daemon. When nothing answers it runs the
// current executable with args in the background, args being the command
// line that starts the daemon, and waits for it.
func EnsureDaemon(ctx context.Context, opts *Options, args ...string) (*Client, error) {
	c, err := Dial(ctx, opts)
	if err == nil || !errors.Is(err, ErrUnreachable) {
		return c, err
	}
	if err := spawnFunc(args...); err != nil {
		return nil, err
	}
	return WaitReady(ctx, opts, daemonStartTimeout)
}
