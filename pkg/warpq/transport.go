package warpq

import (
	"context"
	"time"
)

// TransportSettings is handed to the Transport on every fetch. It plays the
// role of per-request init options; the scheduler never reads it.
type TransportSettings struct {
	// Headers are sent with every request, for protocols that have headers.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// UserAgent overrides the default user agent.
	UserAgent string `yaml:"user_agent,omitempty" json:"userAgent,omitempty"`
	// SpeedLimit caps the read rate of each transfer in bytes per second.
	// Zero means unlimited.
	SpeedLimit int64 `yaml:"-" json:"speedLimit,omitempty"`
	// Proxy is an http, https or socks5 proxy URL.
	Proxy string `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	// SSHKeyPath is the private key used for sftp when the URL has no password.
	SSHKeyPath string `yaml:"ssh_key_path,omitempty" json:"sshKeyPath,omitempty"`
}

// Result is the outcome of a successful fetch.
type Result struct {
	Payload []byte
	Elapsed time.Duration
}

// Transport performs one cancellable fetch per key.
//
// Fetch must return an error wrapping context.Canceled when ctx is cancelled
// before the transfer completes, a *StatusError when the remote end answered
// with a non-success status, and any other error for transport problems.
type Transport interface {
	Fetch(ctx context.Context, key string, settings *TransportSettings) (*Result, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, key string, settings *TransportSettings) (*Result, error)

// Fetch calls f.
func (f TransportFunc) Fetch(ctx context.Context, key string, settings *TransportSettings) (*Result, error) {
	return f(ctx, key, settings)
}
