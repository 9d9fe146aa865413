//go:build !windows

package warpcli

import (
	"context"
	"net"
)

// localEndpoint is the unix socket the daemon listens on.
func localEndpoint(path string) DaemonURI {
	if path == "" {
		path = socketPath()
	}
	return DaemonURI{Scheme: SchemeUnix, Address: path}
}

func dialPipe(context.Context, string) (net.Conn, error) {
	return nil, ErrPipeNotSupported
}
