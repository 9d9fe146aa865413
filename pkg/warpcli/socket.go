package warpcli

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/warpdl/warpq/common"
)

// socketPath returns $WARPQ_SOCKET_PATH or the socket in the temp directory.
func socketPath() string {
	if p := os.Getenv(common.SocketPathEnv); p != "" {
		return p
	}
	return filepath.Join(os.TempDir(), common.SocketName)
}

// tcpPort returns the TCP port from environment or default 3849
func tcpPort() int {
	if port := os.Getenv(common.TCPPortEnv); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p >= 1 && p <= 65535 {
			return p
		}
	}
	return common.DefaultTCPPort
}

// forceTCP reports whether WARPQ_FORCE_TCP is set to 1 or true.
func forceTCP() bool {
	v := os.Getenv(common.ForceTCPEnv)
	return v == "1" || strings.EqualFold(v, "true")
}

func tcpAddress() string {
	return fmt.Sprintf("%s:%d", common.TCPHost, tcpPort())
}

// dialContext connects to u whatever address the HTTP client asks for.
func dialContext(u DaemonURI) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		switch u.Scheme {
		case SchemePipe:
			return dialPipe(ctx, u.Address)
		case SchemeUnix:
			return d.DialContext(ctx, "unix", u.Address)
		default:
			return d.DialContext(ctx, "tcp", u.Address)
		}
	}
}

// wsURL is the websocket URL requested over a connection to u.
func wsURL(u DaemonURI) string {
	host := "warpq"
	if u.Scheme == SchemeTCP {
		host = u.Address
	}
	return "ws://" + host + common.RPCWebSocketPath
}
