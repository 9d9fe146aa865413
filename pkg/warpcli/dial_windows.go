//go:build windows

package warpcli

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
	"github.com/warpdl/warpq/common"
)

// localEndpoint is the named pipe the daemon listens on. Socket paths do
// not apply on Windows.
func localEndpoint(string) DaemonURI {
	return DaemonURI{Scheme: SchemePipe, Address: common.PipePath()}
}

func dialPipe(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
