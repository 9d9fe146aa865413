//go:build windows

package server

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
	"github.com/warpdl/warpq/common"
)

// pipeSecurityDescriptor grants full control to SYSTEM, Administrators and
// the creator of the pipe only.
const pipeSecurityDescriptor = "D:(A;;GA;;;SY)(A;;GA;;;BA)(A;;GA;;;CO)"

// createListener prefers a named pipe and falls back to loopback TCP.
func (s *Server) createListener() (net.Listener, error) {
	if s.opts.ForceTCP {
		return s.listenTCP()
	}
	path := common.PipePath()
	l, err := winio.ListenPipe(path, &winio.PipeConfig{SecurityDescriptor: pipeSecurityDescriptor})
	if err != nil {
		s.log.Warning("Named pipe %s unavailable (%v), falling back to tcp", path, err)
		return s.listenTCP()
	}
	return l, nil
}

func (s *Server) listenTCP() (net.Listener, error) {
	l, err := net.Listen("tcp", s.opts.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen tcp %s: %w", s.opts.TCPAddr, err)
	}
	return l, nil
}

// cleanupSocket is a no-op: named pipes vanish with their listener.
func cleanupSocket(string) error {
	return nil
}
