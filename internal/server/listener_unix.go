//go:build !windows

package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
)

// createListener prefers a unix socket and falls back to loopback TCP.
func (s *Server) createListener() (net.Listener, error) {
	if s.opts.ForceTCP || s.opts.SocketPath == "" {
		return s.listenTCP()
	}
	_ = os.Remove(s.opts.SocketPath)
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.opts.SocketPath, Net: "unix"})
	if err != nil {
		s.log.Warning("Unix socket unavailable (%v), falling back to tcp", err)
		return s.listenTCP()
	}
	setSocketPermissions(s.opts.SocketPath)
	return l, nil
}

func (s *Server) listenTCP() (net.Listener, error) {
	l, err := net.Listen("tcp", s.opts.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen tcp %s: %w", s.opts.TCPAddr, err)
	}
	return l, nil
}

// cleanupSocket removes the unix socket file.
func cleanupSocket(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
