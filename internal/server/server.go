// Package server exposes a warpq Scheduler to local clients over JSON-RPC.
// The daemon listens on a unix socket (a named pipe on Windows) and falls
// back to loopback TCP when that is unavailable.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/warpdl/warpq/pkg/logger"
)

const defaultShutdownGrace = 5 * time.Second

var ErrNotStarted = errors.New("server: not started")

// Options configures the transport of a Server.
type Options struct {
	// SocketPath is the unix socket path. Ignored on Windows.
	SocketPath string
	// TCPAddr is the fallback listen address.
	TCPAddr string
	// ForceTCP skips the unix socket or named pipe.
	ForceTCP bool
	Logger   logger.Logger
}

// Server serves the RPC routes over a local listener.
type Server struct {
	opts  Options
	log   logger.Logger
	rpc   *RPCServer
	http  *http.Server
	ready chan struct{}

	mu       sync.Mutex
	listener net.Listener
	unixPath string

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a Server for rs.
func New(rs *RPCServer, opts *Options) *Server {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
	return &Server{
		opts:  o,
		log:   o.Logger,
		rpc:   rs,
		http:  &http.Server{Handler: rs.Handler(), ReadHeaderTimeout: 10 * time.Second},
		ready: make(chan struct{}),
	}
}

// Ready is closed once the listener is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until ctx is cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	l, err := s.createListener()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	if l.Addr().Network() == "unix" {
		s.unixPath = l.Addr().String()
	}
	s.mu.Unlock()
	s.log.Info("Listening on %s %s", l.Addr().Network(), l.Addr())
	close(s.ready)

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(l) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownGrace)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	}
}

// Shutdown closes websocket sessions, stops accepting requests and waits
// for in-flight HTTP requests until ctx expires. Later calls return the
// result of the first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.listener != nil
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	s.mu.Lock()
	path := s.unixPath
	s.mu.Unlock()

	var result *multierror.Error
	if err := s.rpc.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.http.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("server: shutdown: %w", err))
	}
	if path != "" {
		if err := cleanupSocket(path); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
