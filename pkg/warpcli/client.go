// Package warpcli is the client of the warpq daemon. It speaks JSON-RPC 2.0
// over a websocket reached through the local socket, a named pipe or TCP.
package warpcli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/hashicorp/go-multierror"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/logger"
)

const readLimit = 16 << 20

var (
	// ErrUnreachable is returned when no endpoint accepted the connection.
	ErrUnreachable = errors.New("warpcli: daemon unreachable")
	// ErrUnauthorized is returned when the daemon rejected the token.
	ErrUnauthorized = errors.New("warpcli: daemon rejected the token")
)

// Options configures how the client reaches the daemon.
type Options struct {
	// URI pins a single endpoint, e.g. unix:///tmp/warpq.sock or
	// tcp://127.0.0.1:3849. Empty tries the local socket then TCP.
	URI string
	// SocketPath overrides the unix socket. Ignored on Windows.
	SocketPath string
	// TCPAddr overrides the TCP fallback address.
	TCPAddr string
	// ForceTCP skips the local socket.
	ForceTCP bool
	// Token is sent as a bearer token.
	Token       string
	DialTimeout time.Duration
	Logger      logger.Logger
}

func applyOptionDefaults(opts *Options) Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.TCPAddr == "" {
		o.TCPAddr = tcpAddress()
	}
	if !o.ForceTCP {
		o.ForceTCP = forceTCP()
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = common.DefaultDialTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
	return o
}

// endpoints lists the addresses to try, in order.
func (o *Options) endpoints() ([]DaemonURI, error) {
	if o.URI != "" {
		u, err := ParseDaemonURI(o.URI)
		if err != nil {
			return nil, err
		}
		return []DaemonURI{*u}, nil
	}
	tcp := DaemonURI{Scheme: SchemeTCP, Address: o.TCPAddr}
	if o.ForceTCP {
		return []DaemonURI{tcp}, nil
	}
	return []DaemonURI{localEndpoint(o.SocketPath), tcp}, nil
}

// EventHandler receives events pushed by the daemon.
type EventHandler func(*common.EventNotification)

// Client is a connection to the daemon. It is safe for concurrent use.
type Client struct {
	rpc      *jrpc2.Client
	ch       *wsChannel
	endpoint DaemonURI
	log      logger.Logger

	mu       sync.RWMutex
	handlers []EventHandler
}

// Dial connects to the first endpoint that answers.
func Dial(ctx context.Context, opts *Options) (*Client, error) {
	o := applyOptionDefaults(opts)
	eps, err := o.endpoints()
	if err != nil {
		return nil, err
	}
	var result *multierror.Error
	for _, ep := range eps {
		c, err := dialEndpoint(ctx, ep, &o)
		if err == nil {
			o.Logger.Debug("Connected to daemon at %s", ep)
			return c, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		o.Logger.Debug("Connecting to %s failed: %v", ep, err)
		result = multierror.Append(result, fmt.Errorf("%s: %w", ep, err))
	}
	return nil, fmt.Errorf("%w: %v", ErrUnreachable, result.ErrorOrNil())
}

func dialEndpoint(ctx context.Context, ep DaemonURI, o *Options) (*Client, error) {
	dctx, cancel := context.WithTimeout(ctx, o.DialTimeout)
	defer cancel()

	hc := &http.Client{Transport: &http.Transport{DialContext: dialContext(ep)}}
	conn, resp, err := cws.Dial(dctx, wsURL(ep), &cws.DialOptions{
		HTTPClient: hc,
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + o.Token}},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	conn.SetReadLimit(readLimit)

	c := &Client{ch: newWSChannel(conn), endpoint: ep, log: o.Logger}
	c.rpc = jrpc2.NewClient(c.ch, &jrpc2.ClientOptions{OnNotify: c.dispatch})
	return c, nil
}

// Endpoint returns the address the client is connected to.
func (c *Client) Endpoint() DaemonURI {
	return c.endpoint
}

// OnEvent registers h for every queue event pushed by the daemon.
func (c *Client) OnEvent(h EventHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

func (c *Client) dispatch(req *jrpc2.Request) {
	if req.Method() != common.NotifyEvent {
		c.log.Debug("Ignoring notification %s", req.Method())
		return
	}
	var ev common.EventNotification
	if err := req.UnmarshalParams(&ev); err != nil {
		c.log.Warning("Malformed %s notification: %v", common.NotifyEvent, err)
		return
	}
	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()
	for _, h := range handlers {
		h(&ev)
	}
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.ch.done
}

// Close ends the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}
