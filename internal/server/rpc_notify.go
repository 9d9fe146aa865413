package server

import (
	"context"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
)

// RPCNotifier maintains the set of connected websocket jrpc2 servers and
// pushes notifications to all of them.
type RPCNotifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     logger.Logger
}

// NewRPCNotifier creates a new notifier.
func NewRPCNotifier(l logger.Logger) *RPCNotifier {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &RPCNotifier{
		servers: make(map[*jrpc2.Server]struct{}),
		log:     l,
	}
}

// Register adds a server to the broadcast set.
func (n *RPCNotifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.servers[srv] = struct{}{}
}

// Unregister removes a server from the broadcast set.
func (n *RPCNotifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, srv)
}

// Broadcast sends a push notification to all registered servers. Servers
// that fail to receive it are dropped.
func (n *RPCNotifier) Broadcast(method string, params any) {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	var failed []*jrpc2.Server
	for _, srv := range servers {
		if err := srv.Notify(context.Background(), method, params); err != nil {
			n.log.Debug("RPC push failed: %v", err)
			failed = append(failed, srv)
		}
	}
	if len(failed) > 0 {
		n.mu.Lock()
		for _, srv := range failed {
			delete(n.servers, srv)
		}
		n.mu.Unlock()
	}
}

// Count returns the number of registered servers.
func (n *RPCNotifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

// StopAll stops every registered server, closing its connection.
func (n *RPCNotifier) StopAll() {
	n.mu.Lock()
	servers := n.servers
	n.servers = make(map[*jrpc2.Server]struct{})
	n.mu.Unlock()
	for srv := range servers {
		srv.Stop()
	}
}

// Forward pushes every scheduler event as a queue.event notification.
func (n *RPCNotifier) Forward(src warpq.Notifier) {
	for _, t := range warpq.EventTypes {
		src.On(t, func(ev warpq.Event) {
			n.Broadcast(common.NotifyEvent, EventNotification(ev))
		})
	}
}

// EventNotification converts a scheduler event to its wire form. Payloads
// are never pushed, only their size.
func EventNotification(ev warpq.Event) *common.EventNotification {
	out := &common.EventNotification{
		Type:    string(ev.Type),
		Key:     ev.Key,
		Level:   ev.Level,
		Attempt: ev.Attempt,
		Bytes:   int64(len(ev.Payload)),
		At:      ev.At,
	}
	if ev.Elapsed > 0 {
		out.ElapsedMs = ev.Elapsed.Milliseconds()
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}
