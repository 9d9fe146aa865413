package common

import "time"

const (
	// TCPHost is the loopback address the TCP fallback listens on.
	TCPHost = "127.0.0.1"

	// DefaultTCPPort is used when the unix socket or named pipe is unavailable.
	DefaultTCPPort = 3849

	// SocketName is the file name of the daemon socket in the temp directory.
	SocketName = "warpq.sock"

	// RPCPath serves JSON-RPC over plain HTTP POST.
	RPCPath = "/jsonrpc"

	// RPCWebSocketPath serves JSON-RPC over a websocket with push notifications.
	RPCWebSocketPath = "/jsonrpc/ws"

	// DefaultDialTimeout bounds a single connection attempt to the daemon.
	DefaultDialTimeout = 2 * time.Second
)

// RPC method names.
const (
	MethodAdd             = "queue.add"
	MethodRemove          = "queue.remove"
	MethodAbort           = "queue.abort"
	MethodAbortAll        = "queue.abortAll"
	MethodHas             = "queue.has"
	MethodPriority        = "queue.priority"
	MethodSize            = "queue.size"
	MethodSizePerPriority = "queue.sizePerPriority"
	MethodIsEmpty         = "queue.isEmpty"
	MethodStatus          = "queue.status"
	MethodReset           = "queue.reset"
	MethodSort            = "queue.sort"
	MethodJournalList     = "journal.list"
	MethodVersion         = "system.getVersion"
	MethodStats           = "system.stats"

	// NotifyEvent is pushed to websocket clients for every scheduler event.
	NotifyEvent = "queue.event"
)

// JSON-RPC error codes returned by the daemon on top of the standard ones.
const (
	CodeKeyNotFound = -32001
	CodeNotInFlight = -32002
	CodeUnavailable = -32003
)
