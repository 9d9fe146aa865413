package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
)

// Custom JSON-RPC error codes for queue operations.
const (
	codeKeyNotFound   = jrpc2.Code(common.CodeKeyNotFound)
	codeNotInFlight   = jrpc2.Code(common.CodeNotInFlight)
	codeUnavailable   = jrpc2.Code(common.CodeUnavailable)
	codeInvalidParams = jrpc2.Code(-32602)
)

// RPCConfig holds configuration for the JSON-RPC endpoints.
type RPCConfig struct {
	Secret    string // Auth token (required -- empty means every request is rejected)
	Version   string
	Commit    string
	BuildType string
}

// History lists recorded transfer outcomes.
type History interface {
	List(ctx context.Context, limit int) ([]common.HistoryEntry, error)
}

// RPCServer exposes a Scheduler over JSON-RPC 2.0, both as plain HTTP POST
// and over websockets with push notifications.
type RPCServer struct {
	methods  handler.Map
	bridge   jhttp.Bridge
	secret   string
	version  common.VersionResult
	queue    *warpq.Scheduler
	history  History
	notifier *RPCNotifier
	log      logger.Logger
}

// NewRPCServer creates the method handlers for q. h may be nil, in which
// case journal.list reports the journal as unavailable. Every scheduler
// event is pushed to connected websocket clients.
func NewRPCServer(cfg *RPCConfig, q *warpq.Scheduler, h History, l logger.Logger) *RPCServer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	rs := &RPCServer{
		secret: cfg.Secret,
		version: common.VersionResult{
			Version:   cfg.Version,
			Commit:    cfg.Commit,
			BuildType: cfg.BuildType,
		},
		queue:    q,
		history:  h,
		notifier: NewRPCNotifier(l),
		log:      l,
	}
	rs.methods = handler.Map{
		common.MethodAdd:             handler.New(rs.queueAdd),
		common.MethodRemove:          handler.New(rs.queueRemove),
		common.MethodAbort:           handler.New(rs.queueAbort),
		common.MethodAbortAll:        handler.New(rs.queueAbortAll),
		common.MethodHas:             handler.New(rs.queueHas),
		common.MethodPriority:        handler.New(rs.queuePriority),
		common.MethodSize:            handler.New(rs.queueSize),
		common.MethodSizePerPriority: handler.New(rs.queueSizePerPriority),
		common.MethodIsEmpty:         handler.New(rs.queueIsEmpty),
		common.MethodStatus:          handler.New(rs.queueStatus),
		common.MethodReset:           handler.New(rs.queueReset),
		common.MethodSort:            handler.New(rs.queueSort),
		common.MethodJournalList:     handler.New(rs.journalList),
		common.MethodVersion:         handler.New(rs.systemGetVersion),
		common.MethodStats:           handler.New(rs.systemStats),
	}
	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	rs.notifier.Forward(q.Notifier())
	return rs
}

// Handler returns the authenticated JSON-RPC routes.
func (rs *RPCServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(common.RPCPath, requireToken(rs.secret, rs.bridge))
	mux.Handle(common.RPCWebSocketPath, requireToken(rs.secret, http.HandlerFunc(rs.serveWebSocket)))
	return mux
}

// Notifier returns the broadcaster of websocket push notifications.
func (rs *RPCServer) Notifier() *RPCNotifier {
	return rs.notifier
}

// Close ends the websocket sessions and releases the HTTP bridge.
func (rs *RPCServer) Close() error {
	rs.notifier.StopAll()
	return rs.bridge.Close()
}

func invalidParams(msg string) error {
	return &jrpc2.Error{Code: codeInvalidParams, Message: msg}
}

func (rs *RPCServer) key(k string) (string, error) {
	k = strings.TrimSpace(k)
	if k == "" {
		return "", invalidParams("missing required param: key")
	}
	return k, nil
}

// level resolves an optional priority; nil selects every level.
func (rs *RPCServer) level(p *int) (int, error) {
	if p == nil {
		return warpq.AnyLevel, nil
	}
	if *p < 0 || *p >= rs.queue.Levels() {
		return 0, &jrpc2.Error{
			Code:    codeInvalidParams,
			Message: "priority out of range",
		}
	}
	return *p, nil
}

func (rs *RPCServer) queueAdd(_ context.Context, p *common.AddParams) (bool, error) {
	key, err := rs.key(p.Key)
	if err != nil {
		return false, err
	}
	level, err := rs.level(&p.Priority)
	if err != nil {
		return false, err
	}
	score := warpq.NoScore
	if p.Score != nil {
		score = *p.Score
	}
	rs.queue.Add(key, level, score)
	return true, nil
}

func (rs *RPCServer) queueRemove(_ context.Context, p *common.KeyParams) (bool, error) {
	key, err := rs.key(p.Key)
	if err != nil {
		return false, err
	}
	if !rs.queue.Remove(key) {
		return false, &jrpc2.Error{Code: codeKeyNotFound, Message: "key not queued"}
	}
	return true, nil
}

func (rs *RPCServer) queueAbort(_ context.Context, p *common.KeyParams) (bool, error) {
	key, err := rs.key(p.Key)
	if err != nil {
		return false, err
	}
	if !rs.queue.Abort(key) {
		return false, &jrpc2.Error{Code: codeNotInFlight, Message: "key not in flight"}
	}
	return true, nil
}

func (rs *RPCServer) queueAbortAll(_ context.Context) ([]string, error) {
	keys := rs.queue.InFlight()
	rs.queue.AbortAll()
	return keys, nil
}

func (rs *RPCServer) queueHas(_ context.Context, p *common.HasParams) (bool, error) {
	key, err := rs.key(p.Key)
	if err != nil {
		return false, err
	}
	level, err := rs.level(p.Priority)
	if err != nil {
		return false, err
	}
	return rs.queue.Has(key, level), nil
}

func (rs *RPCServer) queuePriority(_ context.Context, p *common.KeyParams) (*common.PriorityResult, error) {
	key, err := rs.key(p.Key)
	if err != nil {
		return nil, err
	}
	return &common.PriorityResult{Key: key, Priority: rs.queue.GetPriority(key)}, nil
}

func (rs *RPCServer) queueSize(_ context.Context, p *common.LevelParams) (int, error) {
	level, err := rs.level(p.Priority)
	if err != nil {
		return 0, err
	}
	return rs.queue.Size(level), nil
}

func (rs *RPCServer) queueSizePerPriority(_ context.Context) ([]int, error) {
	return rs.queue.SizePerPriority(), nil
}

func (rs *RPCServer) queueIsEmpty(_ context.Context) (bool, error) {
	return rs.queue.IsEmpty(), nil
}

func (rs *RPCServer) queueStatus(_ context.Context) (*common.StatusResult, error) {
	snap := rs.queue.Snapshot()
	return &common.StatusResult{
		Status:   rs.queue.Status(),
		Levels:   snap.Levels,
		InFlight: snap.InFlight,
		Limit:    snap.Limit,
	}, nil
}

func (rs *RPCServer) queueReset(_ context.Context) (bool, error) {
	rs.queue.Reset()
	return true, nil
}

func (rs *RPCServer) queueSort(_ context.Context, p *common.LevelParams) (bool, error) {
	level, err := rs.level(p.Priority)
	if err != nil {
		return false, err
	}
	rs.queue.SortByScore(level)
	return true, nil
}

func (rs *RPCServer) journalList(ctx context.Context, p *common.HistoryParams) (*common.HistoryResult, error) {
	if rs.history == nil {
		return nil, &jrpc2.Error{Code: codeUnavailable, Message: "journal disabled"}
	}
	entries, err := rs.history.List(ctx, p.Limit)
	if err != nil {
		rs.log.Error("journal.list: %v", err)
		return nil, &jrpc2.Error{Code: codeUnavailable, Message: err.Error()}
	}
	return &common.HistoryResult{Entries: entries}, nil
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	v := rs.version
	return &v, nil
}

func (rs *RPCServer) systemStats(_ context.Context) (*common.StatsResult, error) {
	return &common.StatsResult{Metrics: rs.queue.Stats()}, nil
}
