package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/warpq"
)

const testSecret = "test-rpc-secret"

// holdTransport keeps every transfer open until it is cancelled.
var holdTransport = warpq.TransportFunc(func(ctx context.Context, _ string, _ *warpq.TransportSettings) (*warpq.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
})

type fakeHistory struct {
	entries []common.HistoryEntry
	err     error
	limit   int
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]common.HistoryEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

func newTestScheduler(t *testing.T, concurrency int) *warpq.Scheduler {
	t.Helper()
	s := warpq.New(holdTransport, &warpq.Options{
		PriorityLevels:      3,
		ConcurrentDownloads: concurrency,
		TickInterval:        time.Hour,
	})
	t.Cleanup(func() {
		s.AbortAll()
		s.Close()
	})
	return s
}

func newTestRPCServer(t *testing.T, s *warpq.Scheduler, h History) *RPCServer {
	t.Helper()
	rs := NewRPCServer(&RPCConfig{
		Secret:    testSecret,
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildType: "release",
	}, s, h, nil)
	t.Cleanup(func() { rs.Close() })
	return rs
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// rpcCall posts a JSON-RPC request to the handler and decodes the response.
func rpcCall(t *testing.T, h http.Handler, method string, params any) rpcResponse {
	t.Helper()
	body := map[string]any{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		body["params"] = params
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, common.RPCPath, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("%s: HTTP %d: %s", method, rr.Code, rr.Body.String())
	}
	raw, _ := io.ReadAll(rr.Result().Body)
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("%s: decode %s: %v", method, raw, err)
	}
	return resp
}

func mustResult(t *testing.T, resp rpcResponse, out any) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		t.Fatalf("decode result %s: %v", resp.Result, err)
	}
}

func wantCode(t *testing.T, resp rpcResponse, code int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error %d, got result %s", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Fatalf("error code = %d (%s), want %d", resp.Error.Code, resp.Error.Message, code)
	}
}

func intp(v int) *int { return &v }

// waitUntil polls cond for up to two seconds.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
