package warpcli

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/warpdl/warpq/internal/server"
	"github.com/warpdl/warpq/pkg/warpq"
)

const testToken = "cli-test-token"

var holdTransport = warpq.TransportFunc(func(ctx context.Context, _ string, _ *warpq.TransportSettings) (*warpq.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
})

type testDaemon struct {
	sched *warpq.Scheduler
	rpc   *server.RPCServer
	http  *httptest.Server
}

func (d *testDaemon) uri() string {
	return "tcp://" + strings.TrimPrefix(d.http.URL, "http://")
}

func newTestDaemon(t *testing.T, concurrency int) *testDaemon {
	t.Helper()
	s := warpq.New(holdTransport, &warpq.Options{
		PriorityLevels:      3,
		ConcurrentDownloads: concurrency,
		TickInterval:        time.Hour,
	})
	rs := server.NewRPCServer(&server.RPCConfig{Secret: testToken, Version: "0.9.0", Commit: "deadbeef", BuildType: "debug"}, s, nil, nil)
	hs := httptest.NewServer(rs.Handler())
	t.Cleanup(func() {
		rs.Close()
		hs.Close()
		s.AbortAll()
		s.Close()
	})
	return &testDaemon{sched: s, rpc: rs, http: hs}
}

func dialTest(t *testing.T, d *testDaemon) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := Dial(ctx, &Options{URI: d.uri(), Token: testToken})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func intp(v int) *int { return &v }
