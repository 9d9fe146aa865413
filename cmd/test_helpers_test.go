package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/warpdl/warpq/internal/server"
	"github.com/warpdl/warpq/pkg/warpq"
)

const testToken = "cmd-test-token"

// holdTransport keeps every transfer open until it is cancelled.
var holdTransport = warpq.TransportFunc(func(ctx context.Context, _ string, _ *warpq.TransportSettings) (*warpq.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
})

// captureOutput captures stdout and stderr during function execution.
func captureOutput(f func()) (stdout, stderr string) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	var bufOut, bufErr bytes.Buffer
	outDone := make(chan struct{})
	errDone := make(chan struct{})
	go func() { io.Copy(&bufOut, rOut); close(outDone) }()
	go func() { io.Copy(&bufErr, rErr); close(errDone) }()

	f()

	wOut.Close()
	wErr.Close()
	<-outDone
	<-errDone
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	rOut.Close()
	rErr.Close()

	return bufOut.String(), bufErr.String()
}

// assertContains reports a failure with the actual output when expected
// is missing from output.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

type testDaemon struct {
	sched *warpq.Scheduler
	http  *httptest.Server
}

func (d *testDaemon) uri() string {
	return "tcp://" + strings.TrimPrefix(d.http.URL, "http://")
}

// newTestDaemon serves a scheduler over JSON-RPC and points the commands
// at a fresh config directory using testToken.
func newTestDaemon(t *testing.T, concurrency int) *testDaemon {
	t.Helper()
	return newTestDaemonWithHistory(t, concurrency, nil)
}

func newTestDaemonWithHistory(t *testing.T, concurrency int, h server.History) *testDaemon {
	t.Helper()
	t.Setenv("WARPQ_TOKEN", testToken)
	s := warpq.New(holdTransport, &warpq.Options{
		PriorityLevels:      3,
		ConcurrentDownloads: concurrency,
		TickInterval:        time.Hour,
	})
	rs := server.NewRPCServer(&server.RPCConfig{Secret: testToken, Version: "1.2.3", Commit: "abc123", BuildType: "test"}, s, h, nil)
	hs := httptest.NewServer(rs.Handler())
	t.Cleanup(func() {
		rs.Close()
		hs.Close()
		s.AbortAll()
		s.Close()
	})
	return &testDaemon{sched: s, http: hs}
}

// run executes the CLI against d and returns what it printed.
func (d *testDaemon) run(t *testing.T, args ...string) string {
	t.Helper()
	argv := append([]string{"warpq", "--config-dir", t.TempDir(), "--daemon-uri", d.uri()}, args...)
	var err error
	out, _ := captureOutput(func() {
		err = Execute(argv, BuildArgs{Version: "1.0.0", BuildType: "test"})
	})
	if err != nil {
		t.Fatalf("Execute(%v) error = %v", args, err)
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
