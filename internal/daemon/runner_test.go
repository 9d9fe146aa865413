package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/internal/config"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
)

const testToken = "test-token"

var payloadTransport = warpq.TransportFunc(func(ctx context.Context, key string, _ *warpq.TransportSettings) (*warpq.Result, error) {
	if strings.Contains(key, "hold") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &warpq.Result{Payload: []byte("payload of " + key), Elapsed: time.Millisecond}, nil
})

func testSettings(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := config.Default(dir)
	c.ForceTCP = true
	c.TCPPort = 0
	c.OutputDir = "/downloads"
	c.TickInterval = 20 * time.Millisecond
	c.ShutdownTimeout = 5 * time.Second
	return c
}

func newTestRunner(t *testing.T, settings *config.Config, fs afero.Fs) *Runner {
	t.Helper()
	return New(&Config{
		Settings: settings,
		Token:    testToken,
		Version:  "1.2.3",
	}, &Dependencies{
		Transport: payloadTransport,
		Fs:        fs,
		Logger:    logger.NewMockLogger(),
	})
}

func startRunner(t *testing.T, r *Runner) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Start(context.Background())
	}()
	select {
	case <-r.Ready():
	case err := <-errCh:
		t.Fatalf("Start() returned early: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("runner never became ready")
	}
	return errCh
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewRunner_NilConfig(t *testing.T) {
	r := New(nil, nil)
	if r == nil {
		t.Fatal("New() with nil config returned nil runner")
	}
	if r.Config().Settings == nil {
		t.Fatal("nil config should fall back to default settings")
	}
	if r.Config().Settings.PriorityLevels != warpq.DefaultPriorityLevels {
		t.Errorf("PriorityLevels = %d, want %d", r.Config().Settings.PriorityLevels, warpq.DefaultPriorityLevels)
	}
	if r.Scheduler() != nil || r.Addr() != nil {
		t.Error("components must not exist before Start")
	}
}

func TestRunner_Start_RequiresToken(t *testing.T) {
	r := New(&Config{Settings: testSettings(t)}, nil)
	if err := r.Start(context.Background()); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("Start() error = %v, want ErrMissingToken", err)
	}
}

func TestRunner_Start_BeginsListening(t *testing.T) {
	settings := testSettings(t)
	r := newTestRunner(t, settings, afero.NewMemMapFs())
	errCh := startRunner(t, r)

	if !r.IsRunning() {
		t.Error("Start() did not set running state")
	}
	if r.Addr() == nil {
		t.Fatal("Addr() is nil after ready")
	}
	pid, err := NewPIDFile(settings.PIDPath()).Read()
	if err != nil || pid != os.Getpid() {
		t.Errorf("pid file = %d, %v; want %d", pid, err, os.Getpid())
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"` + common.MethodIsEmpty + `"}`
	req, _ := http.NewRequest(http.MethodPost, "http://"+r.Addr().String()+common.RPCPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("rpc request: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), `"result":true`) {
		t.Errorf("unexpected rpc response: %s", data)
	}

	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := os.Stat(settings.PIDPath()); !os.IsNotExist(err) {
		t.Errorf("pid file left behind: %v", err)
	}
}

func TestRunner_Start_ReturnsErrorIfAlreadyRunning(t *testing.T) {
	r := newTestRunner(t, testSettings(t), afero.NewMemMapFs())
	startRunner(t, r)
	defer r.Shutdown()

	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunner_Start_RefusesLivePIDFile(t *testing.T) {
	settings := testSettings(t)
	// the parent of the test binary is alive for the whole test
	if err := os.WriteFile(settings.PIDPath(), []byte(strconv.Itoa(os.Getppid())), 0644); err != nil {
		t.Fatal(err)
	}
	r := newTestRunner(t, settings, afero.NewMemMapFs())
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunner_DeliversPayloadAndJournals(t *testing.T) {
	fs := afero.NewMemMapFs()
	settings := testSettings(t)
	r := newTestRunner(t, settings, fs)
	startRunner(t, r)
	defer r.Shutdown()

	r.Scheduler().Add("https://example.com/files/report.pdf", 0, warpq.NoScore)

	target := filepath.Join(settings.OutputDir, "report.pdf")
	waitFor(t, func() bool {
		ok, _ := afero.Exists(fs, target)
		return ok
	})
	data, err := afero.ReadFile(fs, target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload of https://example.com/files/report.pdf" {
		t.Errorf("payload = %q", data)
	}

	r.mu.Lock()
	j := r.journal
	r.mu.Unlock()
	waitFor(t, func() bool {
		entries, err := j.List(context.Background(), 10)
		return err == nil && len(entries) == 1 && entries[0].Outcome == string(warpq.EventSuccess)
	})
}

func TestRunner_Shutdown_AbortsInFlight(t *testing.T) {
	settings := testSettings(t)
	settings.ConcurrentDownloads = 2
	r := New(&Config{Settings: settings, Token: testToken, DisableJournal: true}, &Dependencies{
		Transport: payloadTransport,
		Fs:        afero.NewMemMapFs(),
	})
	errCh := startRunner(t, r)

	aborted := make(chan string, 2)
	r.Scheduler().Notifier().On(warpq.EventAborted, func(ev warpq.Event) {
		aborted <- ev.Key
	})
	r.Scheduler().Add("hold-1", 0, warpq.NoScore)
	r.Scheduler().Add("hold-2", 1, warpq.NoScore)
	waitFor(t, func() bool { return len(r.Scheduler().InFlight()) == 2 })

	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	<-errCh
	for i := 0; i < 2; i++ {
		select {
		case <-aborted:
		case <-time.After(3 * time.Second):
			t.Fatalf("got %d aborted events, want 2", i)
		}
	}
}

func TestRunner_Shutdown_NotRunning(t *testing.T) {
	r := New(nil, nil)
	if err := r.Shutdown(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Shutdown() error = %v, want ErrNotRunning", err)
	}
}

func TestRunner_Context_CancellationStopsRunner(t *testing.T) {
	r := newTestRunner(t, testSettings(t), afero.NewMemMapFs())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Start(ctx)
	}()
	<-r.Ready()
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Start() returned unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
	if r.IsRunning() {
		t.Error("Runner should not be running after context cancellation")
	}
}

func TestWaitWithTimeout(t *testing.T) {
	done := make(chan struct{})
	if err := waitWithTimeout(done, 20*time.Millisecond); !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("waitWithTimeout() = %v, want ErrShutdownTimeout", err)
	}
	close(done)
	if err := waitWithTimeout(done, time.Second); err != nil {
		t.Errorf("waitWithTimeout() = %v, want nil", err)
	}
}
