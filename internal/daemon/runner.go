// Package daemon wires the scheduler, its transports, the payload sink, the
// outcome journal and the RPC server into one long running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/afero"
	"github.com/warpdl/warpq/internal/config"
	"github.com/warpdl/warpq/internal/journal"
	"github.com/warpdl/warpq/internal/server"
	"github.com/warpdl/warpq/internal/sink"
	"github.com/warpdl/warpq/pkg/fetch"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpq"
	"golang.org/x/sync/errgroup"
)

// Sentinel errors for the daemon runner.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running daemon.
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning is returned when Shutdown() is called on a stopped daemon.
	ErrNotRunning = errors.New("daemon is not running")

	// ErrShutdownTimeout is returned when shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")

	// ErrMissingToken is returned when the RPC token is empty.
	ErrMissingToken = errors.New("daemon: rpc token is required")
)

// Config holds the configuration for the daemon runner.
type Config struct {
	// Settings is the loaded configuration file.
	Settings *config.Config

	// Token authenticates RPC clients.
	Token string

	Version   string
	Commit    string
	BuildType string

	// DisableJournal skips opening the SQLite journal.
	DisableJournal bool
}

// Dependencies holds the external dependencies for the daemon runner.
// Nil fields get production defaults.
type Dependencies struct {
	// Transport defaults to a fetch.Router.
	Transport warpq.Transport
	// Fs receives payloads. Defaults to the OS filesystem.
	Fs       afero.Fs
	Logger   logger.Logger
	Registry metrics.Registry
}

// Runner manages the daemon lifecycle.
type Runner struct {
	config *Config
	deps   *Dependencies

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	ready     chan struct{}
	readyOnce sync.Once

	sched   *warpq.Scheduler
	journal *journal.Journal
	rpc     *server.RPCServer
	srv     *server.Server
	pid     *PIDFile
}

// New creates a runner. Components are built by Start.
func New(cfg *Config, deps *Dependencies) *Runner {
	return &Runner{
		config: applyConfigDefaults(cfg),
		deps:   applyDependencyDefaults(deps),
		ready:  make(chan struct{}),
	}
}

func applyConfigDefaults(cfg *Config) *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Settings == nil {
		cfg.Settings = config.Default("")
	}
	return cfg
}

func applyDependencyDefaults(deps *Dependencies) *Dependencies {
	if deps == nil {
		deps = &Dependencies{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Registry == nil {
		deps.Registry = metrics.NewRegistry()
	}
	return deps
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config {
	return r.config
}

// Ready is closed once the RPC server accepts connections.
func (r *Runner) Ready() <-chan struct{} {
	return r.ready
}

// Scheduler returns the running scheduler, or nil before Start.
func (r *Runner) Scheduler() *warpq.Scheduler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched
}

// Addr returns the listening address, or nil before the server is ready.
func (r *Runner) Addr() net.Addr {
	srv := r.Server()
	if srv == nil {
		return nil
	}
	return srv.Addr()
}

// Server returns the RPC server, or nil before Start.
func (r *Runner) Server() *server.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.srv
}

// Start builds the components and serves until ctx is cancelled or
// Shutdown is called. A clean stop returns nil.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	if r.config.Token == "" {
		r.mu.Unlock()
		return ErrMissingToken
	}
	if err := r.build(); err != nil {
		r.mu.Unlock()
		return err
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.running = true
	r.mu.Unlock()

	log := r.deps.Logger
	log.Info("Daemon started (levels %d, concurrency %d)", r.sched.Levels(), r.sched.Concurrency())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.srv.Start(gctx)
	})
	g.Go(func() error {
		select {
		case <-r.srv.Ready():
			r.readyOnce.Do(func() { close(r.ready) })
		case <-gctx.Done():
		}
		return nil
	})
	runErr := g.Wait()

	closeErr := r.closeComponents()
	r.mu.Lock()
	r.running = false
	close(r.done)
	r.mu.Unlock()
	log.Info("Daemon stopped")

	var result *multierror.Error
	if runErr != nil {
		result = multierror.Append(result, runErr)
	}
	if closeErr != nil {
		result = multierror.Append(result, closeErr)
	}
	return result.ErrorOrNil()
}

// build creates every component. Caller must hold the mutex.
func (r *Runner) build() error {
	settings := r.config.Settings
	log := r.deps.Logger

	if settings.Dir != "" {
		r.pid = NewPIDFile(settings.PIDPath())
		if err := r.pid.Acquire(); err != nil {
			return err
		}
	}

	transport := r.deps.Transport
	if transport == nil {
		transport = fetch.NewRouter(&fetch.RouterOptions{
			KnownHostsPath: settings.ResolvedKnownHostsPath(),
			Logger:         log,
		})
	}

	opts := settings.SchedulerOptions(log)
	opts.Registry = r.deps.Registry
	sched := warpq.New(transport, opts)
	sink.New(r.deps.Fs, settings.OutputDir, log).Attach(sched.Notifier())

	var history server.History
	if !r.config.DisableJournal {
		j, err := journal.Open(settings.ResolvedJournalPath(), log)
		if err != nil {
			sched.Close()
			r.releasePID()
			return err
		}
		j.Attach(sched.Notifier())
		r.journal = j
		history = j
	}

	r.sched = sched
	r.rpc = server.NewRPCServer(&server.RPCConfig{
		Secret:    r.config.Token,
		Version:   r.config.Version,
		Commit:    r.config.Commit,
		BuildType: r.config.BuildType,
	}, sched, history, log)
	r.srv = server.New(r.rpc, &server.Options{
		SocketPath: settings.ResolvedSocketPath(),
		TCPAddr:    settings.TCPAddress(),
		ForceTCP:   settings.ForceTCP,
		Logger:     log,
	})
	return nil
}

// closeComponents aborts in-flight transfers and releases every component.
func (r *Runner) closeComponents() error {
	var result *multierror.Error
	r.sched.AbortAll()
	if err := r.sched.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close journal: %w", err))
		}
	}
	if err := r.releasePID(); err != nil {
		result = multierror.Append(result, fmt.Errorf("remove pid file: %w", err))
	}
	return result.ErrorOrNil()
}

func (r *Runner) releasePID() error {
	if r.pid == nil {
		return nil
	}
	return r.pid.Remove()
}

// Shutdown stops a running daemon and waits for Start to return.
// Returns ErrShutdownTimeout if that takes longer than the configured
// shutdown timeout.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	timeout := r.config.Settings.ShutdownTimeout
	if timeout <= 0 {
		<-done
		return nil
	}
	return waitWithTimeout(done, timeout)
}

func waitWithTimeout(done <-chan struct{}, timeout time.Duration) error {
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// IsRunning returns true if the daemon is currently running.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
