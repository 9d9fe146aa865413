package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/internal/config"
	"github.com/warpdl/warpq/internal/daemon"
	"github.com/warpdl/warpq/internal/secret"
	"github.com/warpdl/warpq/pkg/logger"
)

// stopGrace is how long stop waits beyond the daemon shutdown timeout.
const stopGrace = 5 * time.Second

// daemonLogger logs to stderr and, when configured, to the log file too.
func daemonLogger(cfg *config.Config) (logger.Logger, error) {
	console := consoleLogger(cfg)
	if cfg.LogFile == "" {
		return console, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return logger.NewMultiLogger(console, logger.New(f, cfg.Debug)), nil
}

func runDaemon(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := daemonLogger(cfg)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer log.Close()

	token, err := secret.NewStore(cfg.TokenPath(), log).Token()
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}

	r := daemon.New(&daemon.Config{
		Settings:  cfg,
		Token:     token,
		Version:   currentBuildArgs.Version,
		Commit:    currentBuildArgs.Commit,
		BuildType: currentBuildArgs.BuildType,
	}, &daemon.Dependencies{Logger: log})

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-r.Ready():
			log.Info("Listening on %s", r.Addr())
		case <-sctx.Done():
		}
	}()
	return r.Start(sctx)
}

func stopDaemon(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "stop", "load_config", err)
		return nil
	}
	pid, err := daemon.Stop(daemon.NewPIDFile(cfg.PIDPath()), cfg.ShutdownTimeout+stopGrace)
	switch {
	case err == nil:
		fmt.Printf("Daemon (pid %d) stopped.\n", pid)
	case errors.Is(err, daemon.ErrNotRunning):
		fmt.Println("Daemon is not running.")
	default:
		common.PrintRuntimeErr(ctx, "stop", "stop_daemon", err)
	}
	return nil
}
