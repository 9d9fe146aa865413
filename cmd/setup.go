package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/internal/config"
	"github.com/warpdl/warpq/internal/secret"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpcli"
)

// rpcTimeout bounds a single command round trip to the daemon.
const rpcTimeout = 30 * time.Second

// ensureDaemon is replaced in tests.
var ensureDaemon = warpcli.EnsureDaemon

// stderr is io.Writer only, so closing a logger never closes the real stderr.
type stderr struct{ io.Writer }

func configDir(ctx *cli.Context) (string, error) {
	if dir := ctx.GlobalString("config-dir"); dir != "" {
		return dir, nil
	}
	return config.DefaultDir()
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	dir, err := configDir(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if ctx.GlobalBool("debug") {
		cfg.Debug = true
	}
	return cfg, nil
}

func consoleLogger(cfg *config.Config) logger.Logger {
	return logger.New(stderr{os.Stderr}, cfg.Debug)
}

// clientOptions derives the connection settings from the configuration.
func clientOptions(ctx *cli.Context, cfg *config.Config, token string, log logger.Logger) *warpcli.Options {
	return &warpcli.Options{
		URI:        ctx.GlobalString("daemon-uri"),
		SocketPath: cfg.ResolvedSocketPath(),
		TCPAddr:    cfg.TCPAddress(),
		ForceTCP:   cfg.ForceTCP,
		Token:      token,
		Logger:     log,
	}
}

// daemonArgs is the command line that starts a daemon sharing this
// invocation's configuration.
func daemonArgs(cfg *config.Config) []string {
	args := []string{"--config-dir", cfg.Dir}
	if cfg.Debug {
		args = append(args, "--debug")
	}
	return append(args, "daemon")
}

// newClient connects to the daemon for cmd, starting it unless an explicit
// --daemon-uri was given. Errors are printed and reported as nil.
func newClient(ctx *cli.Context, cmd string) *warpcli.Client {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, cmd, "load_config", err)
		return nil
	}
	log := consoleLogger(cfg)
	token, err := secret.NewStore(cfg.TokenPath(), log).Token()
	if err != nil {
		common.PrintRuntimeErr(ctx, cmd, "token", err)
		return nil
	}
	opts := clientOptions(ctx, cfg, token, log)

	var client *warpcli.Client
	if opts.URI != "" {
		client, err = warpcli.Dial(context.Background(), opts)
	} else {
		client, err = ensureDaemon(context.Background(), opts, daemonArgs(cfg)...)
	}
	if err != nil {
		common.PrintRuntimeErr(ctx, cmd, "new_client", err)
		return nil
	}
	return client
}

func rpcContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), rpcTimeout)
}

// argsOrHelp returns the positional arguments, printing the command help
// when there are none. ok is false when the caller should stop.
func argsOrHelp(ctx *cli.Context, what string) (args []string, ok bool, err error) {
	first := ctx.Args().First()
	if first == "help" {
		return nil, false, cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if first == "" {
		return nil, false, common.PrintErrWithCmdHelp(ctx, errNoArgs(what))
	}
	return ctx.Args(), true, nil
}
