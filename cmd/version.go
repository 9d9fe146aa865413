package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/internal/secret"
	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/warpcli"
)

// version prints the CLI build and, when a daemon answers quickly, its build.
func version(ctx *cli.Context) error {
	common.GetVersion(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil
	}
	token, err := secret.NewStore(cfg.TokenPath(), logger.NewNopLogger()).Token()
	if err != nil {
		return nil
	}
	opts := clientOptions(ctx, cfg, token, nil)
	opts.DialTimeout = 500 * time.Millisecond
	client, err := warpcli.Dial(context.Background(), opts)
	if err != nil {
		return nil
	}
	defer client.Close()
	rctx, cancel := rpcContext()
	defer cancel()
	if v, err := client.Version(rctx); err == nil {
		fmt.Printf("Daemon: %s-%s (%s)\n", v.Version, v.BuildType, v.Commit)
	}
	return nil
}
