package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	wqcommon "github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/warpcli"
)

var watchFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "count, n",
		Usage: "exit after this many events (default: run until interrupted)",
	},
}

func watch(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := newClient(ctx, "watch")
	if client == nil {
		return nil
	}
	defer client.Close()

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	streamEvents(sctx, client, ctx.Int("count"))
	return nil
}

// streamEvents prints events until ctx ends, the connection drops or
// limit events were printed. A limit of 0 means no limit.
func streamEvents(ctx context.Context, client *warpcli.Client, limit int) {
	var (
		mu      sync.Mutex
		printed int
	)
	enough := make(chan struct{})
	client.OnEvent(func(ev *wqcommon.EventNotification) {
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && printed >= limit {
			return
		}
		fmt.Println(formatEvent(ev))
		printed++
		if printed == limit {
			close(enough)
		}
	})
	select {
	case <-ctx.Done():
	case <-client.Done():
		fmt.Println("warpq: daemon connection closed")
	case <-enough:
	}
}

func formatEvent(ev *wqcommon.EventNotification) string {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	line := fmt.Sprintf("%s  %-11s  %s", at.Local().Format(time.TimeOnly), ev.Type, ev.Key)
	switch ev.Type {
	case "added":
		line += fmt.Sprintf("  level=%d", ev.Level)
	case "success":
		line += fmt.Sprintf("  size=%s time=%s", humanize.Bytes(uint64(ev.Bytes)), time.Duration(ev.ElapsedMs)*time.Millisecond)
	case "failed":
		line += "  error=" + ev.Error
	}
	return line
}
