package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/pkg/warpcli"
)

var historyFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "limit, n",
		Usage: "number of outcomes to show",
		Value: 20,
	},
}

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := newClient(ctx, "history")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	entries, err := client.History(rctx, ctx.Int("limit"))
	if warpcli.IsUnavailable(err) {
		fmt.Println("warpq: the daemon keeps no history")
		return nil
	}
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "journal_list", err)
		return nil
	}
	if len(entries) == 0 {
		fmt.Println("warpq: no transfers recorded")
		return nil
	}

	txt := "Recent transfers:"
	txt += "\n\n--------------------------------------------------------------------------------"
	txt += "\n|        Finished       | Outcome |   Size   |  Time  |            Key            |"
	txt += "\n|-----------------------|---------|----------|--------|---------------------------|"
	for _, e := range entries {
		size := "-"
		if e.Bytes > 0 {
			size = humanize.Bytes(uint64(e.Bytes))
		}
		took := (time.Duration(e.ElapsedMs) * time.Millisecond).Round(time.Millisecond)
		txt += fmt.Sprintf("\n| %s | %s | %s | %s | %-25s |",
			e.At.Local().Format(time.DateTime),
			common.Beaut(e.Outcome, 7),
			common.Beaut(size, 8),
			common.Beaut(took.String(), 6),
			common.Truncate(e.Key, 25),
		)
		if e.Detail != "" {
			txt += "\n|   " + e.Detail
		}
	}
	txt += "\n--------------------------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}

func stats(ctx *cli.Context) error {
	client := newClient(ctx, "stats")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	m, err := client.Stats(rctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "stats", "system_stats", err)
		return nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, k := range names {
		fmt.Fprintf(&b, "%-24s %g\n", k, m[k])
	}
	fmt.Print(b.String())
	return nil
}
