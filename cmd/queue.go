package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli"
	"github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/pkg/warpcli"
)

var (
	addFlags = []cli.Flag{
		cli.IntFlag{
			Name:  "priority, p",
			Usage: "priority level, 0 being the most urgent",
		},
		cli.Float64Flag{
			Name:  "score, s",
			Usage: "tie-break score used by sort, lower first (default: unscored)",
		},
	}

	priorityFilterFlag = cli.IntFlag{
		Name:  "priority, p",
		Usage: "restrict to one level (default: every level)",
	}
)

// levelFilter returns the --priority value, or nil when it was not given.
func levelFilter(ctx *cli.Context) *int {
	if !ctx.IsSet("priority") {
		return nil
	}
	p := ctx.Int("priority")
	return &p
}

func add(ctx *cli.Context) error {
	keys, ok, err := argsOrHelp(ctx, "key")
	if !ok {
		return err
	}
	client := newClient(ctx, "add")
	if client == nil {
		return nil
	}
	defer client.Close()

	var score *float64
	if ctx.IsSet("score") {
		s := ctx.Float64("score")
		score = &s
	}
	level := ctx.Int("priority")
	rctx, cancel := rpcContext()
	defer cancel()
	for _, key := range keys {
		if err := client.Add(rctx, key, level, score); err != nil {
			common.PrintRuntimeErr(ctx, "add", "queue_add", err)
			return nil
		}
		fmt.Printf("Queued %s (priority %d).\n", key, level)
	}
	return nil
}

func remove(ctx *cli.Context) error {
	keys, ok, err := argsOrHelp(ctx, "key")
	if !ok {
		return err
	}
	client := newClient(ctx, "remove")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	for _, key := range keys {
		err := client.Remove(rctx, key)
		switch {
		case warpcli.IsKeyNotFound(err):
			fmt.Printf("%s is not waiting.\n", key)
		case err != nil:
			common.PrintRuntimeErr(ctx, "remove", "queue_remove", err)
			return nil
		default:
			fmt.Printf("Removed %s.\n", key)
		}
	}
	return nil
}

func abort(ctx *cli.Context) error {
	keys, ok, err := argsOrHelp(ctx, "key")
	if !ok {
		return err
	}
	client := newClient(ctx, "abort")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	for _, key := range keys {
		err := client.Abort(rctx, key)
		switch {
		case warpcli.IsNotInFlight(err):
			fmt.Printf("%s is not downloading.\n", key)
		case err != nil:
			common.PrintRuntimeErr(ctx, "abort", "queue_abort", err)
			return nil
		default:
			fmt.Printf("Aborted %s.\n", key)
		}
	}
	return nil
}

func abortAll(ctx *cli.Context) error {
	client := newClient(ctx, "abort-all")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	keys, err := client.AbortAll(rctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "abort-all", "queue_abort_all", err)
		return nil
	}
	if len(keys) == 0 {
		fmt.Println("Nothing is downloading.")
		return nil
	}
	fmt.Printf("Aborted %d transfer(s):\n", len(keys))
	for _, k := range keys {
		fmt.Println("  " + k)
	}
	return nil
}

func has(ctx *cli.Context) error {
	key := ctx.Args().First()
	if key == "" || key == "help" {
		_, _, err := argsOrHelp(ctx, "key")
		return err
	}
	client := newClient(ctx, "has")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	ok, err := client.Has(rctx, key, levelFilter(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "has", "queue_has", err)
		return nil
	}
	if ok {
		fmt.Println("yes")
	} else {
		fmt.Println("no")
	}
	return nil
}

func priority(ctx *cli.Context) error {
	key := ctx.Args().First()
	if key == "" || key == "help" {
		_, _, err := argsOrHelp(ctx, "key")
		return err
	}
	client := newClient(ctx, "priority")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	level, err := client.Priority(rctx, key)
	if err != nil {
		common.PrintRuntimeErr(ctx, "priority", "queue_priority", err)
		return nil
	}
	if level < 0 {
		fmt.Printf("%s is not waiting.\n", key)
		return nil
	}
	fmt.Println(level)
	return nil
}

func size(ctx *cli.Context) error {
	client := newClient(ctx, "size")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	n, err := client.Size(rctx, levelFilter(ctx))
	if err != nil {
		common.PrintRuntimeErr(ctx, "size", "queue_size", err)
		return nil
	}
	fmt.Println(n)
	return nil
}

func status(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client := newClient(ctx, "status")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	st, err := client.Status(rctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "queue_status", err)
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Queue: %s\n", st.Status)
	fmt.Fprintf(&b, "\nDownloading (%d/%d):\n", len(st.InFlight), st.Limit)
	if len(st.InFlight) == 0 {
		b.WriteString("  -\n")
	}
	for _, k := range st.InFlight {
		fmt.Fprintf(&b, "  %s\n", k)
	}
	for level, keys := range st.Levels {
		fmt.Fprintf(&b, "\nLevel %d (%d waiting):\n", level, len(keys))
		for i, k := range keys {
			fmt.Fprintf(&b, "  %3d. %s\n", i+1, k)
		}
	}
	fmt.Print(b.String())
	return nil
}

func reset(ctx *cli.Context) error {
	client := newClient(ctx, "reset")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	if err := client.Reset(rctx); err != nil {
		common.PrintRuntimeErr(ctx, "reset", "queue_reset", err)
		return nil
	}
	fmt.Println("Queue emptied. Running transfers continue.")
	return nil
}

func sortQueue(ctx *cli.Context) error {
	client := newClient(ctx, "sort")
	if client == nil {
		return nil
	}
	defer client.Close()

	rctx, cancel := rpcContext()
	defer cancel()
	level := levelFilter(ctx)
	if err := client.Sort(rctx, level); err != nil {
		common.PrintRuntimeErr(ctx, "sort", "queue_sort", err)
		return nil
	}
	if level == nil {
		fmt.Println("Sorted every level by score.")
	} else {
		fmt.Printf("Sorted level %d by score.\n", *level)
	}
	return nil
}
