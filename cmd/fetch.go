package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/warpdl/warpq/cmd/common"
	"github.com/warpdl/warpq/internal/sink"
	"github.com/warpdl/warpq/pkg/fetch"
	"github.com/warpdl/warpq/pkg/warpq"
)

var fetchFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "input-file, i",
		Usage: "read URLs from a file, one per line with an optional priority",
	},
	cli.IntFlag{
		Name:  "priority, p",
		Usage: "priority level for URLs given as arguments",
	},
	cli.StringFlag{
		Name:  "output, o",
		Usage: "output directory (default: configured output_dir)",
	},
	cli.IntFlag{
		Name:  "concurrency, c",
		Usage: "maximum parallel transfers (default: configured concurrent_downloads)",
	},
	cli.BoolFlag{
		Name:  "quiet, q",
		Usage: "hide the progress bars",
	},
}

// fetchEntry is one key to queue in-process.
type fetchEntry struct {
	key   string
	level int
}

// fetchSummary collects the terminal outcome of every key.
type fetchSummary struct {
	mu        sync.Mutex
	saved     map[string]string
	failed    map[string]error
	aborted   []string
	remaining int
	active    int
	done      chan struct{}
}

func newFetchSummary(total int) *fetchSummary {
	return &fetchSummary{
		saved:     make(map[string]string),
		failed:    make(map[string]error),
		remaining: total,
		done:      make(chan struct{}),
	}
}

func (fs *fetchSummary) start() {
	fs.mu.Lock()
	fs.active++
	fs.mu.Unlock()
}

// idle reports whether every started transfer was recorded.
func (fs *fetchSummary) idle() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.active <= 0
}

// finish records one terminal outcome and closes done after the last key.
func (fs *fetchSummary) finish(record func()) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	record()
	fs.active--
	fs.remaining--
	if fs.remaining == 0 {
		close(fs.done)
	}
}

func fetchEntries(ctx *cli.Context) ([]fetchEntry, error) {
	level := ctx.Int("priority")
	var entries []fetchEntry
	if path := ctx.String("input-file"); path != "" {
		res, err := ParseInputFile(path)
		if err != nil {
			return nil, err
		}
		for _, inv := range res.InvalidLines {
			fmt.Printf("warpq: %s:%d: skipped %q: %s\n", path, inv.LineNumber, inv.Content, inv.Reason)
		}
		for _, e := range res.Entries {
			l := e.Priority
			if l < 0 {
				l = level
			}
			entries = append(entries, fetchEntry{key: e.URL, level: l})
		}
	}
	for _, arg := range ctx.Args() {
		entries = append(entries, fetchEntry{key: arg, level: level})
	}
	seen := make(map[string]bool, len(entries))
	uniq := entries[:0]
	for _, e := range entries {
		if seen[e.key] {
			continue
		}
		seen[e.key] = true
		uniq = append(uniq, e)
	}
	return uniq, nil
}

func fetchKeys(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	entries, err := fetchEntries(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "fetch", "input_file", err)
		return nil
	}
	if len(entries) == 0 {
		return common.PrintErrWithCmdHelp(ctx, errNoURLs)
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "fetch", "load_config", err)
		return nil
	}
	if out := ctx.String("output"); out != "" {
		cfg.OutputDir = out
	}
	if c := ctx.Int("concurrency"); c > 0 {
		cfg.ConcurrentDownloads = c
	}
	for _, e := range entries {
		if e.level < 0 || e.level >= cfg.PriorityLevels {
			common.PrintRuntimeErr(ctx, "fetch", "priority",
				fmt.Errorf("%s: level %d out of range [0, %d)", e.key, e.level, cfg.PriorityLevels))
			return nil
		}
	}

	log := consoleLogger(cfg)
	defer log.Close()

	var out io.Writer = os.Stdout
	if ctx.Bool("quiet") {
		out = io.Discard
	}
	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := runFetch(sctx, out, &fetchRun{
		Transport: fetch.NewRouter(&fetch.RouterOptions{
			KnownHostsPath: cfg.ResolvedKnownHostsPath(),
			Logger:         log,
		}),
		Fs:      afero.NewOsFs(),
		Options: cfg.SchedulerOptions(log),
		Dir:     cfg.OutputDir,
		Entries: entries,
	})
	printFetchSummary(summary)
	if err != nil {
		common.PrintRuntimeErr(ctx, "fetch", "save", err)
	}
	return nil
}

// fetchRun is everything runFetch needs, split out so tests can swap the
// transport and the filesystem.
type fetchRun struct {
	Transport warpq.Transport
	Fs        afero.Fs
	Options   *warpq.Options
	Dir       string
	Entries   []fetchEntry
}

// runFetch queues every entry on a private scheduler and waits until they
// all end. When ctx is cancelled, waiting keys are dropped and running
// transfers aborted.
func runFetch(ctx context.Context, out io.Writer, r *fetchRun) (*fetchSummary, error) {
	sched := warpq.New(r.Transport, r.Options)
	defer sched.Close()
	snk := sink.New(r.Fs, r.Dir, r.Options.Logger)

	p := mpb.New(mpb.WithOutput(out), mpb.WithRefreshRate(150*time.Millisecond))
	qbar := common.NewQueueBar(p, len(r.Entries))
	summary := newFetchSummary(len(r.Entries))

	var (
		mu    sync.Mutex
		bars  = make(map[string]*common.KeyBar)
		saveE error
	)
	keyBar := func(key string) *common.KeyBar {
		mu.Lock()
		defer mu.Unlock()
		kb, ok := bars[key]
		if !ok {
			kb = common.NewKeyBar(p, common.Truncate(sink.FileName(key), 32))
			bars[key] = kb
		}
		return kb
	}

	n := sched.Notifier()
	n.On(warpq.EventDownloading, func(ev warpq.Event) {
		summary.start()
		keyBar(ev.Key)
	})
	n.On(warpq.EventSuccess, func(ev warpq.Event) {
		path, err := snk.Write(ev.Key, ev.Payload)
		if err != nil {
			mu.Lock()
			saveE = multierror.Append(saveE, err)
			mu.Unlock()
			keyBar(ev.Key).Fail("save failed")
			summary.finish(func() { summary.failed[ev.Key] = err })
		} else {
			keyBar(ev.Key).Done(int64(len(ev.Payload)))
			summary.finish(func() { summary.saved[ev.Key] = path })
		}
		qbar.Increment()
	})
	n.On(warpq.EventFailed, func(ev warpq.Event) {
		keyBar(ev.Key).Fail("failed")
		summary.finish(func() { summary.failed[ev.Key] = ev.Err })
		qbar.Increment()
	})
	n.On(warpq.EventAborted, func(ev warpq.Event) {
		keyBar(ev.Key).Fail("aborted")
		summary.finish(func() { summary.aborted = append(summary.aborted, ev.Key) })
		qbar.Increment()
	})

	for _, e := range r.Entries {
		sched.Add(e.key, e.level, warpq.NoScore)
	}

	select {
	case <-summary.done:
	case <-ctx.Done():
		sched.Reset()
		sched.AbortAll()
		for len(sched.InFlight()) > 0 || !summary.idle() {
			time.Sleep(20 * time.Millisecond)
		}
		qbar.Abort(false)
	}
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	return summary, saveE
}

func printFetchSummary(s *fetchSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, path := range s.saved {
		fmt.Printf("%s -> %s\n", key, path)
	}
	for key, err := range s.failed {
		fmt.Printf("%s: %v\n", key, err)
	}
	fmt.Printf("Fetched %d, failed %d, aborted %d", len(s.saved), len(s.failed), len(s.aborted))
	if s.remaining > 0 {
		fmt.Printf(", dropped %d", s.remaining)
	}
	fmt.Println()
}
