package cmd

const DESCRIPTION = `
warpq is a priority download queue. Keys are URLs placed on
numbered priority levels, level 0 being the most urgent. A
background daemon downloads a bounded number of them at a time
and picks the next one at random, weighting each level twice as
heavily as the one after it so low priority keys still progress.
`

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Global Options:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const (
	AddDescription = `The add command queues one or more keys on a priority
level. A key that is already waiting only moves when the
requested level is less urgent than its current one. Keys
with a score are ordered by "warpq sort".

Example:
        warpq add -p 1 https://domain.com/file.zip

`
	RemoveDescription = `The remove command drops waiting keys from the queue.
Transfers that already started are not affected, use
"warpq abort" for those.

Example:
        warpq remove https://domain.com/file.zip

`
	AbortDescription = `The abort command cancels running transfers. An aborted
key is not retried.

Example:
        warpq abort https://domain.com/file.zip
        warpq abort-all

`
	StatusDescription = `The status command shows the running transfers and the
keys waiting on every priority level, in pop order.

Example:
        warpq status

`
	HistoryDescription = `The history command lists the most recent transfer
outcomes recorded by the daemon.

Example:
        warpq history -n 20

`
	WatchDescription = `The watch command prints queue events as the daemon
emits them, until interrupted.

Example:
        warpq watch

`
	FetchDescription = `The fetch command downloads keys without a daemon. It
runs its own queue with the configured priority levels and
concurrency and exits once every key finished.

Input files hold one URL per line, optionally followed by a
priority level. Lines starting with # are ignored.

Example:
        warpq fetch -o ./out https://domain.com/a.zip https://domain.com/b.zip
        warpq fetch -i urls.txt

`
	DaemonDescription = `The daemon command runs the queue in the foreground and
serves the other commands. Most commands start it on demand.

Example:
        warpq daemon

`
)
