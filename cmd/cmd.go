package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/warpdl/warpq/cmd/common"
	wqcommon "github.com/warpdl/warpq/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config-dir",
		Usage:  "configuration directory",
		EnvVar: wqcommon.ConfigDirEnv,
	},
	cli.StringFlag{
		Name:  "daemon-uri",
		Usage: "daemon endpoint: unix:///path, tcp://host:port or pipe://name",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "enable debug logging",
	},
}

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "warpq",
		HelpName:              "warpq",
		Usage:                 "A priority download queue.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "warpq [global options] <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Flags:                 globalFlags,
		Commands: []cli.Command{
			{
				Name:               "daemon",
				Usage:              "run the queue daemon in the foreground",
				Description:        DaemonDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             runDaemon,
			},
			{
				Name:   "stop",
				Usage:  "stop the running daemon",
				Action: stopDaemon,
			},
			{
				Name:                   "add",
				Aliases:                []string{"a"},
				Usage:                  "queue keys on a priority level",
				ArgsUsage:              "<key>...",
				Description:            AddDescription,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 add,
				Flags:                  addFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:               "remove",
				Aliases:            []string{"rm"},
				Usage:              "drop waiting keys",
				ArgsUsage:          "<key>...",
				Description:        RemoveDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             remove,
			},
			{
				Name:               "abort",
				Usage:              "cancel running transfers",
				ArgsUsage:          "<key>...",
				Description:        AbortDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             abort,
			},
			{
				Name:   "abort-all",
				Usage:  "cancel every running transfer",
				Action: abortAll,
			},
			{
				Name:               "has",
				Usage:              "report whether a key is waiting",
				ArgsUsage:          "<key>",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             has,
				Flags:              []cli.Flag{priorityFilterFlag},
			},
			{
				Name:      "priority",
				Usage:     "print the level of a waiting key",
				ArgsUsage: "<key>",
				Action:    priority,
			},
			{
				Name:               "size",
				Usage:              "print the number of waiting keys",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             size,
				Flags:              []cli.Flag{priorityFilterFlag},
			},
			{
				Name:               "status",
				Aliases:            []string{"s"},
				Usage:              "show running and waiting keys",
				Description:        StatusDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             status,
			},
			{
				Name:   "reset",
				Usage:  "drop every waiting key",
				Action: reset,
			},
			{
				Name:               "sort",
				Usage:              "order waiting keys by score",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             sortQueue,
				Flags:              []cli.Flag{priorityFilterFlag},
			},
			{
				Name:                   "history",
				Aliases:                []string{"l"},
				Usage:                  "list recent transfer outcomes",
				Description:            HistoryDescription,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 history,
				Flags:                  historyFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:   "stats",
				Usage:  "print the daemon metrics",
				Action: stats,
			},
			{
				Name:               "watch",
				Aliases:            []string{"w"},
				Usage:              "stream queue events",
				Description:        WatchDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             watch,
				Flags:              watchFlags,
			},
			{
				Name:                   "fetch",
				Aliases:                []string{"f"},
				Usage:                  "download keys without a daemon",
				ArgsUsage:              "[url...]",
				Description:            FetchDescription,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 fetchKeys,
				Flags:                  fetchFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of warpq",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             version,
			},
		},
		Action:      common.Help,
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
