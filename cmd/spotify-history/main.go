// Command spotify-history records what a Spotify user listens to and serves
// the history over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "spotify-history",
		Usage:   "Record and browse your Spotify listening history",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				Sources: cli.EnvVars("SPOTIFY_HISTORY_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			pollCommand(),
			loginCommand(),
			historyCommand(),
			migrateCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the poller and the HTTP API until interrupted",
		Action: runServe,
	}
}

func pollCommand() *cli.Command {
	return &cli.Command{
		Name:  "poll",
		Usage: "Run the poller without the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single tick and print its outcome",
			},
		},
		Action: runPoll,
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Authorize with Spotify from the terminal",
		Action: runLogin,
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Print recorded plays, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of plays to show",
				Value:   20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of plays to skip",
			},
		},
		Action: runHistory,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Create or update the database schema",
		Action: runMigrate,
	}
}
