package main

import (
	"context"
	"fmt"
	"os"

	"github.com/programme-lv/runner/internal/xdg"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "runner",
		Usage: "compile, run and check submissions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to runner.toml",
				Value:   xdg.New().ConfigFile(),
				Sources: cli.EnvVars("RUNNER_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			behaveCommand(),
			listenCommand(),
			healthCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
