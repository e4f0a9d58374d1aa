package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/programme-lv/runner/internal/behave"
	"github.com/programme-lv/runner/internal/worker"
	"github.com/urfave/cli/v3"
)

func behaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "behave",
		Usage:     "run behaviour scenarios from a TOML file",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("expected exactly one scenario file")
			}
			cases, err := behave.Parse(cmd.Args().First())
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			w := worker.New(worker.Options{Strategies: a.strategies, Logger: a.logger})
			failed := 0
			for _, c := range cases {
				resp := w.Handle(ctx, c.Request)
				if err := c.Verify(resp); err != nil {
					failed++
					color.Red("FAIL %s", c.Name)
					fmt.Println(err)
					continue
				}
				color.Green("PASS %s (%dms)", c.Name, resp.TotalTimeMs)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(cases))
			}
			return nil
		},
	}
}
