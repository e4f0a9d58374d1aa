package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/programme-lv/runner/internal/gatherer/termgath"
	"github.com/programme-lv/runner/internal/models"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute one source file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "strategy", Aliases: []string{"s"}, Usage: "strategy name, e.g. cpp-code", Required: true},
			&cli.StringFlag{Name: "tests", Usage: "directory of NAME.in / NAME.ans pairs; without it the program runs once on --input"},
			&cli.StringFlag{Name: "input", Usage: "stdin for a raw run"},
			&cli.StringFlag{Name: "checker", Value: "trim"},
			&cli.StringFlag{Name: "checker-param"},
			&cli.StringFlag{Name: "compiler", Usage: "compiler type override (cpp-gcc, c-gcc, golang)"},
			&cli.IntFlag{Name: "time-limit", Usage: "milliseconds", Value: 2000},
			&cli.IntFlag{Name: "memory-limit", Usage: "KiB", Value: 256 * 1024},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("expected exactly one source file")
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.strategies.Get(cmd.String("strategy"))
			if err != nil {
				return err
			}
			code, err := os.ReadFile(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}
			ct, err := models.ParseCompilerType(cmd.String("compiler"))
			if err != nil {
				return err
			}

			var input models.Input = models.RawInput{Input: cmd.String("input")}
			if dir := cmd.String("tests"); dir != "" {
				tests, err := readTestDir(dir)
				if err != nil {
					return err
				}
				input = models.TestsInput{Tests: tests}
			}

			ec, err := models.NewExecutionContext(
				&models.Submission{Code: string(code), CompilerType: ct},
				int(cmd.Int("time-limit")),
				int64(cmd.Int("memory-limit"))*1024,
				models.CheckerSelector{Type: cmd.String("checker"), Parameter: cmd.String("checker-param")},
				input,
			)
			if err != nil {
				return err
			}

			g := termgath.New(os.Stdout)
			g.StartJob("")
			res, err := s.SafeExecute(ctx, ec, g)
			g.FinishJob(res, err)
			return err
		},
	}
}

// readTestDir pairs NAME.in with NAME.ans (or NAME.out) in name order and
// numbers them from 1.
func readTestDir(dir string) ([]models.TestCase, error) {
	inputs, err := filepath.Glob(filepath.Join(dir, "*.in"))
	if err != nil {
		return nil, err
	}
	slices.Sort(inputs)

	tests := make([]models.TestCase, 0, len(inputs))
	for i, in := range inputs {
		base := strings.TrimSuffix(in, ".in")
		input, err := os.ReadFile(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read test input: %w", err)
		}
		ans, err := os.ReadFile(base + ".ans")
		if errors.Is(err, os.ErrNotExist) {
			ans, err = os.ReadFile(base + ".out")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read answer for %s: %w", filepath.Base(in), err)
		}
		tests = append(tests, models.TestCase{
			Id:             i + 1,
			Input:          string(input),
			ExpectedOutput: string(ans),
		})
	}
	if len(tests) == 0 {
		return nil, fmt.Errorf("no *.in files in %s", dir)
	}
	return tests, nil
}
