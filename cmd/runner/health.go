package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/programme-lv/runner/internal/models"
	"github.com/programme-lv/runner/internal/strategy"
	"github.com/urfave/cli/v3"
)

type health int

const (
	healthOk health = iota
	healthWarn
	healthError
)

func (h health) String() string {
	switch h {
	case healthOk:
		return "OKAY"
	case healthWarn:
		return "WARN"
	}
	return "ERROR"
}

type feedbackRow struct {
	unit    string
	health  health
	message string
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check configured compilers, interpreters and directories",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var rows []feedbackRow
			rows = append(rows, checkWorkdir(a.workdirs.Root()))
			for _, ct := range []models.CompilerType{models.CompilerCPlusPlusGcc, models.CompilerCGcc, models.CompilerGolang} {
				rows = append(rows, checkBinary(ctx, "compiler "+ct.String(), a.cfg.CompilerPath(ct)))
			}
			for _, name := range a.strategies.Names() {
				s, err := a.strategies.Get(name)
				if err != nil {
					continue
				}
				if e, ok := s.(*strategy.Engine); ok && e.Language().Interpreter != "" {
					rows = append(rows, checkBinary(ctx, "strategy "+name, e.Language().Interpreter))
				}
			}

			render(rows)
			for _, r := range rows {
				if r.health == healthError {
					return fmt.Errorf("%s is unhealthy", r.unit)
				}
			}
			return nil
		},
	}
}

func checkWorkdir(root string) feedbackRow {
	row := feedbackRow{unit: "workdir"}
	f, err := os.CreateTemp(root, ".health-*")
	if err != nil {
		row.health = healthError
		row.message = err.Error()
		return row
	}
	f.Close()
	os.Remove(f.Name())
	row.message = root
	return row
}

// checkBinary stats path and asks it for --version. A binary that exists
// but rejects the flag is only a warning.
func checkBinary(ctx context.Context, unit, path string) feedbackRow {
	row := feedbackRow{unit: unit}
	if path == "" {
		row.health = healthWarn
		row.message = "not configured"
		return row
	}
	if _, err := os.Stat(path); err != nil {
		row.health = healthError
		row.message = err.Error()
		return row
	}
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		row.health = healthWarn
		row.message = fmt.Sprintf("%s: %v", path, err)
		return row
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	row.message = first
	return row
}

func render(rows []feedbackRow) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Unit", "Health", "Message"})
	for _, row := range rows {
		t.AppendRow(table.Row{row.unit, row.health.String(), row.message})
	}
	t.SetStyle(table.StyleColoredDark)
	healthColor := text.Transformer(func(s interface{}) string {
		switch s.(string) {
		case "OKAY":
			return text.FgHiGreen.Sprint(s)
		case "WARN":
			return text.FgHiYellow.Sprint(s)
		case "ERROR":
			return text.FgHiRed.Sprint(s)
		}
		return ""
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{
			Name:        "Health",
			Transformer: healthColor,
			Align:       text.AlignCenter,
		},
	})
	t.Render()
}
