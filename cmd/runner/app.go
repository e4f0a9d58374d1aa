package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/programme-lv/runner/internal/checkers"
	"github.com/programme-lv/runner/internal/compiler"
	"github.com/programme-lv/runner/internal/config"
	"github.com/programme-lv/runner/internal/logging"
	"github.com/programme-lv/runner/internal/strategy"
	"github.com/programme-lv/runner/internal/workdir"
	"github.com/urfave/cli/v3"
)

// app holds everything built from the configuration.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	workdirs   *workdir.Manager
	strategies *strategy.Registry
}

func newApp(cmd *cli.Command) (*app, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.IsSet("config") {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	wd, err := workdir.NewManager(cfg.Workdir.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare working directories: %w", err)
	}

	deps := strategy.Deps{
		Workdirs:          wd,
		Checkers:          checkers.NewRegistry(),
		Compilers:         compiler.NewRegistry(cfg.CompileTimeout(), logger),
		CompilerPath:      cfg.CompilerPath,
		ExecutorSettings:  cfg.ExecutorSettings(),
		TimeoutMultiplier: cfg.Executor.TimeoutMultiplier,
		Logger:            logger,
	}
	return &app{
		cfg:        cfg,
		logger:     logger,
		workdirs:   wd,
		strategies: strategy.NewRegistry(deps, cfg.StrategyLanguages()...),
	}, nil
}

// close waits for background directory removal.
func (a *app) close() {
	a.workdirs.Wait()
}
