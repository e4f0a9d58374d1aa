package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/programme-lv/runner/internal/checkers"
	"github.com/programme-lv/runner/internal/compiler"
	"github.com/programme-lv/runner/internal/executor"
	"github.com/programme-lv/runner/internal/models"
	"github.com/programme-lv/runner/internal/workdir"
)

var (
	ErrInvariantViolation = errors.New("invariant violation")
	ErrUnknownStrategy    = errors.New("unknown execution strategy")
	ErrWorkdirUnavailable = errors.New("working directory unavailable")
)

// Strategy runs one submission end to end.
type Strategy interface {
	Name() string
	// SafeExecute always returns a result. A non-nil error marks a
	// configuration fault or broken invariant; the result then carries the
	// error text as the compiler comment. The working directory is gone
	// when SafeExecute returns, panics included.
	SafeExecute(ctx context.Context, ec *models.ExecutionContext, g Gatherer) (*models.ExecutionResult, error)
}

// Gatherer observes a run as it progresses.
type Gatherer interface {
	StartCompile()
	FinishCompile(res models.CompileResult)
	ReachTest(test models.TestCase)
	FinishTest(res models.TestResult)
}

type noopGatherer struct{}

func (noopGatherer) StartCompile()                      {}
func (noopGatherer) FinishCompile(models.CompileResult) {}
func (noopGatherer) ReachTest(models.TestCase)          {}
func (noopGatherer) FinishTest(models.TestResult)       {}

// Deps are the shared collaborators of every strategy. All of them are safe
// for concurrent use.
type Deps struct {
	Workdirs  *workdir.Manager
	Checkers  *checkers.Registry
	Compilers *compiler.Registry
	// CompilerPath resolves a compiler type to an absolute path.
	CompilerPath      func(models.CompilerType) string
	ExecutorSettings  executor.Settings
	TimeoutMultiplier float64
	Logger            *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

type runFunc func(ctx context.Context, ec *models.ExecutionContext, dir string, g Gatherer) (*models.ExecutionResult, error)

// safeExecute brackets run with directory acquisition and release.
func safeExecute(
	ctx context.Context,
	name string,
	deps Deps,
	ec *models.ExecutionContext,
	g Gatherer,
	run runFunc,
) (*models.ExecutionResult, error) {
	log := deps.logger().With("strategy", name)

	if ec == nil {
		err := fmt.Errorf("%w: execution context is nil", models.ErrInvalidContext)
		return failed(err), err
	}
	if err := ec.Validate(); err != nil {
		return failed(err), err
	}
	if g == nil {
		g = noopGatherer{}
	}

	dir, err := deps.Workdirs.Acquire()
	if err != nil {
		log.Error("failed to acquire working directory", "error", err)
		err = fmt.Errorf("%w: %w", ErrWorkdirUnavailable, err)
		return failed(err), err
	}
	defer deps.Workdirs.Release(dir)

	res, err := run(ctx, ec, dir, g)
	if err != nil {
		log.Error("execution failed", "error", err)
		return failed(err), err
	}
	log.Debug("execution finished",
		"compiled", res.IsCompiledSuccessfully,
		"tests", len(res.TestResults))
	return res, nil
}

func failed(err error) *models.ExecutionResult {
	return &models.ExecutionResult{
		IsCompiledSuccessfully: false,
		CompilerComment:        err.Error(),
	}
}

// resolveChecker is nil for raw input, which is never checked.
func resolveChecker(deps Deps, ec *models.ExecutionContext) (checkers.Checker, error) {
	if _, ok := ec.Input.(models.TestsInput); !ok {
		return nil, nil
	}
	c, err := deps.Checkers.Resolve(ec.Checker)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checker: %w", err)
	}
	return c, nil
}
