package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/programme-lv/runner/internal/checkers"
	"github.com/programme-lv/runner/internal/executor"
	"github.com/programme-lv/runner/internal/models"
)

// Runner executes one supervised process. *executor.Executor satisfies it.
type Runner interface {
	Execute(cmd executor.Command) (*models.ProcessExecutionResult, error)
}

const submissionBaseName = "main"

// Engine is the compile, execute and check pipeline for one language.
type Engine struct {
	lang   Language
	deps   Deps
	runner Runner
	logger *slog.Logger
}

func NewEngine(lang Language, deps Deps) *Engine {
	logger := deps.logger().With("strategy", lang.Name)
	return &Engine{
		lang:   lang,
		deps:   deps,
		runner: executor.New(lang.executorKind(), lang.BaseTimeMs, lang.BaseMemoryBytes, deps.ExecutorSettings, logger),
		logger: logger,
	}
}

// WithRunner returns a copy of the engine that executes through r.
func (e *Engine) WithRunner(r Runner) *Engine {
	cp := *e
	cp.runner = r
	return &cp
}

func (e *Engine) Name() string {
	return e.lang.Name
}

func (e *Engine) Language() Language {
	return e.lang
}

func (e *Engine) SafeExecute(ctx context.Context, ec *models.ExecutionContext, g Gatherer) (*models.ExecutionResult, error) {
	return safeExecute(ctx, e.lang.Name, e.deps, ec, g, e.Execute)
}

// Execute runs the submission inside dir, which the caller owns.
func (e *Engine) Execute(ctx context.Context, ec *models.ExecutionContext, dir string, g Gatherer) (*models.ExecutionResult, error) {
	if g == nil {
		g = noopGatherer{}
	}

	checker, err := resolveChecker(e.deps, ec)
	if err != nil {
		return nil, err
	}

	if e.lang.Interpreter != "" {
		if _, err := os.Stat(e.lang.Interpreter); err != nil {
			return nil, fmt.Errorf("%w: interpreter %s", executor.ErrExecutableNotFound, e.lang.Interpreter)
		}
	}

	compiled, err := e.ExecuteCompiling(ctx, ec, dir, g)
	if err != nil {
		return nil, err
	}

	result := &models.ExecutionResult{
		IsCompiledSuccessfully: compiled.Success,
		CompilerComment:        compiled.Diagnostic,
	}
	if !compiled.Success {
		return result, nil
	}

	path, args := e.lang.BuildArguments(compiled.OutputArtifactPath)
	command := func(stdin string) executor.Command {
		return executor.Command{
			Path:             path,
			Args:             args,
			Stdin:            stdin,
			TimeLimitMs:      ec.TimeLimitMs,
			MemoryLimitBytes: ec.MemoryLimitBytes,
			WorkDir:          dir,
			Options:          e.lang.options(e.deps.TimeoutMultiplier),
		}
	}

	switch in := ec.Input.(type) {
	case models.TestsInput:
		result.TestResults = make([]models.TestResult, 0, len(in.Tests))
		for _, test := range in.Tests {
			g.ReachTest(test)
			tr, err := e.runTest(test, command(test.Input), checker)
			if err != nil {
				return nil, err
			}
			g.FinishTest(tr)
			result.TestResults = append(result.TestResults, tr)
		}
	case models.RawInput:
		per, err := e.runner.Execute(command(in.Input))
		if err != nil {
			return nil, fmt.Errorf("failed to execute raw input: %w", err)
		}
		result.Raw = &models.RawResult{
			OutcomeKind:     per.OutcomeKind,
			Output:          e.postProcess(per.ReceivedOutput),
			ErrorOutput:     per.ErrorOutput,
			ExitCode:        per.ExitCode,
			TimeUsedMs:      per.TimeUsedMs(e.lang.UseProcessorTime),
			MemoryUsedBytes: per.PeakMemoryBytes,
		}
	default:
		return nil, fmt.Errorf("%w: unknown input %T", ErrInvariantViolation, in)
	}

	return result, nil
}

func (e *Engine) runTest(test models.TestCase, cmd executor.Command, checker checkers.Checker) (models.TestResult, error) {
	per, err := e.runner.Execute(cmd)
	if err != nil {
		return models.TestResult{}, fmt.Errorf("failed to execute test %d: %w", test.Id, err)
	}
	per.ReceivedOutput = e.postProcess(per.ReceivedOutput)

	tr, err := ExecuteAndCheckTest(test, per, checker, e.lang.UseProcessorTime)
	if err != nil {
		return models.TestResult{}, err
	}
	e.logger.Debug("test finished",
		"test_id", test.Id,
		"result", tr.ResultKind.String(),
		"time_ms", tr.TimeUsedMs,
		"memory_bytes", tr.MemoryUsedBytes)
	return tr, nil
}

func (e *Engine) postProcess(out string) string {
	if e.lang.PostProcessOutput == nil {
		return out
	}
	return e.lang.PostProcessOutput(out)
}

// ExecuteCompiling saves the submission into dir and compiles it. A failed
// compilation is a result; a missing or unusable compiler is an error.
func (e *Engine) ExecuteCompiling(ctx context.Context, ec *models.ExecutionContext, dir string, g Gatherer) (models.CompileResult, error) {
	if g == nil {
		g = noopGatherer{}
	}
	ct := e.lang.compilerType(ec)

	src, err := e.saveSubmission(ec, dir, ct)
	if err != nil {
		return models.CompileResult{}, err
	}

	c, err := e.deps.Compilers.Get(ct)
	if err != nil {
		return models.CompileResult{}, err
	}

	compilerPath := ""
	if ct != models.CompilerNone && e.deps.CompilerPath != nil {
		compilerPath = e.deps.CompilerPath(ct)
	}

	g.StartCompile()
	res, err := c.Compile(ctx, compilerPath, src, ec.AdditionalCompilerArguments)
	if err != nil {
		return models.CompileResult{}, fmt.Errorf("failed to compile submission: %w", err)
	}
	if !res.Success {
		res.OutputArtifactPath = ""
	}
	g.FinishCompile(res)
	return res, nil
}

// saveSubmission writes source text, or the binary payload when the
// submission restricts file extensions.
func (e *Engine) saveSubmission(ec *models.ExecutionContext, dir string, ct models.CompilerType) (string, error) {
	var (
		name    string
		content []byte
	)
	if ec.UsesFileContent() {
		name = submissionBaseName + ec.PrimaryExtension()
		content = ec.FileContent
	} else {
		name = submissionBaseName + e.lang.sourceExt(ct)
		content = []byte(ec.Code)
	}

	// a submission with no compiler and no interpreter runs as is
	perm := os.FileMode(0o644)
	if ct == models.CompilerNone && e.lang.Interpreter == "" {
		perm = 0o755
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, perm); err != nil {
		return "", fmt.Errorf("failed to save submission: %w", err)
	}
	return path, nil
}
