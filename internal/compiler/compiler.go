package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/programme-lv/runner/internal/models"
)

var (
	ErrCompilerNotFound    = errors.New("compiler not found")
	ErrUnsupportedCompiler = errors.New("unsupported compiler type")
)

// MaxDiagnosticLength bounds CompileResult.Diagnostic, in characters.
const MaxDiagnosticLength = 4096

const DefaultTimeout = 30 * time.Second

// Compiler turns a source file into a runnable artifact. A failed compilation
// is reported in the result; an error means the compiler itself could not be
// used.
type Compiler interface {
	Compile(ctx context.Context, compilerPath, sourcePath, extraArgs string) (models.CompileResult, error)
}

type noop struct{}

// Compile returns the source itself as the artifact.
func (noop) Compile(_ context.Context, _, sourcePath, _ string) (models.CompileResult, error) {
	return models.CompileResult{Success: true, OutputArtifactPath: sourcePath}, nil
}

// argsFunc builds the compiler arguments for a source and output path.
type argsFunc func(src, out string, extra []string) []string

type subprocess struct {
	name    string
	args    argsFunc
	timeout time.Duration
	logger  *slog.Logger
}

func (c *subprocess) Compile(ctx context.Context, compilerPath, sourcePath, extraArgs string) (models.CompileResult, error) {
	if _, err := os.Stat(compilerPath); err != nil {
		return models.CompileResult{}, fmt.Errorf("%w: %s compiler at %q", ErrCompilerNotFound, c.name, compilerPath)
	}

	extra, err := shlex.Split(extraArgs)
	if err != nil {
		return models.CompileResult{
			Diagnostic: fmt.Sprintf("invalid compiler arguments: %v", err),
		}, nil
	}
	out := artifactPath(sourcePath)
	args := c.args(sourcePath, out, extra)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, compilerPath, args...)
	cmd.Dir = filepath.Dir(sourcePath)
	cmd.WaitDelay = time.Second

	start := time.Now()
	output, err := cmd.CombinedOutput()
	log := c.logger.With("compiler", c.name, "source", sourcePath, "elapsed", time.Since(start))

	if ctx.Err() == context.DeadlineExceeded {
		log.Info("compilation timed out")
		return models.CompileResult{
			Diagnostic: fmt.Sprintf("compilation timed out after %s", c.timeout),
		}, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return models.CompileResult{}, fmt.Errorf("failed to run %s compiler: %w", c.name, err)
		}
		log.Debug("compilation failed", "exit_code", exitErr.ExitCode())
		return models.CompileResult{
			Diagnostic: models.Truncate(string(output), MaxDiagnosticLength),
		}, nil
	}

	if _, err := os.Stat(out); err != nil {
		return models.CompileResult{
			Diagnostic: models.Truncate(fmt.Sprintf("compiler produced no output file\n%s", output), MaxDiagnosticLength),
		}, nil
	}

	log.Debug("compilation succeeded")
	return models.CompileResult{
		Success:            true,
		Diagnostic:         models.Truncate(string(output), MaxDiagnosticLength),
		OutputArtifactPath: out,
	}, nil
}

func artifactPath(sourcePath string) string {
	out := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))
	if out == sourcePath {
		out += ".out"
	}
	return out
}

func gccArgs(std string) argsFunc {
	return func(src, out string, extra []string) []string {
		args := []string{"-O2", "-std=" + std, "-o", out, src}
		return append(args, extra...)
	}
}

func goArgs(src, out string, extra []string) []string {
	args := []string{"build", "-o", out}
	args = append(args, extra...)
	return append(args, src)
}

type Registry struct {
	compilers map[models.CompilerType]Compiler
}

// NewRegistry returns the compilers for every supported CompilerType.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "compiler")

	return &Registry{
		compilers: map[models.CompilerType]Compiler{
			models.CompilerNone: noop{},
			models.CompilerCPlusPlusGcc: &subprocess{
				name: "g++", args: gccArgs("c++17"), timeout: timeout, logger: logger,
			},
			models.CompilerCGcc: &subprocess{
				name: "gcc", args: gccArgs("c11"), timeout: timeout, logger: logger,
			},
			models.CompilerGolang: &subprocess{
				name: "go", args: goArgs, timeout: timeout, logger: logger,
			},
		},
	}
}

func (r *Registry) Get(ct models.CompilerType) (Compiler, error) {
	c, ok := r.compilers[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompiler, ct)
	}
	return c, nil
}
