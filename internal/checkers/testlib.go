package checkers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/programme-lv/runner/internal/models"
)

// TestlibTimeout bounds one run of an external checker.
const TestlibTimeout = 10 * time.Second

// Exit codes of testlib checkers.
const (
	testlibWrongAnswer  = 1
	testlibPresentation = 2
)

// newTestlib runs a compiled testlib style checker as
// `checker input output answer`. The parameter is the checker's path.
func newTestlib(parameter string) (Checker, error) {
	path := strings.TrimSpace(parameter)
	if path == "" {
		return nil, fmt.Errorf("%w: testlib checker needs an executable path", ErrInvalidParameter)
	}
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%w: testlib checker path %q is not absolute", ErrInvalidParameter, path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return &testlibChecker{path: path, timeout: TestlibTimeout}, nil
}

type testlibChecker struct {
	path    string
	timeout time.Duration
}

func (c *testlibChecker) Check(input, actual, expected string, isTrialTest bool) (Result, error) {
	dir, err := os.MkdirTemp("", "testlib-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create checker directory: %w", err)
	}
	defer os.RemoveAll(dir)

	files := []struct{ name, body string }{
		{"input.txt", input},
		{"output.txt", actual},
		{"answer.txt", expected},
	}
	args := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := os.WriteFile(p, []byte(f.body), 0o644); err != nil {
			return Result{}, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
		args = append(args, p)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	comment := models.Truncate(strings.TrimSpace(string(out)), models.MaxCheckerDetailsLength)

	if err == nil {
		return Result{IsCorrect: true, Details: comment}, nil
	}
	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("testlib checker timed out after %s", c.timeout)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return Result{}, fmt.Errorf("failed to run testlib checker: %w", err)
	}
	switch exitErr.ExitCode() {
	case testlibWrongAnswer, testlibPresentation:
		return Result{Details: comment}, nil
	}
	return Result{}, fmt.Errorf("testlib checker failed with exit code %d: %s", exitErr.ExitCode(), comment)
}
