//go:build linux

package executor_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/programme-lv/runner/internal/executor"
	"github.com/programme-lv/runner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const generousMemory = 256 << 20

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)
	require.NoError(t, err)
	return path
}

func newStandard() *executor.Executor {
	return executor.New(executor.Standard, 0, 0, executor.DefaultSettings(), nil)
}

func TestExecute_EchoesInput(t *testing.T) {
	e := newStandard()
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "cat"),
		Stdin:            "hello",
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, res.OutcomeKind)
	assert.Equal(t, "hello\n", res.ReceivedOutput)
	assert.Empty(t, res.ErrorOutput)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecute_SumsTwoNumbers(t *testing.T) {
	e := newStandard()
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "read a b\necho $((a+b))"),
		Stdin:            "2 3",
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, res.OutcomeKind)
	assert.Equal(t, "5\n", res.ReceivedOutput)
}

func TestExecute_TimeLimitBoundary(t *testing.T) {
	e := newStandard()

	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "sleep 0.1\necho done"),
		TimeLimitMs:      200,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, res.OutcomeKind)
	assert.Equal(t, "done\n", res.ReceivedOutput)

	start := time.Now()
	res, err = e.Execute(executor.Command{
		Path:             writeScript(t, "sleep 1\necho late"),
		TimeLimitMs:      200,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeTimeLimitExceeded, res.OutcomeKind)
	assert.Empty(t, res.ReceivedOutput)
	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, res.WallTime, 300*time.Millisecond)
}

func TestExecute_KilledProcessIsGone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho $$ > pid\nsleep 5\n"), 0o755))

	e := newStandard()
	res, err := e.Execute(executor.Command{
		Path:             path,
		TimeLimitMs:      100,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeTimeLimitExceeded, res.OutcomeKind)

	raw, err := os.ReadFile(filepath.Join(dir, "pid"))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	assert.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH)
}

func TestExecute_StderrIsRuntimeError(t *testing.T) {
	e := newStandard()
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "echo partial\necho oops >&2"),
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRuntimeError, res.OutcomeKind)
	assert.Equal(t, "oops\n", res.ErrorOutput)
	assert.Equal(t, "partial\n", res.ReceivedOutput)
}

func TestExecute_ExitCodeSensitivity(t *testing.T) {
	e := newStandard()
	path := writeScript(t, "exit 3")

	res, err := e.Execute(executor.Command{
		Path:             path,
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, res.OutcomeKind)
	assert.Equal(t, 3, res.ExitCode)

	res, err = e.Execute(executor.Command{
		Path:             path,
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
		Options:          executor.Options{DependOnExitCode: true},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRuntimeError, res.OutcomeKind)
}

func TestExecute_TimeoutWithExitCodeSensitivity(t *testing.T) {
	e := newStandard()
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "sleep 5"),
		TimeLimitMs:      100,
		MemoryLimitBytes: generousMemory,
		Options:          executor.Options{DependOnExitCode: true},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeTimeLimitExceeded, res.OutcomeKind)
	assert.Equal(t, -1, res.ExitCode)
	assert.Empty(t, res.ErrorOutput)
}

func TestExecute_IsRepeatable(t *testing.T) {
	e := newStandard()
	path := writeScript(t, "read a b\necho $((a*b))\nexit 7")
	run := func() *models.ProcessExecutionResult {
		res, err := e.Execute(executor.Command{
			Path:             path,
			Stdin:            "6 7",
			TimeLimitMs:      1000,
			MemoryLimitBytes: generousMemory,
		})
		require.NoError(t, err)
		return res
	}

	first, second := run(), run()
	assert.Equal(t, "42\n", first.ReceivedOutput)
	assert.Equal(t, first.ReceivedOutput, second.ReceivedOutput)
	assert.Equal(t, 7, first.ExitCode)
	assert.Equal(t, first.ExitCode, second.ExitCode)
}

func TestExecute_OutputLimit(t *testing.T) {
	settings := executor.DefaultSettings()
	settings.OutputLimitBytes = 16
	e := executor.New(executor.Standard, 0, 0, settings, nil)
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "i=0\nwhile [ $i -lt 100 ]; do echo line$i; i=$((i+1)); done"),
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.True(t, res.OutputTruncated)
	assert.Len(t, res.ReceivedOutput, 16)
	assert.Equal(t, models.OutcomeRuntimeError, res.OutcomeKind)
	assert.Contains(t, res.ErrorOutput, "output limit")
}

func TestExecute_MemoryLimit(t *testing.T) {
	e := newStandard()
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "sleep 0.1"),
		TimeLimitMs:      1000,
		MemoryLimitBytes: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMemoryLimitExceeded, res.OutcomeKind)
	assert.Greater(t, res.PeakMemoryBytes, int64(1024))
}

func TestExecute_BaseOverheadIsSubtracted(t *testing.T) {
	e := executor.New(executor.Standard, 100, 0, executor.DefaultSettings(), nil)
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "sleep 0.15"),
		TimeLimitMs:      100,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, res.OutcomeKind)
	assert.Less(t, res.WallTime, 150*time.Millisecond)
}

func TestExecute_StripsByteOrderMark(t *testing.T) {
	e := newStandard()
	path := writeScript(t, `printf '\357\273\277hi'`)

	res, err := e.Execute(executor.Command{
		Path:             path,
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.ReceivedOutput)

	res, err = e.Execute(executor.Command{
		Path:             path,
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
		Options:          executor.Options{Encoding: executor.EncodingSystem},
	})
	require.NoError(t, err)
	assert.Equal(t, "\ufeffhi", res.ReceivedOutput)
}

func TestExecute_Restricted(t *testing.T) {
	e := executor.New(executor.Restricted, 0, 0, executor.DefaultSettings(), nil)
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, "cat"),
		Stdin:            "ok",
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, res.OutcomeKind)
	assert.Equal(t, "ok\n", res.ReceivedOutput)
}

func TestExecute_RestrictedMemoryHog(t *testing.T) {
	e := executor.New(executor.Restricted, 0, 0, executor.DefaultSettings(), nil)
	// holds a 64 MiB string, far past the 8 MiB limit but under the ceiling
	res, err := e.Execute(executor.Command{
		Path:             writeScript(t, `x=$(head -c 67108864 /dev/zero | tr '\0' x); echo ${#x}`),
		TimeLimitMs:      5000,
		MemoryLimitBytes: 8 << 20,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMemoryLimitExceeded, res.OutcomeKind)
	assert.Greater(t, res.PeakMemoryBytes, int64(8<<20))
}

func TestExecute_MissingExecutable(t *testing.T) {
	e := newStandard()
	_, err := e.Execute(executor.Command{
		Path:             filepath.Join(t.TempDir(), "nope"),
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.ErrorIs(t, err, executor.ErrExecutableNotFound)
}

func TestExecute_NotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a program"), 0o644))

	e := newStandard()
	_, err := e.Execute(executor.Command{
		Path:             path,
		TimeLimitMs:      1000,
		MemoryLimitBytes: generousMemory,
	})
	require.ErrorIs(t, err, executor.ErrStartFailed)
}
