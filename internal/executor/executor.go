package executor

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
	"unicode/utf8"

	"github.com/programme-lv/runner/internal/models"
	"golang.org/x/sync/errgroup"
)

var (
	ErrExecutableNotFound = errors.New("executable not found")
	ErrStartFailed        = errors.New("failed to start process")
)

// Kind selects how limits are enforced.
type Kind int

const (
	// Standard relies on sampling only.
	Standard Kind = iota
	// Restricted additionally applies OS resource ceilings where available.
	Restricted
)

func (k Kind) String() string {
	if k == Restricted {
		return "restricted"
	}
	return "standard"
}

// Encoding selects how captured stdout is decoded.
type Encoding int

const (
	// EncodingUTF8 strips a leading BOM and replaces invalid sequences.
	EncodingUTF8 Encoding = iota
	// EncodingSystem passes bytes through untouched.
	EncodingSystem
)

const (
	DefaultTimeoutMultiplier    = 1.5
	DefaultKillGrace            = 5000 * time.Millisecond
	DefaultDrainTimeout         = 100 * time.Millisecond
	DefaultMemorySampleInterval = 45 * time.Millisecond
	DefaultCpuSampleInterval    = 10 * time.Millisecond
	DefaultOutputLimitBytes     = 64 << 20

	hardMemoryFactor = 2
	hardMemorySlack  = 256 << 20
)

// HardMemoryCeiling is the address space a restricted process may reserve
// for an enforced limit of limitBytes: twice the limit, and at least the
// limit plus 256 MiB.
func HardMemoryCeiling(limitBytes int64) int64 {
	return max(limitBytes*hardMemoryFactor, limitBytes+hardMemorySlack)
}

// Settings are process-wide executor tunables, read-only after construction.
type Settings struct {
	KillGrace            time.Duration
	DrainTimeout         time.Duration
	MemorySampleInterval time.Duration
	CpuSampleInterval    time.Duration
	OutputLimitBytes     int
}

func DefaultSettings() Settings {
	return Settings{
		KillGrace:            DefaultKillGrace,
		DrainTimeout:         DefaultDrainTimeout,
		MemorySampleInterval: DefaultMemorySampleInterval,
		CpuSampleInterval:    DefaultCpuSampleInterval,
		OutputLimitBytes:     DefaultOutputLimitBytes,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.KillGrace <= 0 {
		s.KillGrace = d.KillGrace
	}
	if s.DrainTimeout <= 0 {
		s.DrainTimeout = d.DrainTimeout
	}
	if s.MemorySampleInterval <= 0 {
		s.MemorySampleInterval = d.MemorySampleInterval
	}
	if s.CpuSampleInterval <= 0 {
		s.CpuSampleInterval = d.CpuSampleInterval
	}
	if s.OutputLimitBytes <= 0 {
		s.OutputLimitBytes = d.OutputLimitBytes
	}
	return s
}

// Options are per-invocation switches.
type Options struct {
	UseProcessorTime  bool
	DependOnExitCode  bool
	Encoding          Encoding
	TimeoutMultiplier float64
}

// Command is one supervised process invocation.
type Command struct {
	Path             string
	Args             []string
	Stdin            string
	TimeLimitMs      int
	MemoryLimitBytes int64
	// WorkDir defaults to the executable's directory.
	WorkDir string
	Options
}

type Executor struct {
	kind            Kind
	baseTimeMs      int
	baseMemoryBytes int64
	settings        Settings
	logger          *slog.Logger
}

// New creates an executor that adds the given base overhead to every limit
// and subtracts it from reported usage.
func New(kind Kind, baseTimeMs int, baseMemoryBytes int64, settings Settings, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		kind:            kind,
		baseTimeMs:      baseTimeMs,
		baseMemoryBytes: baseMemoryBytes,
		settings:        settings.withDefaults(),
		logger:          logger.With("component", "executor", "kind", kind.String()),
	}
}

func (e *Executor) Kind() Kind {
	return e.kind
}

// Execute runs the command to completion or until it is killed for exceeding
// timeLimit * TimeoutMultiplier. Per-test failures are reported through
// OutcomeKind; an error is returned only when the process could not be run.
func (e *Executor) Execute(c Command) (*models.ProcessExecutionResult, error) {
	if _, err := os.Stat(c.Path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutableNotFound, c.Path)
	}

	multiplier := c.TimeoutMultiplier
	if multiplier <= 0 {
		multiplier = DefaultTimeoutMultiplier
	}
	timeLimit := time.Duration(c.TimeLimitMs+e.baseTimeMs) * time.Millisecond
	memoryLimit := c.MemoryLimitBytes + e.baseMemoryBytes
	deadline := time.Duration(float64(timeLimit) * multiplier)

	workDir := c.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(c.Path)
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = workDir
	cmd.SysProcAttr = sysProcAttr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("%w: %s: %v", ErrStartFailed, c.Path, err)
	}
	startTime := time.Now()
	pid := cmd.Process.Pid
	log := e.logger.With("pid", pid, "path", c.Path)
	log.Debug("process started", "time_limit", timeLimit, "memory_limit", memoryLimit)

	// the child owns the write ends now
	closeAll(stdoutW, stderrW)

	memoryCeiling := false
	if e.kind == Restricted {
		if err := applyHardLimits(pid, memoryLimit, deadline); err != nil {
			log.Warn("failed to apply hard limits, relying on sampling", "error", err)
		} else {
			memoryCeiling = memoryLimit > 0
		}
	}

	go writeInput(stdin, c.Stdin)

	stdout := newCapture(e.settings.OutputLimitBytes)
	stderr := newCapture(e.settings.OutputLimitBytes)
	stdoutDone := stdout.drain(stdoutR)
	stderrDone := stderr.drain(stderrR)

	usage := &usageTracker{}
	smp := newSampler(pid)
	samplingCtx, stopSampling := context.WithCancel(context.Background())
	var sampling errgroup.Group
	sampling.Go(func() error {
		runEvery(samplingCtx, e.settings.MemorySampleInterval, func() {
			if m, ok := smp.PeakMemory(); ok {
				usage.observeMemory(m)
			}
		})
		return nil
	})
	sampling.Go(func() error {
		runEvery(samplingCtx, e.settings.CpuSampleInterval, func() {
			if t, ok := smp.ProcessorTime(); ok {
				usage.observeProcessorTime(t)
			}
		})
		return nil
	})

	exited := make(chan exitNotice, 1)
	go func() {
		reaped, err := awaitExit(cmd)
		exited <- exitNotice{at: time.Now(), reaped: reaped, err: err}
	}()

	killedForTimeout := false
	var notice exitNotice
	gaveUp := false
	timer := time.NewTimer(deadline)
	select {
	case notice = <-exited:
		timer.Stop()
	case <-timer.C:
		killedForTimeout = true
		log.Debug("time limit exceeded, killing process", "deadline", deadline)
		killProcess(cmd)
		select {
		case notice = <-exited:
		case <-time.After(e.settings.KillGrace):
			gaveUp = true
			notice = exitNotice{at: time.Now()}
			log.Error("process did not exit after kill", "grace", e.settings.KillGrace)
		}
	}

	// samplers must stop before the pid is reaped and possibly reused
	stopSampling()
	_ = sampling.Wait()

	exitCode := -1
	if !gaveUp {
		waitErr := notice.err
		if !notice.reaped {
			waitErr = cmd.Wait()
		}
		var exitErr *exec.ExitError
		if waitErr != nil && !errors.As(waitErr, &exitErr) {
			log.Warn("failed to wait for process", "error", waitErr)
		}
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
			cpu, peak := finalUsage(cmd.ProcessState)
			usage.observeProcessorTime(cpu)
			usage.observeMemory(peak)
		}
	} else {
		go func() {
			if n := <-exited; !n.reaped {
				_ = cmd.Wait()
			}
		}()
	}

	// a leftover grandchild may still hold the pipes open
	drainDeadline := time.After(e.settings.DrainTimeout)
	for _, d := range []struct {
		name string
		done <-chan struct{}
	}{{"stdout", stdoutDone}, {"stderr", stderrDone}} {
		select {
		case <-d.done:
		case <-drainDeadline:
			log.Warn("output drain timed out", "stream", d.name)
			closeAll(stdoutR, stderrR)
			<-d.done
		}
	}
	closeAll(stdoutR, stderrR)

	errorOutput := stderr.String()
	truncated := stdout.Truncated()
	if truncated {
		log.Warn("output limit exceeded", "limit_bytes", e.settings.OutputLimitBytes)
		errorOutput += fmt.Sprintf("output limit of %d bytes exceeded\n", e.settings.OutputLimitBytes)
	}

	res := &models.ProcessExecutionResult{
		ReceivedOutput:  decode(stdout.String(), c.Encoding),
		ErrorOutput:     errorOutput,
		OutputTruncated: truncated,
		ExitCode:        exitCode,
		WallTime:        notice.at.Sub(startTime),
		ProcessorTime:   usage.processorTime(),
		PeakMemoryBytes: usage.peakMemory(),
	}

	res.OutcomeKind = Classify(Observation{
		KilledForTimeout: killedForTimeout,
		UseProcessorTime: c.UseProcessorTime,
		ProcessorTime:    res.ProcessorTime,
		TimeLimit:        timeLimit,
		PeakMemoryBytes:  res.PeakMemoryBytes,
		MemoryLimitBytes: memoryLimit,
		MemoryCeiling:    memoryCeiling,
		ErrorOutput:      res.ErrorOutput,
		OutputTruncated:  res.OutputTruncated,
		DependOnExitCode: c.DependOnExitCode,
		ExitCode:         res.ExitCode,
	})

	e.applyOffsets(res)

	log.Debug("process finished",
		"outcome", res.OutcomeKind.String(),
		"exit_code", res.ExitCode,
		"wall", res.WallTime,
		"cpu", res.ProcessorTime,
		"peak_mem", res.PeakMemoryBytes)

	return res, nil
}

func (e *Executor) applyOffsets(res *models.ProcessExecutionResult) {
	base := time.Duration(e.baseTimeMs) * time.Millisecond
	res.WallTime = max(res.WallTime-base, 0)
	res.ProcessorTime = max(res.ProcessorTime-base, 0)
	res.PeakMemoryBytes = max(res.PeakMemoryBytes-e.baseMemoryBytes, 0)
}

type exitNotice struct {
	at     time.Time
	reaped bool
	err    error
}

func writeInput(stdin interface {
	Write([]byte) (int, error)
	Close() error
}, input string) {
	if input != "" && !strings.HasSuffix(input, "\n") {
		input += "\n"
	}
	// the child may exit without reading; a broken pipe is expected then
	_, _ = stdin.Write([]byte(input))
	_ = stdin.Close()
}

func decode(s string, enc Encoding) string {
	if enc == EncodingSystem {
		return s
	}
	s = strings.TrimPrefix(s, "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return s
}

func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	fn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
