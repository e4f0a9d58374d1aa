package models

import (
	"time"
	"unicode/utf8"
)

// MaxCheckerDetailsLength bounds TestResult.CheckerDetails, in characters.
const MaxCheckerDetailsLength = 2048

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimeLimitExceeded
	OutcomeMemoryLimitExceeded
	OutcomeRuntimeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeLimitExceeded:
		return "time_limit_exceeded"
	case OutcomeMemoryLimitExceeded:
		return "memory_limit_exceeded"
	case OutcomeRuntimeError:
		return "runtime_error"
	}
	return "unknown"
}

type ProcessExecutionResult struct {
	OutcomeKind    OutcomeKind
	ReceivedOutput string
	ErrorOutput    string
	// OutputTruncated is set when stdout exceeded the capture limit.
	OutputTruncated bool
	ExitCode        int
	WallTime        time.Duration
	ProcessorTime   time.Duration
	PeakMemoryBytes int64
}

// TimeUsedMs is the time reported to the caller: processor time when it was
// the enforced measure, wall time otherwise.
func (r *ProcessExecutionResult) TimeUsedMs(useProcessorTime bool) int {
	if useProcessorTime {
		return int(r.ProcessorTime.Milliseconds())
	}
	return int(r.WallTime.Milliseconds())
}

type ResultKind int

const (
	ResultCorrectAnswer ResultKind = iota
	ResultWrongAnswer
	ResultTimeLimitExceeded
	ResultMemoryLimitExceeded
	ResultRuntimeError
)

func (k ResultKind) String() string {
	switch k {
	case ResultCorrectAnswer:
		return "correct_answer"
	case ResultWrongAnswer:
		return "wrong_answer"
	case ResultTimeLimitExceeded:
		return "time_limit_exceeded"
	case ResultMemoryLimitExceeded:
		return "memory_limit_exceeded"
	case ResultRuntimeError:
		return "runtime_error"
	}
	return "unknown"
}

func (k ResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type TestResult struct {
	Id              int
	ResultKind      ResultKind
	TimeUsedMs      int
	MemoryUsedBytes int64
	CheckerDetails  string
}

// RawResult is the outcome of a non-competitive run.
type RawResult struct {
	OutcomeKind     OutcomeKind
	Output          string
	ErrorOutput     string
	ExitCode        int
	TimeUsedMs      int
	MemoryUsedBytes int64
}

type CompileResult struct {
	Success            bool
	Diagnostic         string
	OutputArtifactPath string
}

type ExecutionResult struct {
	IsCompiledSuccessfully bool
	CompilerComment        string
	// TestResults are in submission order, not necessarily sorted by Id.
	TestResults []TestResult
	// Raw is set only for non-competitive runs.
	Raw *RawResult
}

// Truncate cuts s to at most max characters.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
