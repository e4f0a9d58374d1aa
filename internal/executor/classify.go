package executor

import (
	"time"

	"github.com/programme-lv/runner/internal/models"
)

// Observation is everything the classifier looks at once a process is done.
// Limits include base overhead.
type Observation struct {
	KilledForTimeout bool
	UseProcessorTime bool
	ProcessorTime    time.Duration
	TimeLimit        time.Duration
	PeakMemoryBytes  int64
	MemoryLimitBytes int64
	// MemoryCeiling is set when a hard address space ceiling above
	// MemoryLimitBytes was in force.
	MemoryCeiling    bool
	ErrorOutput      string
	OutputTruncated  bool
	DependOnExitCode bool
	ExitCode         int
}

// Classify applies the checks in order; each later check overrides an
// earlier one, so a runtime error wins over everything and memory wins over
// time.
//
// Two exceptions keep the resource verdicts reachable. The exit code of a
// process the supervisor killed for time is not a runtime error. Under a
// hard memory ceiling a failure after the peak crossed the limit is the
// allocation failing, so it stays a memory verdict.
func Classify(o Observation) models.OutcomeKind {
	kind := models.OutcomeSuccess

	if o.KilledForTimeout || (o.UseProcessorTime && o.ProcessorTime > o.TimeLimit) {
		kind = models.OutcomeTimeLimitExceeded
	}

	overMemory := o.PeakMemoryBytes > o.MemoryLimitBytes
	if overMemory {
		kind = models.OutcomeMemoryLimitExceeded
	}

	failedExit := o.DependOnExitCode && o.ExitCode != 0 && !o.KilledForTimeout
	if o.ErrorOutput != "" || o.OutputTruncated || failedExit {
		if !(overMemory && o.MemoryCeiling) {
			kind = models.OutcomeRuntimeError
		}
	}

	return kind
}
