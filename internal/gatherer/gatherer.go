// Package gatherer turns strategy progress into job level events and
// fans them out to terminals, message buses and response builders.
package gatherer

import (
	"github.com/programme-lv/runner/api"
	"github.com/programme-lv/runner/internal/models"
	"github.com/programme-lv/runner/internal/strategy"
)

// JobGatherer extends strategy.Gatherer with the start and end of a job.
type JobGatherer interface {
	strategy.Gatherer
	StartJob(systemInfo string)
	// FinishJob receives exactly what SafeExecute returned.
	FinishJob(res *models.ExecutionResult, err error)
}

type multi []JobGatherer

// Multi forwards every event to each gatherer in order.
func Multi(gs ...JobGatherer) JobGatherer {
	return multi(gs)
}

func (m multi) StartJob(systemInfo string) {
	for _, g := range m {
		g.StartJob(systemInfo)
	}
}

func (m multi) StartCompile() {
	for _, g := range m {
		g.StartCompile()
	}
}

func (m multi) FinishCompile(res models.CompileResult) {
	for _, g := range m {
		g.FinishCompile(res)
	}
}

func (m multi) ReachTest(test models.TestCase) {
	for _, g := range m {
		g.ReachTest(test)
	}
}

func (m multi) FinishTest(res models.TestResult) {
	for _, g := range m {
		g.FinishTest(res)
	}
}

func (m multi) FinishJob(res *models.ExecutionResult, err error) {
	for _, g := range m {
		g.FinishJob(res, err)
	}
}

// Status maps a SafeExecute outcome to a job status and message.
// Configuration faults and broken invariants are internal errors.
func Status(res *models.ExecutionResult, err error) (api.ExecStatus, *string) {
	switch {
	case err != nil:
		msg := err.Error()
		return api.InternalError, &msg
	case res == nil:
		msg := "no result"
		return api.InternalError, &msg
	case !res.IsCompiledSuccessfully:
		msg := res.CompilerComment
		return api.CompileError, &msg
	}
	return api.Success, nil
}

func ToTestResult(res models.TestResult) api.TestResult {
	return api.TestResult{
		TestId:         res.Id,
		Verdict:        res.ResultKind.String(),
		TimeMillis:     res.TimeUsedMs,
		MemoryKiBytes:  res.MemoryUsedBytes / 1024,
		CheckerDetails: res.CheckerDetails,
	}
}

func ToRawResult(res *models.RawResult) *api.RawResult {
	if res == nil {
		return nil
	}
	return &api.RawResult{
		Outcome:       res.OutcomeKind.String(),
		Stdout:        res.Output,
		Stderr:        res.ErrorOutput,
		ExitCode:      res.ExitCode,
		TimeMillis:    res.TimeUsedMs,
		MemoryKiBytes: res.MemoryUsedBytes / 1024,
	}
}
