package strategy

import (
	"context"

	"github.com/programme-lv/runner/internal/models"
)

const (
	CheckOnlyName = "check-only"
	DoNothingName = "do-nothing"
)

// CheckOnly treats the submitted code as the program output and checks it
// against every test. No process is started.
type CheckOnly struct {
	deps Deps
}

func NewCheckOnly(deps Deps) *CheckOnly {
	return &CheckOnly{deps: deps}
}

func (s *CheckOnly) Name() string {
	return CheckOnlyName
}

func (s *CheckOnly) SafeExecute(ctx context.Context, ec *models.ExecutionContext, g Gatherer) (*models.ExecutionResult, error) {
	return safeExecute(ctx, CheckOnlyName, s.deps, ec, g, s.execute)
}

func (s *CheckOnly) execute(_ context.Context, ec *models.ExecutionContext, _ string, g Gatherer) (*models.ExecutionResult, error) {
	checker, err := resolveChecker(s.deps, ec)
	if err != nil {
		return nil, err
	}

	result := &models.ExecutionResult{IsCompiledSuccessfully: true}
	per := &models.ProcessExecutionResult{
		OutcomeKind:    models.OutcomeSuccess,
		ReceivedOutput: ec.Code,
	}

	switch in := ec.Input.(type) {
	case models.TestsInput:
		for _, test := range in.Tests {
			g.ReachTest(test)
			tr, err := ExecuteAndCheckTest(test, per, checker, false)
			if err != nil {
				return nil, err
			}
			g.FinishTest(tr)
			result.TestResults = append(result.TestResults, tr)
		}
	case models.RawInput:
		result.Raw = &models.RawResult{
			OutcomeKind: models.OutcomeSuccess,
			Output:      ec.Code,
		}
	}
	return result, nil
}

// DoNothing accepts every submission without running anything.
type DoNothing struct {
	deps Deps
}

func NewDoNothing(deps Deps) *DoNothing {
	return &DoNothing{deps: deps}
}

func (s *DoNothing) Name() string {
	return DoNothingName
}

func (s *DoNothing) SafeExecute(ctx context.Context, ec *models.ExecutionContext, g Gatherer) (*models.ExecutionResult, error) {
	return safeExecute(ctx, DoNothingName, s.deps, ec, g,
		func(context.Context, *models.ExecutionContext, string, Gatherer) (*models.ExecutionResult, error) {
			return &models.ExecutionResult{IsCompiledSuccessfully: true}, nil
		})
}
