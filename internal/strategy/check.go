package strategy

import (
	"fmt"

	"github.com/programme-lv/runner/internal/checkers"
	"github.com/programme-lv/runner/internal/models"
)

// ExecuteAndCheckTest turns one process outcome into a test verdict. The
// checker runs only for successful processes.
func ExecuteAndCheckTest(
	test models.TestCase,
	per *models.ProcessExecutionResult,
	checker checkers.Checker,
	useProcessorTime bool,
) (models.TestResult, error) {
	res := models.TestResult{
		Id:              test.Id,
		TimeUsedMs:      per.TimeUsedMs(useProcessorTime),
		MemoryUsedBytes: per.PeakMemoryBytes,
	}

	switch per.OutcomeKind {
	case models.OutcomeRuntimeError:
		res.ResultKind = models.ResultRuntimeError
		res.CheckerDetails = models.Truncate(per.ErrorOutput, models.MaxCheckerDetailsLength)
	case models.OutcomeTimeLimitExceeded:
		res.ResultKind = models.ResultTimeLimitExceeded
	case models.OutcomeMemoryLimitExceeded:
		res.ResultKind = models.ResultMemoryLimitExceeded
	case models.OutcomeSuccess:
		if checker == nil {
			return res, fmt.Errorf("%w: no checker for test %d", ErrInvariantViolation, test.Id)
		}
		verdict, err := checker.Check(test.Input, per.ReceivedOutput, test.ExpectedOutput, test.IsTrialTest)
		if err != nil {
			return res, fmt.Errorf("failed to check test %d: %w", test.Id, err)
		}
		res.ResultKind = models.ResultWrongAnswer
		if verdict.IsCorrect {
			res.ResultKind = models.ResultCorrectAnswer
		}
		res.CheckerDetails = models.Truncate(verdict.Details, models.MaxCheckerDetailsLength)
	default:
		return res, fmt.Errorf("%w: unexpected outcome kind %d for test %d",
			ErrInvariantViolation, int(per.OutcomeKind), test.Id)
	}

	return res, nil
}
