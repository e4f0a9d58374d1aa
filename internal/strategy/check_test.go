package strategy_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/programme-lv/runner/internal/checkers"
	"github.com/programme-lv/runner/internal/models"
	"github.com/programme-lv/runner/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	calls  int
	result checkers.Result
	err    error
}

func (c *countingChecker) Check(_, _, _ string, _ bool) (checkers.Result, error) {
	c.calls++
	return c.result, c.err
}

func TestExecuteAndCheckTest(t *testing.T) {
	test := models.TestCase{Id: 3, Input: "1", ExpectedOutput: "1"}

	tests := []struct {
		name        string
		per         models.ProcessExecutionResult
		verdict     checkers.Result
		want        models.ResultKind
		wantDetails string
		wantChecked bool
	}{
		{
			name:        "correct",
			per:         models.ProcessExecutionResult{OutcomeKind: models.OutcomeSuccess, ReceivedOutput: "1"},
			verdict:     checkers.Result{IsCorrect: true},
			want:        models.ResultCorrectAnswer,
			wantChecked: true,
		},
		{
			name:        "wrong",
			per:         models.ProcessExecutionResult{OutcomeKind: models.OutcomeSuccess, ReceivedOutput: "2"},
			verdict:     checkers.Result{Details: "line 1 differs"},
			want:        models.ResultWrongAnswer,
			wantDetails: "line 1 differs",
			wantChecked: true,
		},
		{
			name: "time limit",
			per:  models.ProcessExecutionResult{OutcomeKind: models.OutcomeTimeLimitExceeded},
			want: models.ResultTimeLimitExceeded,
		},
		{
			name: "memory limit",
			per:  models.ProcessExecutionResult{OutcomeKind: models.OutcomeMemoryLimitExceeded},
			want: models.ResultMemoryLimitExceeded,
		},
		{
			name:        "runtime error",
			per:         models.ProcessExecutionResult{OutcomeKind: models.OutcomeRuntimeError, ErrorOutput: "segfault"},
			want:        models.ResultRuntimeError,
			wantDetails: "segfault",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &countingChecker{result: tt.verdict}
			res, err := strategy.ExecuteAndCheckTest(test, &tt.per, c, false)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Id)
			assert.Equal(t, tt.want, res.ResultKind)
			assert.Equal(t, tt.wantDetails, res.CheckerDetails)
			assert.Equal(t, tt.wantChecked, c.calls == 1)
		})
	}
}

func TestExecuteAndCheckTest_TruncatesRuntimeError(t *testing.T) {
	per := &models.ProcessExecutionResult{
		OutcomeKind: models.OutcomeRuntimeError,
		ErrorOutput: strings.Repeat("x", 5000),
	}
	res, err := strategy.ExecuteAndCheckTest(models.TestCase{Id: 1}, per, &countingChecker{}, false)
	require.NoError(t, err)
	assert.Len(t, res.CheckerDetails, 2048)
}

func TestExecuteAndCheckTest_ReportsEnforcedTime(t *testing.T) {
	per := &models.ProcessExecutionResult{
		OutcomeKind:   models.OutcomeTimeLimitExceeded,
		WallTime:      900 * time.Millisecond,
		ProcessorTime: 300 * time.Millisecond,
	}
	res, err := strategy.ExecuteAndCheckTest(models.TestCase{}, per, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 900, res.TimeUsedMs)

	res, err = strategy.ExecuteAndCheckTest(models.TestCase{}, per, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 300, res.TimeUsedMs)
}

func TestExecuteAndCheckTest_ImpossibleOutcome(t *testing.T) {
	per := &models.ProcessExecutionResult{OutcomeKind: models.OutcomeKind(-1)}
	_, err := strategy.ExecuteAndCheckTest(models.TestCase{}, per, &countingChecker{}, false)
	require.ErrorIs(t, err, strategy.ErrInvariantViolation)
}

func TestExecuteAndCheckTest_CheckerError(t *testing.T) {
	boom := errors.New("bad checker config")
	per := &models.ProcessExecutionResult{OutcomeKind: models.OutcomeSuccess}
	_, err := strategy.ExecuteAndCheckTest(models.TestCase{}, per, &countingChecker{err: boom}, false)
	require.ErrorIs(t, err, boom)
}
