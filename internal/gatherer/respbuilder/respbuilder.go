package respbuilder

import (
	"sync"
	"time"

	"github.com/programme-lv/runner/api"
	"github.com/programme-lv/runner/internal/gatherer"
	"github.com/programme-lv/runner/internal/models"
)

// Builder gathers execution events and builds a complete api.ExecResponse.
type Builder struct {
	evalUuid string

	mu         sync.Mutex
	systemInfo string
	started    time.Time
	finished   time.Time

	compileResult api.CompileResult
	testResults   []api.TestResult
	raw           *api.RawResult

	status       api.ExecStatus
	errorMessage *string
}

func New(evalUuid string) *Builder {
	return &Builder{
		evalUuid: evalUuid,
		started:  time.Now(),
		status:   api.Success,
	}
}

func (b *Builder) StartJob(systemInfo string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.systemInfo = systemInfo
}

func (b *Builder) StartCompile() {}

func (b *Builder) FinishCompile(res models.CompileResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compileResult.Success = res.Success
	if !res.Success {
		msg := res.Diagnostic
		b.compileResult.Comment = &msg
	}
}

func (b *Builder) ReachTest(models.TestCase) {}

func (b *Builder) FinishTest(res models.TestResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.testResults = append(b.testResults, gatherer.ToTestResult(res))
}

// FinishJob takes the final word from the returned result: streamed test
// results are replaced by the result's own list.
func (b *Builder) FinishJob(res *models.ExecutionResult, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finished = time.Now()
	b.status, b.errorMessage = gatherer.Status(res, err)
	if res == nil {
		return
	}

	b.compileResult.Success = res.IsCompiledSuccessfully
	b.compileResult.Comment = nil
	if res.CompilerComment != "" {
		msg := res.CompilerComment
		b.compileResult.Comment = &msg
	}
	b.testResults = make([]api.TestResult, 0, len(res.TestResults))
	for _, tr := range res.TestResults {
		b.testResults = append(b.testResults, gatherer.ToTestResult(tr))
	}
	b.raw = gatherer.ToRawResult(res.Raw)
}

func (b *Builder) Response() api.ExecResponse {
	b.mu.Lock()
	defer b.mu.Unlock()

	finished := b.finished
	if finished.IsZero() {
		finished = time.Now()
	}
	tests := b.testResults
	if tests == nil {
		tests = []api.TestResult{}
	}
	resp := api.ExecResponse{
		EvalUuid:     b.evalUuid,
		Status:       b.status,
		Compilation:  b.compileResult,
		TestResults:  tests,
		Raw:          b.raw,
		ErrorMessage: b.errorMessage,
		StartTime:    b.started.Format(time.RFC3339),
		FinishTime:   finished.Format(time.RFC3339),
		TotalTimeMs:  finished.Sub(b.started).Milliseconds(),
	}
	if b.systemInfo != "" {
		info := b.systemInfo
		resp.SystemInfo = &info
	}
	return resp
}
