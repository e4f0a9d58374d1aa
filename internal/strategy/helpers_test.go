package strategy_test

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/programme-lv/runner/internal/checkers"
	"github.com/programme-lv/runner/internal/compiler"
	"github.com/programme-lv/runner/internal/models"
	"github.com/programme-lv/runner/internal/strategy"
	"github.com/programme-lv/runner/internal/workdir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shell = strategy.Language{
	Name:        "sh-code",
	Interpreter: "/bin/sh",
	SourceExt:   ".sh",
}

func newDeps(t *testing.T, compilerPaths map[models.CompilerType]string) strategy.Deps {
	t.Helper()
	wd, err := workdir.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	return strategy.Deps{
		Workdirs:  wd,
		Checkers:  checkers.NewRegistry(),
		Compilers: compiler.NewRegistry(5*time.Second, nil),
		CompilerPath: func(ct models.CompilerType) string {
			return compilerPaths[ct]
		},
	}
}

func newContext(t *testing.T, code string, timeLimitMs int, input models.Input) *models.ExecutionContext {
	t.Helper()
	ec, err := models.NewExecutionContext(
		&models.Submission{Code: code},
		timeLimitMs,
		256<<20,
		models.CheckerSelector{},
		input,
	)
	require.NoError(t, err)
	return ec
}

// assertNoWorkdirs checks that only directories already moved aside for
// background deletion remain under the root.
func assertNoWorkdirs(t *testing.T, wd *workdir.Manager) {
	t.Helper()
	entries, err := os.ReadDir(wd.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), ".trash-"), "working directory %s left behind", e.Name())
	}
	wd.Wait()
	entries, err = os.ReadDir(wd.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type recorder struct {
	mu       sync.Mutex
	events   []string
	compiled []models.CompileResult
	finished []models.TestResult
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) StartCompile() {
	r.add("start_compile")
}

func (r *recorder) FinishCompile(res models.CompileResult) {
	r.add("finish_compile")
	r.mu.Lock()
	r.compiled = append(r.compiled, res)
	r.mu.Unlock()
}

func (r *recorder) ReachTest(test models.TestCase) {
	r.add("reach_test")
}

func (r *recorder) FinishTest(res models.TestResult) {
	r.add("finish_test")
	r.mu.Lock()
	r.finished = append(r.finished, res)
	r.mu.Unlock()
}
