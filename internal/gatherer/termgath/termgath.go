package termgath

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/runner/api"
	"github.com/programme-lv/runner/internal/gatherer"
	"github.com/programme-lv/runner/internal/models"
)

type TerminalGatherer struct {
	w         io.Writer
	startedAt time.Time

	ok   *color.Color
	bad  *color.Color
	info *color.Color
}

// New writes events to w, or stdout when w is nil.
func New(w io.Writer) *TerminalGatherer {
	if w == nil {
		w = os.Stdout
	}
	return &TerminalGatherer{
		w:         w,
		startedAt: time.Now(),
		ok:        color.New(color.FgGreen),
		bad:       color.New(color.FgRed),
		info:      color.New(color.FgCyan),
	}
}

func (t *TerminalGatherer) StartJob(systemInfo string) {
	t.startedAt = time.Now()
	t.info.Fprintln(t.w, "== Evaluation started ==")
	if systemInfo != "" {
		fmt.Fprintln(t.w, "System info:")
		fmt.Fprintln(t.w, systemInfo)
	}
}

func (t *TerminalGatherer) StartCompile() {
	t.info.Fprintln(t.w, "-- Compilation started --")
}

func (t *TerminalGatherer) FinishCompile(res models.CompileResult) {
	if res.Success {
		t.ok.Fprintln(t.w, "-- Compilation finished --")
	} else {
		t.bad.Fprintln(t.w, "-- Compilation failed --")
	}
	if res.Diagnostic != "" {
		fmt.Fprintln(t.w, api.TrimToRect(res.Diagnostic, api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth))
	}
}

func (t *TerminalGatherer) ReachTest(test models.TestCase) {
	fmt.Fprintf(t.w, "-> Test %d reached\n", test.Id)
}

func (t *TerminalGatherer) FinishTest(res models.TestResult) {
	c := t.bad
	if res.ResultKind == models.ResultCorrectAnswer {
		c = t.ok
	}
	c.Fprintf(t.w, "<- Test %d %s", res.Id, res.ResultKind)
	fmt.Fprintf(t.w, " time=%dms mem=%dKiB\n", res.TimeUsedMs, res.MemoryUsedBytes/1024)
	if res.CheckerDetails != "" {
		fmt.Fprintf(t.w, "   %s\n", res.CheckerDetails)
	}
}

func (t *TerminalGatherer) FinishJob(res *models.ExecutionResult, err error) {
	status, msg := gatherer.Status(res, err)
	switch status {
	case api.CompileError:
		t.bad.Fprintf(t.w, "== Compilation error: %s ==\n", *msg)
	case api.InternalError:
		t.bad.Fprintf(t.w, "== Internal error: %s ==\n", *msg)
	default:
		if res.Raw != nil {
			fmt.Fprintf(t.w, "outcome=%s exit=%d time=%dms mem=%dKiB\n",
				res.Raw.OutcomeKind, res.Raw.ExitCode, res.Raw.TimeUsedMs, res.Raw.MemoryUsedBytes/1024)
			fmt.Fprint(t.w, res.Raw.Output)
			if res.Raw.ErrorOutput != "" {
				t.bad.Fprint(t.w, res.Raw.ErrorOutput)
			}
		}
		dur := time.Since(t.startedAt).Round(time.Millisecond)
		t.ok.Fprintf(t.w, "== Evaluation finished in %s ==\n", dur)
	}
}
