package behave

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/runner/api"
)

// SpecTest is a single test case in the behaviour file
type SpecTest struct {
	ID    int    `toml:"id"`
	In    string `toml:"in"`
	Ans   string `toml:"ans"`
	Trial bool   `toml:"trial"`
}

// SpecRequest represents a request block inside a scenario entry
type SpecRequest struct {
	Strategy     string      `toml:"strategy"`
	Code         string      `toml:"code"`
	CompilerType string      `toml:"compiler_type"`
	RawInput     *string     `toml:"raw_input"`
	Tests        []SpecTest  `toml:"tests"`
	Checker      api.Checker `toml:"checker"`
	Limits       SpecLimits  `toml:"limits"`
}

// SpecLimits describes resource limits for a scenario request
type SpecLimits struct {
	TimeMs int `toml:"time_ms"`
	RamKiB int `toml:"ram_kib"`
}

// SpecTestVerdict represents an expected verdict for a test result
type SpecTestVerdict struct {
	Verdict string `toml:"verdict"`
}

// SpecExpect describes expected overall status and per-test verdicts
type SpecExpect struct {
	Status      string            `toml:"status"`
	TestResults []SpecTestVerdict `toml:"test_results"`
	// Substrings that must appear in the raw output or compiler comment.
	StdoutContains  string `toml:"stdout_contains"`
	CommentContains string `toml:"comment_contains"`
}

// specSuite maps to [[scenarios]] entries. The request is written as an
// array-of-table, so we model it as a slice and use the first element.
type specSuite struct {
	Description string        `toml:"description"`
	RequestAOT  []SpecRequest `toml:"request"`
	Expect      SpecExpect    `toml:"expect"`
}

type specRoot struct {
	Suites []specSuite `toml:"scenarios"`
}

// Case is a runnable scenario converted from TOML
type Case struct {
	Name    string
	Request api.ExecReq
	Expect  SpecExpect
}

// Parse reads a behaviour TOML file and converts it to runnable cases
func Parse(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cases := make([]Case, 0, len(root.Suites))
	for _, suite := range root.Suites {
		if len(suite.RequestAOT) == 0 {
			return nil, fmt.Errorf("scenario %q is missing request block", suite.Description)
		}
		reqSpec := suite.RequestAOT[0]
		if reqSpec.Strategy == "" {
			return nil, fmt.Errorf("scenario %q names no strategy", suite.Description)
		}

		tests := make([]api.ReqTest, 0, len(reqSpec.Tests))
		for i, t := range reqSpec.Tests {
			in, ans := t.In, t.Ans
			id := t.ID
			if id == 0 {
				id = i + 1
			}
			tests = append(tests, api.ReqTest{
				ID:         id,
				Trial:      t.Trial,
				InContent:  &in,
				AnsContent: &ans,
			})
		}

		// Apply limits with sensible defaults if not provided
		timeMs := reqSpec.Limits.TimeMs
		if timeMs == 0 {
			timeMs = 2000
		}
		ramKiB := reqSpec.Limits.RamKiB
		if ramKiB == 0 {
			ramKiB = 256 * 1024
		}

		cases = append(cases, Case{
			Name: suite.Description,
			Request: api.ExecReq{
				EvalUuid:       uuid.NewString(),
				Strategy:       reqSpec.Strategy,
				Code:           reqSpec.Code,
				CompilerType:   reqSpec.CompilerType,
				Tests:          tests,
				RawInput:       reqSpec.RawInput,
				Checker:        reqSpec.Checker,
				TimeLimitMs:    timeMs,
				MemoryLimitKiB: ramKiB,
			},
			Expect: suite.Expect,
		})
	}

	return cases, nil
}

// Verify compares a response with the case's expectations and joins every
// mismatch into one error.
func (c Case) Verify(resp api.ExecResponse) error {
	var errs []error
	if c.Expect.Status != "" && string(resp.Status) != c.Expect.Status {
		errs = append(errs, fmt.Errorf("status: expected %s, got %s", c.Expect.Status, resp.Status))
	}
	if len(c.Expect.TestResults) > 0 {
		if len(resp.TestResults) != len(c.Expect.TestResults) {
			errs = append(errs, fmt.Errorf("expected %d test results, got %d", len(c.Expect.TestResults), len(resp.TestResults)))
		} else {
			for i, want := range c.Expect.TestResults {
				got := resp.TestResults[i]
				if got.Verdict != want.Verdict {
					errs = append(errs, fmt.Errorf("test %d: expected %s, got %s", got.TestId, want.Verdict, got.Verdict))
				}
			}
		}
	}
	if want := c.Expect.StdoutContains; want != "" {
		if resp.Raw == nil || !strings.Contains(resp.Raw.Stdout, want) {
			errs = append(errs, fmt.Errorf("stdout does not contain %q", want))
		}
	}
	if want := c.Expect.CommentContains; want != "" {
		comment := ""
		if resp.Compilation.Comment != nil {
			comment = *resp.Compilation.Comment
		}
		if !strings.Contains(comment, want) {
			errs = append(errs, fmt.Errorf("compiler comment does not contain %q", want))
		}
	}
	return errors.Join(errs...)
}
