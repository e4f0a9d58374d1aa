package models

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var ErrInvalidContext = errors.New("invalid execution context")

// CheckerSelector names a checker by namespace, type and parameter.
type CheckerSelector struct {
	Namespace string `json:"namespace" toml:"namespace"`
	Type      string `json:"type" toml:"type"`
	Parameter string `json:"parameter" toml:"parameter"`
}

func (s CheckerSelector) Key() string {
	if s.Namespace == "" {
		return s.Type
	}
	return s.Namespace + "." + s.Type
}

type TestCase struct {
	Id             int
	Input          string
	ExpectedOutput string
	IsTrialTest    bool
}

// Input is either TestsInput or RawInput.
type Input interface {
	isInput()
}

// TestsInput is the competitive shape: every test is run and checked.
type TestsInput struct {
	Tests []TestCase
}

// RawInput is the non-competitive shape: one input, raw output, no checker.
type RawInput struct {
	Input string
}

func (TestsInput) isInput() {}
func (RawInput) isInput()   {}

// Submission is the user authored part of an execution context.
type Submission struct {
	Code                        string
	FileContent                 []byte
	AllowedFileExtensions       []string
	CompilerType                CompilerType
	AdditionalCompilerArguments string
}

// ExecutionContext describes one submission run. It is read-only once built.
type ExecutionContext struct {
	Submission

	TimeLimitMs      int
	MemoryLimitBytes int64
	Checker          CheckerSelector
	Input            Input
}

// NewExecutionContext validates the submission and input and returns a context.
func NewExecutionContext(
	subm *Submission,
	timeLimitMs int,
	memoryLimitBytes int64,
	checker CheckerSelector,
	input Input,
) (*ExecutionContext, error) {
	if subm == nil {
		return nil, fmt.Errorf("%w: submission is nil", ErrInvalidContext)
	}
	// pointer forms are accepted here only; the stored input is always a value
	switch in := input.(type) {
	case *TestsInput:
		if in != nil {
			input = *in
		} else {
			input = nil
		}
	case *RawInput:
		if in != nil {
			input = *in
		} else {
			input = nil
		}
	}
	ec := &ExecutionContext{
		Submission:       *subm,
		TimeLimitMs:      timeLimitMs,
		MemoryLimitBytes: memoryLimitBytes,
		Checker:          checker,
		Input:            input,
	}
	if err := ec.Validate(); err != nil {
		return nil, err
	}
	return ec, nil
}

// Validate checks the context without modifying it, so it is safe to call
// from concurrent runs sharing one context.
func (ec *ExecutionContext) Validate() error {
	if ec.Code != "" && len(ec.FileContent) > 0 {
		return fmt.Errorf("%w: code and file content are mutually exclusive", ErrInvalidContext)
	}
	if ec.UsesFileContent() && len(ec.FileContent) == 0 {
		return fmt.Errorf("%w: file submission without content", ErrInvalidContext)
	}
	if ec.TimeLimitMs <= 0 {
		return fmt.Errorf("%w: time limit must be positive, got %d", ErrInvalidContext, ec.TimeLimitMs)
	}
	if ec.MemoryLimitBytes <= 0 {
		return fmt.Errorf("%w: memory limit must be positive, got %d", ErrInvalidContext, ec.MemoryLimitBytes)
	}
	switch in := ec.Input.(type) {
	case TestsInput:
		seen := mapset.NewThreadUnsafeSet[int]()
		for _, t := range in.Tests {
			if !seen.Add(t.Id) {
				return fmt.Errorf("%w: duplicate test id %d", ErrInvalidContext, t.Id)
			}
		}
	case RawInput:
	case nil:
		return fmt.Errorf("%w: input is nil", ErrInvalidContext)
	default:
		return fmt.Errorf("%w: unknown input %T", ErrInvalidContext, in)
	}
	return nil
}

// UsesFileContent reports whether the submission is a binary payload.
func (s *Submission) UsesFileContent() bool {
	return len(s.AllowedFileExtensions) > 0
}

// AllowedExtensions returns the normalized extension set, each with a leading dot.
func (s *Submission) AllowedExtensions() mapset.Set[string] {
	res := mapset.NewThreadUnsafeSet[string]()
	for _, ext := range s.AllowedFileExtensions {
		if ext = NormalizeExtension(ext); ext != "" {
			res.Add(ext)
		}
	}
	return res
}

// PrimaryExtension is the first usable allowed extension, used to name the
// saved submission file.
func (s *Submission) PrimaryExtension() string {
	for _, ext := range s.AllowedFileExtensions {
		if ext = NormalizeExtension(ext); ext != "" {
			return ext
		}
	}
	return ""
}

// NormalizeExtension lowercases ext and gives it a leading dot. Blank input
// yields "".
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
