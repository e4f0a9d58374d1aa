package api

// TestResult is the verdict of a single test case.
type TestResult struct {
	TestId  int    `json:"test_id"`
	Verdict string `json:"verdict"`

	TimeMillis    int   `json:"time_ms"`
	MemoryKiBytes int64 `json:"mem_kib"`

	CheckerDetails string `json:"checker_details,omitempty"`
}

// CompileResult represents compilation outcome
type CompileResult struct {
	Success bool    `json:"success"`
	Comment *string `json:"comment,omitempty"`
}

// RawResult is the outcome of a run without tests.
type RawResult struct {
	Outcome       string `json:"outcome"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	ExitCode      int    `json:"exit_code"`
	TimeMillis    int    `json:"time_ms"`
	MemoryKiBytes int64  `json:"mem_kib"`
}

type ExecStatus string

const (
	Success       ExecStatus = "success"
	CompileError  ExecStatus = "compile_error"
	InternalError ExecStatus = "internal_error"
)

// ExecResponse is a simple, complete response for code execution
type ExecResponse struct {
	EvalUuid string `json:"eval_uuid"`

	// Overall execution status
	Status ExecStatus `json:"status"`

	Compilation CompileResult `json:"compilation"`

	// Test results in submission order (empty if compilation failed)
	TestResults []TestResult `json:"test_results"`
	Raw         *RawResult   `json:"raw,omitempty"`

	// Overall error message (for internal errors)
	ErrorMessage *string `json:"error_message,omitempty"`

	StartTime   string `json:"start_time"`
	FinishTime  string `json:"finish_time"`
	TotalTimeMs int64  `json:"total_time_ms"`

	SystemInfo *string `json:"system_info,omitempty"`
}
