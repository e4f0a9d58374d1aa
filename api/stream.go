package api

import "time"

// MsgType is a message type for streaming responses
type MsgType string

// Streaming message type constants
const (
	StartJobMsg      MsgType = "job_start"
	StartCompileMsg  MsgType = "compile_start"
	FinishCompileMsg MsgType = "compile_finish"
	ReachTestMsg     MsgType = "test_reach"
	FinishTestMsg    MsgType = "test_finish"
	FinishJobMsg     MsgType = "job_finish"
)

// Size of the rectangle that streamed test data is trimmed to.
const (
	MaxRuntimeDataHeight = 40
	MaxRuntimeDataWidth  = 80
)

// Header is the common header for all streaming response messages
type Header struct {
	EvalUuid string  `json:"eval_uuid"`
	MsgType  MsgType `json:"msg_type"`
}

type StartJob struct {
	Header
	SystemInfo  string `json:"system_info"`
	StartedTime string `json:"started_time"`
}

type StartCompile struct {
	Header
}

type FinishCompile struct {
	Header
	Success    bool   `json:"success"`
	Diagnostic string `json:"diagnostic"`
}

type ReachTest struct {
	Header
	TestId int     `json:"test_id"`
	Input  *string `json:"input"`
	Answer *string `json:"answer"`
}

type FinishTest struct {
	Header
	Result TestResult `json:"result"`
}

type FinishJob struct {
	Header
	ErrorMessage  *string `json:"error_message"`
	CompileError  bool    `json:"compile_error"`
	InternalError bool    `json:"internal_error"`
}

func NewHeader(evalUuid string, msgType MsgType) Header {
	return Header{
		EvalUuid: evalUuid,
		MsgType:  msgType,
	}
}

func NewStartJob(evalUuid, systemInfo string) StartJob {
	return StartJob{
		Header:      NewHeader(evalUuid, StartJobMsg),
		SystemInfo:  systemInfo,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewStartCompile(evalUuid string) StartCompile {
	return StartCompile{
		Header: NewHeader(evalUuid, StartCompileMsg),
	}
}

func NewFinishCompile(evalUuid string, success bool, diagnostic string) FinishCompile {
	return FinishCompile{
		Header:     NewHeader(evalUuid, FinishCompileMsg),
		Success:    success,
		Diagnostic: TrimToRect(diagnostic, MaxRuntimeDataHeight, MaxRuntimeDataWidth),
	}
}

// NewReachTest trims input and answer to the streaming rectangle.
func NewReachTest(evalUuid string, testId int, input, answer string) ReachTest {
	in := TrimToRect(input, MaxRuntimeDataHeight, MaxRuntimeDataWidth)
	ans := TrimToRect(answer, MaxRuntimeDataHeight, MaxRuntimeDataWidth)
	return ReachTest{
		Header: NewHeader(evalUuid, ReachTestMsg),
		TestId: testId,
		Input:  &in,
		Answer: &ans,
	}
}

func NewFinishTest(evalUuid string, res TestResult) FinishTest {
	return FinishTest{
		Header: NewHeader(evalUuid, FinishTestMsg),
		Result: res,
	}
}

func NewFinishJob(evalUuid string, errorMessage *string, compileError, internalError bool) FinishJob {
	return FinishJob{
		Header:        NewHeader(evalUuid, FinishJobMsg),
		ErrorMessage:  errorMessage,
		CompileError:  compileError,
		InternalError: internalError,
	}
}
