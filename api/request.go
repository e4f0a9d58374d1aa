package api

// ExecReq asks the runner to execute one submission with a named strategy.
type ExecReq struct {
	EvalUuid string `json:"eval_uuid"`
	Strategy string `json:"strategy"`

	Code string `json:"code"`
	// FileContent is base64 in JSON. Set together with AllowedFileExtensions
	// for file submissions.
	FileContent           []byte   `json:"file_content,omitempty"`
	AllowedFileExtensions []string `json:"allowed_file_extensions,omitempty"`
	CompilerType          string   `json:"compiler_type,omitempty"`
	CompilerArgs          string   `json:"compiler_args,omitempty"`

	// Exactly one of Tests and RawInput is used. RawInput wins when set.
	Tests    []ReqTest `json:"tests"`
	RawInput *string   `json:"raw_input,omitempty"`
	Checker  Checker   `json:"checker"`

	TimeLimitMs    int `json:"time_limit_ms"`
	MemoryLimitKiB int `json:"memory_limit_kib"`

	ResSqsUrl string `json:"res_sqs_url,omitempty"`
	NatsInbox string `json:"nats_inbox,omitempty"`
}

type ReqTest struct {
	ID    int  `json:"id"`
	Trial bool `json:"trial"`

	// Sha256 to check if file exists in cache
	InSha256 *string `json:"in_sha256"`
	// URL to download file if missing
	InUrl *string `json:"in_url"`
	// Content directly as an alternative to URL
	InContent *string `json:"in_content"`

	AnsSha256  *string `json:"ans_sha256"`
	AnsUrl     *string `json:"ans_url"`
	AnsContent *string `json:"ans_content"`
}

type Checker struct {
	Namespace string `json:"namespace,omitempty"`
	Type      string `json:"type"`
	Parameter string `json:"parameter,omitempty"`
}
