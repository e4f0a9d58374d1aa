package strategy

import (
	"strings"

	"github.com/programme-lv/runner/internal/executor"
	"github.com/programme-lv/runner/internal/models"
)

// Language is everything that differs between runtimes. An engine runs any
// language the same way: save, compile, execute, check.
type Language struct {
	Name string
	// CompilerType is used when the execution context does not name one.
	CompilerType models.CompilerType
	// Interpreter runs the artifact when set; otherwise the artifact itself
	// is executed.
	Interpreter     string
	InterpreterArgs []string
	SourceExt       string

	BaseTimeMs      int
	BaseMemoryBytes int64

	Restricted       bool
	UseProcessorTime bool
	DependOnExitCode bool
	SystemEncoding   bool

	// PostProcessOutput rewrites received output before it is checked.
	PostProcessOutput func(string) string
}

// BuildArguments returns the executable and its arguments for an artifact.
func (l Language) BuildArguments(artifact string) (string, []string) {
	if l.Interpreter == "" {
		return artifact, nil
	}
	args := make([]string, 0, len(l.InterpreterArgs)+1)
	args = append(args, l.InterpreterArgs...)
	return l.Interpreter, append(args, artifact)
}

func (l Language) executorKind() executor.Kind {
	if l.Restricted {
		return executor.Restricted
	}
	return executor.Standard
}

func (l Language) options(multiplier float64) executor.Options {
	enc := executor.EncodingUTF8
	if l.SystemEncoding {
		enc = executor.EncodingSystem
	}
	return executor.Options{
		UseProcessorTime:  l.UseProcessorTime,
		DependOnExitCode:  l.DependOnExitCode,
		Encoding:          enc,
		TimeoutMultiplier: multiplier,
	}
}

func (l Language) compilerType(ec *models.ExecutionContext) models.CompilerType {
	if ec.CompilerType != models.CompilerNone {
		return ec.CompilerType
	}
	return l.CompilerType
}

func (l Language) sourceExt(ct models.CompilerType) string {
	if l.SourceExt != "" {
		return l.SourceExt
	}
	switch ct {
	case models.CompilerCPlusPlusGcc:
		return ".cpp"
	case models.CompilerCGcc:
		return ".c"
	case models.CompilerGolang:
		return ".go"
	}
	return ""
}

// DefaultLanguages are registered under their names unless configuration
// overrides them.
func DefaultLanguages() []Language {
	return []Language{
		{
			Name: "compile-execute-and-check",
		},
		{
			Name:         "cpp-code",
			CompilerType: models.CompilerCPlusPlusGcc,
			SourceExt:    ".cpp",
			Restricted:   true,
		},
		{
			Name:         "c-code",
			CompilerType: models.CompilerCGcc,
			SourceExt:    ".c",
			Restricted:   true,
		},
		{
			// the go runtime reserves far more address space than it uses
			Name:         "golang-code",
			CompilerType: models.CompilerGolang,
			SourceExt:    ".go",
		},
		{
			Name:            "python-code",
			Interpreter:     "/usr/bin/python3",
			InterpreterArgs: []string{"-I", "-OO"},
			SourceExt:       ".py",
			Restricted:      true,
			SystemEncoding:  true,
		},
		{
			Name:        "ruby-code",
			Interpreter: "/usr/bin/ruby",
			SourceExt:   ".rb",
			Restricted:  true,
		},
		{
			Name:              "php-code",
			Interpreter:       "/usr/bin/php-cgi",
			InterpreterArgs:   []string{"-f"},
			SourceExt:         ".php",
			Restricted:        true,
			PostProcessOutput: stripPhpHeaders,
		},
		{
			Name:        "javascript-code",
			Interpreter: "/usr/bin/node",
			SourceExt:   ".js",
		},
	}
}

// stripPhpHeaders drops the header block php-cgi prints before the body.
func stripPhpHeaders(out string) string {
	if !strings.HasPrefix(out, "X-Powered-By:") && !strings.HasPrefix(out, "Content-type:") {
		return out
	}
	if i := strings.Index(out, "\r\n\r\n"); i >= 0 {
		return out[i+4:]
	}
	if i := strings.Index(out, "\n\n"); i >= 0 {
		return out[i+2:]
	}
	return out
}
