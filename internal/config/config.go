package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/runner/internal/executor"
	"github.com/programme-lv/runner/internal/models"
	"github.com/programme-lv/runner/internal/strategy"
	"github.com/programme-lv/runner/internal/xdg"
)

type Config struct {
	Log       LogConfig         `toml:"log"`
	Executor  ExecutorConfig    `toml:"executor"`
	Workdir   WorkdirConfig     `toml:"workdir"`
	Compilers map[string]string `toml:"compilers"`
	Languages []LanguageConfig  `toml:"languages"`
	FileStore FileStoreConfig   `toml:"filestore"`
	Queue     QueueConfig       `toml:"queue"`
	Nats      NatsConfig        `toml:"nats"`
}

type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

type ExecutorConfig struct {
	TimeoutMultiplier float64 `toml:"timeout_multiplier"`
	KillGraceMs       int     `toml:"kill_grace_ms"`
	DrainTimeoutMs    int     `toml:"drain_timeout_ms"`
	MemorySampleMs    int     `toml:"memory_sample_ms"`
	CpuSampleMs       int     `toml:"cpu_sample_ms"`
	OutputLimitBytes  int     `toml:"output_limit_bytes"`
	CompileTimeoutMs  int     `toml:"compile_timeout_ms"`
}

type WorkdirConfig struct {
	Root string `toml:"root"`
}

type LanguageConfig struct {
	Name             string   `toml:"name"`
	CompilerType     string   `toml:"compiler_type"`
	Interpreter      string   `toml:"interpreter"`
	InterpreterArgs  []string `toml:"interpreter_args"`
	SourceExt        string   `toml:"source_ext"`
	BaseTimeMs       int      `toml:"base_time_ms"`
	BaseMemoryBytes  int64    `toml:"base_memory_bytes"`
	Restricted       bool     `toml:"restricted"`
	UseProcessorTime bool     `toml:"use_processor_time"`
	DependOnExitCode bool     `toml:"depend_on_exit_code"`
	SystemEncoding   bool     `toml:"system_encoding"`
}

type FileStoreConfig struct {
	Dir string `toml:"dir"`
}

type QueueConfig struct {
	RequestURL  string `toml:"request_url"`
	ResponseURL string `toml:"response_url"`
	AWSRegion   string `toml:"aws_region"`
	Concurrency int    `toml:"concurrency"`
}

type NatsConfig struct {
	URL string `toml:"url"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	dirs := xdg.New()
	return &Config{
		Log: LogConfig{Level: "info"},
		Executor: ExecutorConfig{
			TimeoutMultiplier: executor.DefaultTimeoutMultiplier,
			KillGraceMs:       int(executor.DefaultKillGrace.Milliseconds()),
			DrainTimeoutMs:    int(executor.DefaultDrainTimeout.Milliseconds()),
			MemorySampleMs:    int(executor.DefaultMemorySampleInterval.Milliseconds()),
			CpuSampleMs:       int(executor.DefaultCpuSampleInterval.Milliseconds()),
			OutputLimitBytes:  executor.DefaultOutputLimitBytes,
			CompileTimeoutMs:  30_000,
		},
		Workdir: WorkdirConfig{Root: dirs.CacheDir("work")},
		Compilers: map[string]string{
			models.CompilerCPlusPlusGcc.String(): "/usr/bin/g++",
			models.CompilerCGcc.String():         "/usr/bin/gcc",
			models.CompilerGolang.String():       "/usr/local/go/bin/go",
		},
		FileStore: FileStoreConfig{Dir: dirs.CacheDir("files")},
		Queue:     QueueConfig{AWSRegion: "eu-central-1", Concurrency: 1},
	}
}

// Load reads .env into the environment if present, then the TOML file at
// path, then RUNNER_* overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays TOML on top of the defaults. Compiler paths are merged so
// a file that names one compiler keeps the defaults for the rest.
func (c *Config) decode(data []byte) error {
	defaults := c.Compilers
	c.Compilers = nil
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	for k, v := range defaults {
		if _, ok := c.Compilers[k]; !ok {
			if c.Compilers == nil {
				c.Compilers = map[string]string{}
			}
			c.Compilers[k] = v
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"RUNNER_LOG_LEVEL":          &c.Log.Level,
		"RUNNER_WORKDIR_ROOT":       &c.Workdir.Root,
		"RUNNER_FILESTORE_DIR":      &c.FileStore.Dir,
		"RUNNER_QUEUE_REQUEST_URL":  &c.Queue.RequestURL,
		"RUNNER_QUEUE_RESPONSE_URL": &c.Queue.ResponseURL,
		"RUNNER_AWS_REGION":         &c.Queue.AWSRegion,
		"RUNNER_NATS_URL":           &c.Nats.URL,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("RUNNER_QUEUE_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RUNNER_QUEUE_CONCURRENCY %q: %w", v, err)
		}
		c.Queue.Concurrency = n
	}
	if v, ok := os.LookupEnv("RUNNER_LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RUNNER_LOG_JSON %q: %w", v, err)
		}
		c.Log.JSON = b
	}

	for _, ct := range []models.CompilerType{models.CompilerCPlusPlusGcc, models.CompilerCGcc, models.CompilerGolang} {
		key := "RUNNER_COMPILER_" + strings.ToUpper(strings.ReplaceAll(ct.String(), "-", "_"))
		if v, ok := os.LookupEnv(key); ok {
			c.Compilers[ct.String()] = v
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Executor.TimeoutMultiplier < 1 {
		return fmt.Errorf("executor.timeout_multiplier must be at least 1, got %v", c.Executor.TimeoutMultiplier)
	}
	if c.Workdir.Root == "" {
		return errors.New("workdir.root must be set")
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be positive, got %d", c.Queue.Concurrency)
	}
	for k := range c.Compilers {
		if _, err := models.ParseCompilerType(k); err != nil {
			return fmt.Errorf("invalid [compilers] entry: %w", err)
		}
	}
	seen := map[string]bool{}
	for _, l := range c.Languages {
		if l.Name == "" {
			return errors.New("every [[languages]] entry needs a name")
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate language %q", l.Name)
		}
		seen[l.Name] = true
		if _, err := models.ParseCompilerType(l.CompilerType); err != nil {
			return fmt.Errorf("language %q: %w", l.Name, err)
		}
	}
	return nil
}

// CompilerPath resolves a compiler type to its configured path. None and
// unconfigured types resolve to "".
func (c *Config) CompilerPath(ct models.CompilerType) string {
	if ct == models.CompilerNone {
		return ""
	}
	return c.Compilers[ct.String()]
}

func (c *Config) ExecutorSettings() executor.Settings {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return executor.Settings{
		KillGrace:            ms(c.Executor.KillGraceMs),
		DrainTimeout:         ms(c.Executor.DrainTimeoutMs),
		MemorySampleInterval: ms(c.Executor.MemorySampleMs),
		CpuSampleInterval:    ms(c.Executor.CpuSampleMs),
		OutputLimitBytes:     c.Executor.OutputLimitBytes,
	}
}

func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.Executor.CompileTimeoutMs) * time.Millisecond
}

// StrategyLanguages converts [[languages]] entries. Validate has already
// checked the compiler types.
func (c *Config) StrategyLanguages() []strategy.Language {
	res := make([]strategy.Language, 0, len(c.Languages))
	for _, l := range c.Languages {
		ct, _ := models.ParseCompilerType(l.CompilerType)
		res = append(res, strategy.Language{
			Name:             l.Name,
			CompilerType:     ct,
			Interpreter:      l.Interpreter,
			InterpreterArgs:  l.InterpreterArgs,
			SourceExt:        l.SourceExt,
			BaseTimeMs:       l.BaseTimeMs,
			BaseMemoryBytes:  l.BaseMemoryBytes,
			Restricted:       l.Restricted,
			UseProcessorTime: l.UseProcessorTime,
			DependOnExitCode: l.DependOnExitCode,
			SystemEncoding:   l.SystemEncoding,
		})
	}
	return res
}
