package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/programme-lv/runner/internal/config"
	"github.com/programme-lv/runner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[log]
level = "debug"

[executor]
timeout_multiplier = 2.0
kill_grace_ms = 1000

[workdir]
root = "/srv/runner/work"

[compilers]
cpp-gcc = "/opt/gcc/bin/g++"

[[languages]]
name = "python-code"
interpreter = "/opt/python/bin/python3"
interpreter_args = ["-I"]
source_ext = ".py"
base_time_ms = 30
base_memory_bytes = 8388608
restricted = true

[[languages]]
name = "pascal-code"
compiler_type = "none"
source_ext = ".pas"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runner.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/srv/runner/work", cfg.Workdir.Root)
	assert.Equal(t, "/opt/gcc/bin/g++", cfg.CompilerPath(models.CompilerCPlusPlusGcc))
	assert.Equal(t, "/usr/bin/gcc", cfg.CompilerPath(models.CompilerCGcc))
	assert.Equal(t, "", cfg.CompilerPath(models.CompilerNone))

	settings := cfg.ExecutorSettings()
	assert.Equal(t, time.Second, settings.KillGrace)
	assert.Equal(t, 100*time.Millisecond, settings.DrainTimeout)
	assert.Equal(t, 45*time.Millisecond, settings.MemorySampleInterval)

	langs := cfg.StrategyLanguages()
	require.Len(t, langs, 2)
	assert.Equal(t, "python-code", langs[0].Name)
	assert.Equal(t, []string{"-I"}, langs[0].InterpreterArgs)
	assert.Equal(t, int64(8<<20), langs[0].BaseMemoryBytes)
	assert.True(t, langs[0].Restricted)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RUNNER_WORKDIR_ROOT", "/tmp/override")
	t.Setenv("RUNNER_QUEUE_CONCURRENCY", "4")
	t.Setenv("RUNNER_COMPILER_C_GCC", "/opt/gcc/bin/gcc")

	cfg, err := config.Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.Workdir.Root)
	assert.Equal(t, 4, cfg.Queue.Concurrency)
	assert.Equal(t, "/opt/gcc/bin/gcc", cfg.CompilerPath(models.CompilerCGcc))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/var/cache/judge")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/judge/runner/work", cfg.Workdir.Root)
	assert.Equal(t, 1.5, cfg.Executor.TimeoutMultiplier)
	assert.Equal(t, 30*time.Second, cfg.CompileTimeout())
}

func TestLoad_Invalid(t *testing.T) {
	_, err := config.Load(writeConfig(t, "[executor]\ntimeout_multiplier = 0.5\n"))
	require.Error(t, err)

	_, err = config.Load(writeConfig(t, "[compilers]\nfortran = \"/usr/bin/gfortran\"\n"))
	require.Error(t, err)

	_, err = config.Load(writeConfig(t, "[[languages]]\nname = \"a\"\n[[languages]]\nname = \"a\"\n"))
	require.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
