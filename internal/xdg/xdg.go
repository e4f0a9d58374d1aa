package xdg

import (
	"os"
	"path/filepath"
)

// AppName names the runner's own subdirectories.
const AppName = "runner"

// Dirs holds XDG base directories resolved from the environment.
type Dirs struct {
	configHome string
	cacheHome  string
}

// New resolves the base directories, falling back to the XDG defaults
// under the home directory.
func New() *Dirs {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
		if home == "" {
			home = os.TempDir()
		}
	}

	return &Dirs{
		configHome: envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config")),
		cacheHome:  envOr("XDG_CACHE_HOME", filepath.Join(home, ".cache")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (d *Dirs) ConfigHome() string {
	return d.configHome
}

func (d *Dirs) CacheHome() string {
	return d.cacheHome
}

// ConfigFile is the default location of the runner's TOML configuration.
func (d *Dirs) ConfigFile() string {
	return filepath.Join(d.configHome, AppName, "runner.toml")
}

// CacheDir returns a runner subdirectory of the cache home. Working
// directories and downloaded test files live here since both can be
// regenerated.
func (d *Dirs) CacheDir(sub string) string {
	return filepath.Join(d.cacheHome, AppName, sub)
}
