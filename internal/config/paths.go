// Package config provides configuration loading and path management.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard per-user directories for Sidekick data,
// following the XDG base directory layout.
type Paths struct {
	Data   string // ~/.local/share/sidekick
	Config string // ~/.config/sidekick
	Cache  string // ~/.cache/sidekick
	State  string // ~/.local/state/sidekick
}

// GetPaths resolves the standard paths, honoring XDG_* overrides.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "sidekick"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "sidekick"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "sidekick"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "sidekick"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath returns the directory for the file-based session store.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

// GlobalConfigPath returns the user-scope config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "sidekick.json")
}

// ProjectConfigPath returns the workspace-scope config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".sidekick", "sidekick.json")
}

// GlobalMCPConfigPath returns the user-scope MCP server registry file.
func GlobalMCPConfigPath() string {
	return filepath.Join(GetPaths().Config, "mcp.json")
}

// ProjectMCPConfigPath returns the workspace-scope MCP server registry file.
func ProjectMCPConfigPath(directory string) string {
	return filepath.Join(directory, ".sidekick", "mcp.json")
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "cache")
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}
