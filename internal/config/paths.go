package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir resolves the directory tim's own configuration lives under,
// honoring XDG_CONFIG_HOME on Unix and APPDATA on Windows, the same
// environment variables used to locate the shared-permissions store
// and the plan database.
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "tim"), nil
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tim"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tim"), nil
}

// EnsureConfigDir resolves ConfigDir and creates it if missing.
func EnsureConfigDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// SharedStorePath returns the path to the cross-worktree shared
// permissions database.
func SharedStorePath() (string, error) {
	dir, err := EnsureConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "permissions.db"), nil
}
