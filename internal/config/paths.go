package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the directory for tagview log files.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\Tagview\logs
//   - Unix: ~/.config/tagview/logs
func LogDirectory() string {
	return filepath.Join(stateRoot(), "logs")
}

// CacheDirectory returns the default root of the on-disk layout cache.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\Tagview\cache
//   - Unix: $XDG_CACHE_HOME/tagview (usually ~/.cache/tagview)
func CacheDirectory() string {
	if runtime.GOOS != "windows" {
		if dir, err := os.UserCacheDir(); err == nil {
			return filepath.Join(dir, "tagview")
		}
	}
	return filepath.Join(stateRoot(), "cache")
}

// DefaultLogFile returns the default rotating log file path.
func DefaultLogFile() string {
	return filepath.Join(LogDirectory(), "tagview.log")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
// Uses 0700 permissions to restrict log access to owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

func stateRoot() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "tagview")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "Tagview")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "tagview")
		}
		return filepath.Join(homeDir, ".config", "tagview")
	}
	return filepath.Join(configDir, "tagview")
}
