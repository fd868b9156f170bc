package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ConfigDir is the directory name under the user config root.
const ConfigDir = "retctl"

// configDir returns the platform-appropriate config directory.
//   - Windows: %APPDATA%\Retribution\retctl
//   - Unix: ~/.config/retctl (XDG standard)
func configDir() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Retribution", ConfigDir)
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, "AppData", "Roaming", "Retribution", ConfigDir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDir)
	}
	return ""
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	dir := configDir()
	if dir == "" {
		return "config.ini"
	}
	return filepath.Join(dir, "config.ini")
}

// DefaultCredentialPath returns where the credential is kept unless
// [session] credential_file says otherwise.
func DefaultCredentialPath() string {
	dir := configDir()
	if dir == "" {
		return "credential"
	}
	return filepath.Join(dir, "credential")
}

// LogDirectory returns the log directory used by the terminal UI.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\Retribution\retctl\logs
//   - Unix: ~/.config/retctl/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "retctl-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "Retribution", ConfigDir, "logs")
	}

	dir := configDir()
	if dir == "" {
		return filepath.Join(os.TempDir(), "retctl-logs")
	}
	return filepath.Join(dir, "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
