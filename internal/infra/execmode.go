package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as a regular user with per-user storage
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root with system-wide storage
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode       ExecMode
	StorageDir string // Where dmypy status and log files live
	LogPath    string // Supervisor log file for background mode
	IsRoot     bool   // Whether running as root
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:       ExecModeSystem,
			StorageDir: "/var/lib/tcmon",
			LogPath:    "/var/log/tcmon.log",
			IsRoot:     true,
		}
	}

	storage := filepath.Join(GetRealUserHome(), ".tcmon")
	return &ExecModeConfig{
		Mode:       ExecModeUser,
		StorageDir: storage,
		LogPath:    filepath.Join(storage, "tcmon.log"),
		IsRoot:     false,
	}
}

// WithStorageDir returns a copy using a configured storage directory.
// An empty dir keeps the detected one.
func (c *ExecModeConfig) WithStorageDir(dir string) *ExecModeConfig {
	if dir == "" {
		return c
	}
	out := *c
	out.StorageDir = dir
	out.LogPath = filepath.Join(dir, "tcmon.log")
	return &out
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
