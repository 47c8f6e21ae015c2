// Package config loads tcmon's TOML configuration and derives the effective
// per-folder settings.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

//go:embed sample_config.toml
var sampleConfig string

// Daemon contains settings for locating and driving dmypy.
type Daemon struct {
	DmypyExecutable           string `toml:"dmypy_executable"`
	RunUsingActiveInterpreter bool   `toml:"run_using_active_interpreter"`
	PythonPath                string `toml:"python_path"`
	StorageDir                string `toml:"storage_dir"`
	StopRetryDelayMs          int    `toml:"stop_retry_delay_ms"`
}

// Check contains the arguments forwarded to `dmypy run`.
type Check struct {
	Targets    []string `toml:"targets"`
	ConfigFile string   `toml:"config_file"`
	DebounceMs int      `toml:"debounce_ms"`
}

// Monitor contains settings for the stale status-file monitor.
type Monitor struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Folder is one supervised project root with optional overrides.
// Unset overrides inherit from [daemon] and [check].
type Folder struct {
	Path                      string   `toml:"path"`
	DmypyExecutable           string   `toml:"dmypy_executable"`
	RunUsingActiveInterpreter *bool    `toml:"run_using_active_interpreter"`
	PythonPath                string   `toml:"python_path"`
	Targets                   []string `toml:"targets"`
	ConfigFile                string   `toml:"config_file"`
}

// Config encapsulates all configuration values for tcmon.
//
// Configuration sections:
//   - Daemon: dmypy executable, interpreter mode, storage directory
//   - Check: targets and config file passed to every run
//   - Monitor: stale status-file sweep interval
//   - Logging: log level, format and optional file
//   - Folders: supervised project roots
type Config struct {
	Daemon  Daemon   `toml:"daemon"`
	Check   Check    `toml:"check"`
	Monitor Monitor  `toml:"monitor"`
	Logging Logging  `toml:"logging"`
	Folders []Folder `toml:"folders"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tcmon/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tcmon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// AddFolders appends folders given on the command line, skipping duplicates.
func (c *Config) AddFolders(paths ...string) error {
	for _, p := range paths {
		expanded, err := expandPath(p)
		if err != nil {
			return fmt.Errorf("folder %q: %w", p, err)
		}
		if c.HasFolder(domain.Folder(expanded)) {
			continue
		}
		c.Folders = append(c.Folders, Folder{Path: expanded})
	}
	return nil
}

// HasFolder reports whether a folder is configured.
func (c *Config) HasFolder(folder domain.Folder) bool {
	return c.folder(folder) != nil
}

// FolderPaths returns the configured folders in declaration order.
func (c *Config) FolderPaths() []domain.Folder {
	out := make([]domain.Folder, 0, len(c.Folders))
	for _, f := range c.Folders {
		out = append(out, domain.Folder(f.Path))
	}
	return out
}

// FolderSettings merges folder overrides over the global sections.
// Folders that are not configured get the global settings.
func (c *Config) FolderSettings(folder domain.Folder) domain.Settings {
	s := domain.Settings{
		DmypyExecutable:           c.Daemon.DmypyExecutable,
		RunUsingActiveInterpreter: c.Daemon.RunUsingActiveInterpreter,
		PythonPath:                c.Daemon.PythonPath,
		Targets:                   slices.Clone(c.Check.Targets),
		ConfigFile:                c.Check.ConfigFile,
	}

	f := c.folder(folder)
	if f == nil {
		return s
	}
	if f.DmypyExecutable != "" {
		s.DmypyExecutable = f.DmypyExecutable
	}
	if f.RunUsingActiveInterpreter != nil {
		s.RunUsingActiveInterpreter = *f.RunUsingActiveInterpreter
	}
	if f.PythonPath != "" {
		s.PythonPath = f.PythonPath
	}
	if len(f.Targets) > 0 {
		s.Targets = slices.Clone(f.Targets)
	}
	if f.ConfigFile != "" {
		s.ConfigFile = f.ConfigFile
	}
	return s
}

func (c *Config) folder(folder domain.Folder) *Folder {
	for i := range c.Folders {
		if filepath.Clean(c.Folders[i].Path) == folder.Path() {
			return &c.Folders[i]
		}
	}
	return nil
}

// StopRetryDelay returns the wait between the two stop attempts.
func (c *Config) StopRetryDelay() time.Duration {
	return time.Duration(c.Daemon.StopRetryDelayMs) * time.Millisecond
}

// Debounce returns the window used to coalesce file events.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Check.DebounceMs) * time.Millisecond
}

// MonitorInterval returns how often stale status files are swept.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

// IsConfigFile reports whether path may be a mypy configuration file for
// the given folder settings.
func IsConfigFile(folder domain.Folder, settings domain.Settings, path string) bool {
	switch filepath.Base(path) {
	case "mypy.ini", ".mypy.ini", "setup.cfg", "pyproject.toml", "config":
		return true
	}
	if settings.ConfigFile == "" {
		return false
	}
	configFile := settings.ConfigFile
	if !filepath.IsAbs(configFile) {
		configFile = filepath.Join(folder.Path(), configFile)
	}
	return filepath.Clean(configFile) == filepath.Clean(path)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
