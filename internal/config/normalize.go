package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizeDaemon(); err != nil {
		return err
	}
	if err := c.normalizeFolders(); err != nil {
		return err
	}
	c.normalizeCheck()
	c.normalizeLogging()
	return nil
}

// applyEnv lets the environment (and a .env file loaded by main) override
// the file values.
func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv("TCMON_DMYPY_EXECUTABLE"); ok && strings.TrimSpace(value) != "" {
		c.Daemon.DmypyExecutable = value
	}
	if value, ok := os.LookupEnv("TCMON_PYTHON"); ok && strings.TrimSpace(value) != "" {
		c.Daemon.PythonPath = value
	}
	if value, ok := os.LookupEnv("TCMON_STORAGE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Daemon.StorageDir = value
	}
	if value, ok := os.LookupEnv("TCMON_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
}

func (c *Config) normalizeDaemon() error {
	c.Daemon.DmypyExecutable = strings.TrimSpace(c.Daemon.DmypyExecutable)
	if c.Daemon.DmypyExecutable == "" {
		c.Daemon.DmypyExecutable = defaultDmypyExecutable
	}
	// dmypy_executable may be a bare command or contain ${workspaceFolder};
	// it is resolved per folder, not here.
	c.Daemon.PythonPath = strings.TrimSpace(c.Daemon.PythonPath)

	var err error
	if c.Daemon.StorageDir, err = expandPath(strings.TrimSpace(c.Daemon.StorageDir)); err != nil {
		return fmt.Errorf("daemon.storage_dir: %w", err)
	}
	if c.Daemon.StopRetryDelayMs <= 0 {
		c.Daemon.StopRetryDelayMs = defaultStopRetryDelayMs
	}
	return nil
}

func (c *Config) normalizeCheck() {
	targets := c.Check.Targets[:0]
	for _, t := range c.Check.Targets {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	c.Check.Targets = targets
	if len(c.Check.Targets) == 0 {
		c.Check.Targets = []string{"."}
	}
	c.Check.ConfigFile = strings.TrimSpace(c.Check.ConfigFile)
	if c.Check.DebounceMs < 0 {
		c.Check.DebounceMs = 0
	}
	if c.Monitor.IntervalSeconds < 0 {
		c.Monitor.IntervalSeconds = 0
	}
}

func (c *Config) normalizeFolders() error {
	for i := range c.Folders {
		expanded, err := expandPath(strings.TrimSpace(c.Folders[i].Path))
		if err != nil {
			return fmt.Errorf("folders[%d].path: %w", i, err)
		}
		c.Folders[i].Path = expanded
		c.Folders[i].DmypyExecutable = strings.TrimSpace(c.Folders[i].DmypyExecutable)
		c.Folders[i].PythonPath = strings.TrimSpace(c.Folders[i].PythonPath)
		c.Folders[i].ConfigFile = strings.TrimSpace(c.Folders[i].ConfigFile)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
}
