package config

const (
	defaultDmypyExecutable  = "dmypy"
	defaultStopRetryDelayMs = 1000
	defaultDebounceMs       = 300
	defaultMonitorInterval  = 60
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
)

// Default returns a Config populated with built-in defaults.
func Default() Config {
	return Config{
		Daemon: Daemon{
			DmypyExecutable:  defaultDmypyExecutable,
			StopRetryDelayMs: defaultStopRetryDelayMs,
		},
		Check: Check{
			Targets:    []string{"."},
			DebounceMs: defaultDebounceMs,
		},
		Monitor: Monitor{
			IntervalSeconds: defaultMonitorInterval,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
