package config

import (
	"errors"
	"fmt"
)

// Validate checks the normalized configuration for values tcmon cannot use.
func (c *Config) Validate() error {
	var errs []error

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}

	seen := make(map[string]int, len(c.Folders))
	for i, f := range c.Folders {
		if f.Path == "" {
			errs = append(errs, fmt.Errorf("folders[%d].path: required", i))
			continue
		}
		if prev, ok := seen[f.Path]; ok {
			errs = append(errs, fmt.Errorf("folders[%d].path: duplicates folders[%d] (%s)", i, prev, f.Path))
			continue
		}
		seen[f.Path] = i
	}

	return errors.Join(errs...)
}
