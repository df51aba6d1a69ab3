package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAria2(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAria2() error {
	if c.Aria2.ConnectTimeout < 0 {
		return errors.New("aria2.connect_timeout must not be negative")
	}
	if c.Aria2.ProbeTimeout <= 0 {
		return errors.New("aria2.probe_timeout must be positive")
	}
	if c.Aria2.StopGracePeriod <= 0 {
		return errors.New("aria2.stop_grace_period must be positive")
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.MinFileSizeBytes < 0 {
		return errors.New("scan.min_file_size_bytes must not be negative")
	}
	for _, ext := range c.Scan.Extensions {
		if strings.TrimSpace(ext) == "" {
			return errors.New("scan.extensions must not contain blank entries")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
