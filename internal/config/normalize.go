package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = ExpandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if strings.TrimSpace(c.Aria2.Binary) == "" {
		c.Aria2.Binary = defaultAria2Binary
	}
	if c.Aria2.ConnectTimeout == 0 {
		c.Aria2.ConnectTimeout = defaultConnectTimeout
	}
	if c.Aria2.ProbeTimeout == 0 {
		c.Aria2.ProbeTimeout = defaultProbeTimeout
	}
	if c.Aria2.StopGracePeriod == 0 {
		c.Aria2.StopGracePeriod = defaultStopGracePeriod
	}

	if len(c.Scan.Extensions) == 0 {
		c.Scan.Extensions = Default().Scan.Extensions
	}
	for i, ext := range c.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Scan.Extensions[i] = ext
	}
	if c.Scan.MinFileSizeBytes == 0 {
		c.Scan.MinFileSizeBytes = defaultMinFileSize
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
