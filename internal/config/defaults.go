package config

const (
	defaultDownloadDir     = "~/.local/share/magnetstream/downloads"
	defaultLogDir          = "~/.local/share/magnetstream/logs"
	defaultAria2Binary     = "aria2c"
	defaultConnectTimeout  = 60
	defaultProbeTimeout    = 5
	defaultStopGracePeriod = 5
	defaultMinFileSize     = 1024
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
		},
		Aria2: Aria2{
			Binary:          defaultAria2Binary,
			ConnectTimeout:  defaultConnectTimeout,
			ProbeTimeout:    defaultProbeTimeout,
			StopGracePeriod: defaultStopGracePeriod,
		},
		Scan: Scan{
			Extensions:       []string{".flac", ".mp3", ".wav", ".ogg", ".m4a", ".aac", ".wma"},
			MinFileSizeBytes: defaultMinFileSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
