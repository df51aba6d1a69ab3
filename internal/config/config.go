package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/pedrox86lopes/MagnetStream/internal/classify"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	LogDir      string `toml:"log_dir"`
}

// Aria2 contains configuration for the external downloader.
type Aria2 struct {
	Binary          string `toml:"binary"`
	ConnectTimeout  int    `toml:"connect_timeout"`
	ProbeTimeout    int    `toml:"probe_timeout"`
	StopGracePeriod int    `toml:"stop_grace_period"`
}

// Scan contains configuration for qualifying-file detection.
type Scan struct {
	Extensions       []string `toml:"extensions"`
	MinFileSizeBytes int64    `toml:"min_file_size_bytes"`
}

// Classifier contains extra output-classification indicators. The built-in
// sets stay active; entries here extend them for aria2c phrasing changes.
type Classifier struct {
	ExtraFatalIndicators      []string `toml:"extra_fatal_indicators"`
	ExtraBenignIndicators     []string `toml:"extra_benign_indicators"`
	ExtraCompletionIndicators []string `toml:"extra_completion_indicators"`
	ExtraPeerIndicators       []string `toml:"extra_peer_indicators"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for MagnetStream.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Aria2      Aria2      `toml:"aria2"`
	Scan       Scan       `toml:"scan"`
	Classifier Classifier `toml:"classifier"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/magnetstream/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. It reports the
// resolved path and whether a file existed there.
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
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
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
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("magnetstream.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ClassifierRules merges the built-in indicator sets with configured extras.
func (c *Config) ClassifierRules() classify.Rules {
	rules := classify.DefaultRules()
	rules.FatalIndicators = append(rules.FatalIndicators, lowered(c.Classifier.ExtraFatalIndicators)...)
	rules.BenignIndicators = append(rules.BenignIndicators, lowered(c.Classifier.ExtraBenignIndicators)...)
	rules.CompletionIndicators = append(rules.CompletionIndicators, lowered(c.Classifier.ExtraCompletionIndicators)...)
	rules.PeerIndicators = append(rules.PeerIndicators, lowered(c.Classifier.ExtraPeerIndicators)...)
	return rules
}

func lowered(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" {
			result = append(result, value)
		}
	}
	return result
}

// EnsureDirectories creates the configured directories if absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the embedded sample configuration to target.
func CreateSample(target string) error {
	if err := os.WriteFile(target, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading tilde against the current user's home
// directory and returns an absolute path.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}
