package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pedrox86lopes/MagnetStream/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Aria2.ConnectTimeout != 60 {
		t.Fatalf("expected 60s connect timeout default, got %d", cfg.Aria2.ConnectTimeout)
	}
	if cfg.Scan.MinFileSizeBytes != 1024 {
		t.Fatalf("expected 1024 byte minimum default, got %d", cfg.Scan.MinFileSizeBytes)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", path)
	}
	if cfg.Aria2.Binary != "aria2c" {
		t.Fatalf("expected default binary, got %q", cfg.Aria2.Binary)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
download_dir = "` + filepath.Join(dir, "dl") + `"

[aria2]
binary = "/opt/bin/aria2c"
connect_timeout = 90

[scan]
extensions = ["FLAC", "mp3"]

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if cfg.Aria2.ConnectTimeout != 90 {
		t.Fatalf("expected 90s timeout, got %d", cfg.Aria2.ConnectTimeout)
	}
	for _, want := range []string{".flac", ".mp3"} {
		found := false
		for _, ext := range cfg.Scan.Extensions {
			if ext == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected normalized extension %s in %v", want, cfg.Scan.Extensions)
		}
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased level, got %q", cfg.Logging.Level)
	}
	if !filepath.IsAbs(cfg.Paths.DownloadDir) {
		t.Fatalf("expected absolute download dir, got %q", cfg.Paths.DownloadDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for unsupported format")
	} else if !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestClassifierRulesExtendDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Classifier.ExtraFatalIndicators = []string{" Exception "}
	rules := cfg.ClassifierRules()
	found := false
	for _, indicator := range rules.FatalIndicators {
		if indicator == "exception" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected trimmed lowercase extra indicator in %v", rules.FatalIndicators)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(dir, "downloads")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, sub := range []string{"downloads", "logs"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory, err=%v", sub, err)
		}
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, exists, err := config.Load(target); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
