package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pedrox86lopes/MagnetStream/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAria2Binary overrides the downloader binary on the test config.
func WithAria2Binary(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Aria2.Binary = path
	}
}

// WithConnectTimeout overrides the connection deadline (seconds).
func WithConnectTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Aria2.ConnectTimeout = seconds
	}
}

// StubBinary writes an executable shell script and returns its path.
func StubBinary(t testing.TB, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}
