package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pedrox86lopes/MagnetStream/internal/config"
)

func TestCheckReportsVersionForWorkingBinary(t *testing.T) {
	binDir := t.TempDir()
	binary := filepath.Join(binDir, "aria2c")
	script := []byte("#!/bin/sh\necho 'aria2 version 1.37.0'\nexit 0\n")
	if err := os.WriteFile(binary, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	cfg := config.Default()
	cfg.Aria2.Binary = binary
	results := Check(context.Background(), &cfg, Requirements(&cfg))
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected aria2 available, got %+v", results[0])
	}
	if !strings.Contains(results[0].Detail, "1.37.0") {
		t.Fatalf("expected version detail, got %q", results[0].Detail)
	}
}

func TestCheckReportsMissingBinary(t *testing.T) {
	cfg := config.Default()
	cfg.Aria2.Binary = "clearly-not-present-binary"
	results := Check(context.Background(), &cfg, Requirements(&cfg))
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[0].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
}

func TestCheckReportsBrokenBinary(t *testing.T) {
	binDir := t.TempDir()
	binary := filepath.Join(binDir, "aria2c")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\nexit 9\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	cfg := config.Default()
	cfg.Aria2.Binary = binary
	results := Check(context.Background(), &cfg, Requirements(&cfg))
	if results[0].Available {
		t.Fatalf("expected broken binary to be unavailable, got %+v", results[0])
	}
}

func TestRequirementsDefaultBinary(t *testing.T) {
	reqs := Requirements(nil)
	if len(reqs) != 1 || reqs[0].Command != "aria2c" {
		t.Fatalf("expected default aria2c requirement, got %+v", reqs)
	}
}
