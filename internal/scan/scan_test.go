package scan_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pedrox86lopes/MagnetStream/internal/scan"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestAudioFiltersByExtensionAndSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "album", "track01.flac"), 2000)
	writeFile(t, filepath.Join(dir, "album", "track02.MP3"), 4096)
	writeFile(t, filepath.Join(dir, "album", "cover.jpg"), 9000)
	writeFile(t, filepath.Join(dir, "stub.flac"), 10)

	result, err := scan.Audio(dir, scan.Options{})
	if err != nil {
		t.Fatalf("Audio returned error: %v", err)
	}
	if len(result.Files) != 2 {
		t.Fatalf("expected 2 qualifying files, got %d: %+v", len(result.Files), result.Files)
	}
	if result.OtherCount != 2 {
		t.Fatalf("expected 2 non-qualifying files, got %d", result.OtherCount)
	}
	if result.Verdict() != scan.VerdictQualifying {
		t.Fatalf("expected qualifying verdict, got %s", result.Verdict())
	}
	for _, file := range result.Files {
		if file.Size <= scan.DefaultMinFileSize {
			t.Fatalf("expected qualifying file above threshold, got %+v", file)
		}
	}
}

func TestAudioNonQualifyingVerdict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), 5000)
	writeFile(t, filepath.Join(dir, "tiny.flac"), 10)

	result, err := scan.Audio(dir, scan.Options{})
	if err != nil {
		t.Fatalf("Audio returned error: %v", err)
	}
	if result.Verdict() != scan.VerdictNonQualifying {
		t.Fatalf("expected non-qualifying verdict, got %s", result.Verdict())
	}
	if result.OtherCount != 2 {
		t.Fatalf("expected 2 other files, got %d", result.OtherCount)
	}
}

func TestAudioEmptyDirectory(t *testing.T) {
	result, err := scan.Audio(t.TempDir(), scan.Options{})
	if err != nil {
		t.Fatalf("Audio returned error: %v", err)
	}
	if result.Verdict() != scan.VerdictEmpty {
		t.Fatalf("expected empty verdict, got %s", result.Verdict())
	}
}

func TestAudioMissingDirectoryTreatedAsEmpty(t *testing.T) {
	result, err := scan.Audio(filepath.Join(t.TempDir(), "absent"), scan.Options{})
	if err != nil {
		t.Fatalf("Audio returned error: %v", err)
	}
	if result.Verdict() != scan.VerdictEmpty {
		t.Fatalf("expected empty verdict for missing dir, got %s", result.Verdict())
	}
}

func TestAudioIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.flac"), 2048)
	writeFile(t, filepath.Join(dir, "b.ogg"), 3000)

	first, err := scan.Audio(dir, scan.Options{})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	second, err := scan.Audio(dir, scan.Options{})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(first.Files) != len(second.Files) || first.OtherCount != second.OtherCount {
		t.Fatalf("expected identical scans, got %+v vs %+v", first, second)
	}
	for i := range first.Files {
		if first.Files[i] != second.Files[i] {
			t.Fatalf("expected stable ordering, got %+v vs %+v", first.Files[i], second.Files[i])
		}
	}
}

func TestAudioCustomOptions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clip.opus"), 5000)
	writeFile(t, filepath.Join(dir, "clip.flac"), 5000)

	result, err := scan.Audio(dir, scan.Options{Extensions: []string{"opus"}, MinFileSize: 100})
	if err != nil {
		t.Fatalf("Audio returned error: %v", err)
	}
	if len(result.Files) != 1 || filepath.Ext(result.Files[0].Path) != ".opus" {
		t.Fatalf("expected only the opus file, got %+v", result.Files)
	}
}
