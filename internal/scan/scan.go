package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMinFileSize guards against placeholder and zero-byte artifacts left
// behind by interrupted transfers.
const DefaultMinFileSize int64 = 1024

// DefaultExtensions lists the audio extensions recognized as qualifying
// output.
func DefaultExtensions() []string {
	return []string{".flac", ".mp3", ".wav", ".ogg", ".m4a", ".aac", ".wma"}
}

// File describes one qualifying file discovered under the destination
// directory.
type File struct {
	Path string
	Size int64
}

// Verdict summarizes a scan for failure reporting.
type Verdict string

const (
	VerdictQualifying    Verdict = "qualifying"
	VerdictNonQualifying Verdict = "non_qualifying"
	VerdictEmpty         Verdict = "empty"
)

// Result captures a completed directory scan. Files appear in traversal
// order; callers requiring a deterministic order must sort explicitly.
type Result struct {
	Files      []File
	OtherCount int
}

// Verdict reports whether the scan found qualifying files, only files of
// other types, or nothing at all.
func (r Result) Verdict() Verdict {
	switch {
	case len(r.Files) > 0:
		return VerdictQualifying
	case r.OtherCount > 0:
		return VerdictNonQualifying
	default:
		return VerdictEmpty
	}
}

// Options configures a scan.
type Options struct {
	Extensions  []string
	MinFileSize int64
}

// Audio enumerates files under dir and filters them to the recognized
// extensions above the minimum size. The filesystem is never mutated, and
// scanning an unchanged directory twice yields the same result.
func Audio(dir string, opts Options) (Result, error) {
	if strings.TrimSpace(dir) == "" {
		return Result{}, errors.New("scan directory required")
	}
	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions()
	}
	minSize := opts.MinFileSize
	if minSize <= 0 {
		minSize = DefaultMinFileSize
	}
	recognized := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		recognized[ext] = struct{}{}
	}

	var result Result
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir && errors.Is(walkErr, fs.ErrNotExist) {
				return walkErr
			}
			// Unreadable subtrees are skipped rather than failing the scan.
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := recognized[ext]; !ok {
			result.OtherCount++
			return nil
		}
		if info.Size() <= minSize {
			result.OtherCount++
			return nil
		}
		result.Files = append(result.Files, File{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	return result, nil
}
