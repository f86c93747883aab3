package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"musicforge/internal/services"
)

// FileInfo is one source file as seen by the command builder.
type FileInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	// Duration is in seconds; 0 when unknown.
	Duration float64 `json:"duration"`
	// Format is the lowercased extension without the dot.
	Format string `json:"format"`
}

// DurationProber reads a source duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Describe stats path and, when prober is non-nil, probes its duration. A
// probe failure leaves the duration unknown rather than failing.
func Describe(ctx context.Context, path string, prober DurationProber) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, services.Wrap(services.ErrNotFound, "media", "stat", path, err)
	}
	if info.IsDir() {
		return FileInfo{}, services.Wrap(services.ErrValidation, "media", "stat", fmt.Sprintf("%s is a directory", path), nil)
	}
	file := FileInfo{
		Path:   path,
		Size:   info.Size(),
		Format: FormatOf(path),
	}
	if prober != nil {
		if duration, err := prober.ProbeDuration(ctx, path); err == nil && duration > 0 {
			file.Duration = duration
		}
	}
	return file, nil
}

// FormatOf returns the lowercased extension of path without the leading dot.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Stem returns the file name without directory or extension.
func (f FileInfo) Stem() string {
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SizeMB returns the size in mebibytes.
func (f FileInfo) SizeMB() float64 {
	return float64(f.Size) / (1024 * 1024)
}
