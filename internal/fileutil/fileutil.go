package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
)

// AudioExtensions lists the source extensions accepted as input.
var AudioExtensions = []string{
	".wav", ".mp3", ".flac", ".aac", ".m4a", ".ogg", ".aiff",
	".wma", ".mka", ".opus", ".mp2", ".mpa", ".ac3",
}

// IsAudioFile reports whether path has a recognised audio extension.
func IsAudioFile(path string) bool {
	return slices.Contains(AudioExtensions, strings.ToLower(filepath.Ext(path)))
}

// CollectAudioPaths expands inputs into a sorted, de-duplicated list of audio
// files. Files are taken as given regardless of extension; directories are
// walked recursively and filtered by AudioExtensions. Hidden entries and
// in-progress outputs are skipped.
func CollectAudioPaths(inputs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}

	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		abs, err := filepath.Abs(input)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", input, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", input, err)
		}
		if !info.IsDir() {
			add(abs)
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			name := d.Name()
			if path != abs && strings.HasPrefix(name, ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if IsAudioFile(path) && !IsPartial(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %q: %w", input, err)
		}
	}
	slices.Sort(paths)
	return paths, nil
}

const partialMarker = ".part"

// PartialPath returns the hidden sibling the engine writes before the output
// is committed. The extension is kept so the engine still infers the muxer.
func PartialPath(path string) string {
	dir, name := filepath.Split(path)
	ext := filepath.Ext(name)
	return filepath.Join(dir, "."+strings.TrimSuffix(name, ext)+partialMarker+ext)
}

// IsPartial reports whether path was produced by PartialPath.
func IsPartial(path string) bool {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	return strings.HasPrefix(name, ".") && strings.HasSuffix(strings.TrimSuffix(name, ext), partialMarker)
}

// Commit moves a finished partial file onto its final path, replacing any
// existing file. Cross-device moves fall back to a verified copy.
func Commit(partial, final string) error {
	err := os.Rename(partial, final)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := CopyFileVerified(partial, final); err != nil {
		return err
	}
	return os.Remove(partial)
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}

	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	return nil
}
