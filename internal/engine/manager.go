package engine

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"musicforge/internal/deps"
	"musicforge/internal/logging"
	"musicforge/internal/media/ffprobe"
	"musicforge/internal/services"
)

// Manager describes the engine installation used by a batch.
type Manager interface {
	// Binary returns the engine executable placed at argv[0].
	Binary() string
	// Available reports ErrEngineNotFound when the engine cannot be resolved.
	Available() error
	// HasEncoder reports whether the engine was built with the named encoder.
	HasEncoder(name string) bool
	// ProbeDuration returns the source duration in seconds, or 0 when unknown.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// FFmpeg is the Manager for an ffmpeg/ffprobe installation. Encoder
// capabilities are probed once and cached.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger

	once     sync.Once
	encoders map[string]struct{}
}

// NewFFmpeg resolves the configured binaries. Unresolvable names are kept
// as written so Available can report them.
func NewFFmpeg(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *FFmpeg {
	m := &FFmpeg{
		ffmpeg:  strings.TrimSpace(ffmpegBinary),
		ffprobe: strings.TrimSpace(ffprobeBinary),
		logger:  logging.NewComponentLogger(logger, "engine"),
	}
	if m.ffmpeg == "" {
		m.ffmpeg = "ffmpeg"
	}
	if m.ffprobe == "" {
		m.ffprobe = "ffprobe"
	}
	if resolved, err := deps.ResolveBinary(m.ffmpeg); err == nil {
		m.ffmpeg = resolved
	}
	if resolved, err := deps.ResolveBinary(m.ffprobe); err == nil {
		m.ffprobe = resolved
	}
	return m
}

// Binary returns the ffmpeg executable.
func (m *FFmpeg) Binary() string {
	return m.ffmpeg
}

// ProbeBinary returns the ffprobe executable.
func (m *FFmpeg) ProbeBinary() string {
	return m.ffprobe
}

// Available checks that ffmpeg can be resolved.
func (m *FFmpeg) Available() error {
	if _, err := deps.ResolveBinary(m.ffmpeg); err != nil {
		return services.Wrap(services.ErrEngineNotFound, "engine", "resolve", "ffmpeg is not installed or not on PATH", err)
	}
	return nil
}

// HasEncoder reports whether `ffmpeg -encoders` lists name.
func (m *FFmpeg) HasEncoder(name string) bool {
	m.once.Do(m.loadEncoders)
	_, ok := m.encoders[strings.TrimSpace(name)]
	return ok
}

func (m *FFmpeg) loadEncoders() {
	m.encoders = map[string]struct{}{}
	out, err := exec.Command(m.ffmpeg, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		m.logger.Debug("encoder probe failed", logging.Error(err))
		return
	}
	for name := range ParseEncoders(string(out)) {
		m.encoders[name] = struct{}{}
	}
	m.logger.Debug("encoder probe complete", logging.Int("encoders", len(m.encoders)))
}

// ProbeDuration reads the container duration with ffprobe.
func (m *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if _, err := deps.ResolveBinary(m.ffprobe); err != nil {
		return 0, nil
	}
	return ffprobe.Duration(ctx, m.ffprobe, path)
}

// Version returns the first line of `<binary> -version` with the program
// name stripped, or "Unknown".
func Version(ctx context.Context, binary string) string {
	out, err := exec.CommandContext(ctx, binary, "-version").Output() //nolint:gosec
	if err != nil {
		return "Unknown"
	}
	first := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	for _, prefix := range []string{"ffmpeg version", "ffprobe version"} {
		first = strings.TrimSpace(strings.TrimPrefix(first, prefix))
	}
	if first == "" {
		return "Unknown"
	}
	return first
}

// ParseEncoders extracts encoder names from `ffmpeg -encoders` output. Lines
// look like " A....D libmp3lame   libmp3lame MP3 (MPEG audio layer 3)"; the
// legend above the "------" separator is skipped.
func ParseEncoders(output string) map[string]struct{} {
	names := map[string]struct{}{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	inList := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inList {
			if strings.HasPrefix(line, "---") {
				inList = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		names[fields[1]] = struct{}{}
	}
	return names
}

// String implements fmt.Stringer for diagnostics.
func (m *FFmpeg) String() string {
	return fmt.Sprintf("ffmpeg=%s ffprobe=%s", m.ffmpeg, m.ffprobe)
}
