// Package report exports a finished batch as a CSV file.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"musicforge/internal/job"
)

// Header is the CSV header row.
var Header = []string{
	"File", "Format", "Size (MB)", "Duration (s)", "Status", "Error", "Output",
	"LUFS", "True Peak", "Warnings",
}

// Row renders one job. Error carries the Failed or Skipped message; the
// loudness columns are empty unless a measurement was taken.
func Row(st job.State) []string {
	format := st.File.Format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(st.File.Path), ".")
	}
	duration := ""
	if st.File.Duration > 0 {
		duration = strconv.FormatFloat(st.File.Duration, 'f', 1, 64)
	}
	var message, lufs, peak string
	if st.Status.Kind != job.KindCompleted {
		message = st.Status.Message
	}
	if st.Measured != nil {
		lufs = strconv.FormatFloat(st.Measured.InputI, 'f', 1, 64)
		peak = strconv.FormatFloat(st.Measured.InputTP, 'f', 1, 64)
	}
	return []string{
		filepath.Base(st.File.Path),
		strings.ToUpper(format),
		strconv.FormatFloat(float64(st.File.Size)/(1024*1024), 'f', 1, 64),
		duration,
		strings.ToUpper(st.Status.Kind.String()),
		message,
		st.Output,
		lufs,
		peak,
		strings.Join(st.Warnings, "; "),
	}
}

// Write emits the header and one row per job.
func Write(w io.Writer, states []job.State) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, st := range states {
		if err := cw.Write(Row(st)); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// WriteFile writes the report to path, creating parent directories.
func WriteFile(path string, states []job.State) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Write(file, states); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}
