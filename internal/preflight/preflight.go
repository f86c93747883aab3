package preflight

import (
	"path/filepath"
	"strings"

	"musicforge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}

// RunAll executes the filesystem and engine checks for cfg. The watch
// directory is only checked when configured.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckOutputDirectory("Output directory", cfg.Paths.OutputDir))
	if dir := strings.TrimSpace(cfg.Watch.Dir); dir != "" {
		results = append(results, CheckDirectoryAccess("Watch directory", filepath.Clean(dir)))
	}
	for _, dep := range CheckSystemDeps(cfg) {
		result := Result{Name: dep.Name, Passed: dep.Available, Optional: dep.Optional, Detail: dep.Path}
		if !dep.Available {
			result.Detail = dep.Detail
		}
		results = append(results, result)
	}
	return results
}
