package job

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"musicforge/internal/services"
	"musicforge/internal/settings"
)

// Reservations tracks output paths already handed to jobs in this process,
// so two concurrent jobs never resolve to the same file before either has
// written it. A claim lasts until the job releases it: on failure or
// cancellation, or once the finished file occupies the path.
type Reservations struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewReservations returns an empty reservation set.
func NewReservations() *Reservations {
	return &Reservations{claimed: map[string]struct{}{}}
}

// Guard runs the pre-flight checks for writing source to output and returns
// the path the job must write:
//
//  1. output taken, overwrite off, auto-rename off: ErrDestinationExists
//  2. output taken, overwrite off, auto-rename on: first free <stem>_NNN<ext>
//  3. output is the same file as source: ErrSelfOverwrite, regardless of
//     overwrite; when identity cannot be determined the check passes
//
// A path is taken when it exists on disk or another job reserved it.
func Guard(source, output string, s settings.Settings, res *Reservations) (string, error) {
	if res == nil {
		res = NewReservations()
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	output = filepath.Clean(output)
	if !s.Overwrite && res.taken(output) {
		if !s.AutoRename {
			return "", services.Wrap(services.ErrDestinationExists, "job", "guard", output, nil)
		}
		output = res.nextFree(output)
	}
	if SameFile(source, output) {
		return "", services.Wrap(services.ErrSelfOverwrite, "job", "guard", fmt.Sprintf("%s is the source file", output), nil)
	}
	res.claimed[output] = struct{}{}
	return output, nil
}

// Release drops a claim. Existing files still count as taken.
func (r *Reservations) Release(path string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, filepath.Clean(path))
}

func (r *Reservations) taken(path string) bool {
	if _, ok := r.claimed[path]; ok {
		return true
	}
	_, err := os.Lstat(path)
	return err == nil
}

func (r *Reservations) nextFree(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%03d%s", base, counter, ext)
		if !r.taken(candidate) {
			return candidate
		}
	}
}

// SameFile reports whether a and b name the same underlying file. It is false
// when either path cannot be stat'ed.
func SameFile(a, b string) bool {
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}
