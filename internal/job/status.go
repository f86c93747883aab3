package job

import (
	"errors"
	"fmt"
	"strings"

	"musicforge/internal/services"
)

// Kind is the lifecycle state of one job.
type Kind int

const (
	KindQueued Kind = iota
	KindProcessing
	KindCompleted
	KindSkipped
	KindFailed
)

// Reasons attached to guard and cancellation outcomes.
const (
	ReasonCancelled         = "Cancelled"
	ReasonDestinationExists = "destination exists"
	ReasonSelfOverwrite     = "refusing self-overwrite"
)

var kindNames = map[Kind]string{
	KindQueued:     "queued",
	KindProcessing: "processing",
	KindCompleted:  "completed",
	KindSkipped:    "skipped",
	KindFailed:     "failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Terminal reports whether no further transitions are possible.
func (k Kind) Terminal() bool {
	return k == KindCompleted || k == KindSkipped || k == KindFailed
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown job status %q", string(text))
	}
	*k = parsed
	return nil
}

// ParseKind converts a stored name back into a Kind.
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for kind, candidate := range kindNames {
		if candidate == name {
			return kind, true
		}
	}
	return 0, false
}

// Status is the tagged lifecycle value: a kind plus the human-readable
// message that explains it.
type Status struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
}

func (s Status) String() string {
	if s.Message == "" {
		return s.Kind.String()
	}
	return s.Kind.String() + ": " + s.Message
}

func Queued() Status     { return Status{Kind: KindQueued} }
func Processing() Status { return Status{Kind: KindProcessing} }

// Completed returns a success status; message is optional.
func Completed(message string) Status { return Status{Kind: KindCompleted, Message: message} }

// Skipped returns a skip status with its reason.
func Skipped(reason string) Status { return Status{Kind: KindSkipped, Message: reason} }

// Failed returns a failure status with its message.
func Failed(message string) Status { return Status{Kind: KindFailed, Message: message} }

// Cancelled is the status of a job stopped by the user.
func Cancelled() Status { return Skipped(ReasonCancelled) }

// Classify maps a pipeline error to its terminal status. detail, when set,
// replaces the error text in Failed messages; engine failures pass the last
// stderr line there.
func Classify(err error, detail string) Status {
	switch {
	case err == nil:
		return Completed(detail)
	case services.IsCancellation(err):
		return Cancelled()
	case errors.Is(err, services.ErrDestinationExists):
		return Skipped(ReasonDestinationExists)
	case errors.Is(err, services.ErrSelfOverwrite):
		return Failed(ReasonSelfOverwrite)
	}
	if detail = strings.TrimSpace(detail); detail != "" {
		return Failed(detail)
	}
	return Failed(err.Error())
}
