// Package types provides the core value types of the getinfo engine:
// processing status, optional directory statistics, per-extension
// accumulators and the persisted directory record.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ProcessingStatus is the scan state of a single directory.
type ProcessingStatus int

// Processing states. Ready, Skipped and Error are terminal for traversal.
const (
	StatusPending ProcessingStatus = iota
	StatusScanning
	StatusReady
	StatusSkipped
	StatusError
)

// ErrInvalidStatus is returned when a status string cannot be parsed.
var ErrInvalidStatus = errors.New("invalid processing status")

// String returns the lowercase name of the status.
func (s ProcessingStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusScanning:
		return "scanning"
	case StatusReady:
		return "ready"
	case StatusSkipped:
		return "skipped"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the traversal will not revisit a directory in this state.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusSkipped || s == StatusError
}

// ParseStatus parses a status name produced by String.
func ParseStatus(s string) (ProcessingStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "scanning":
		return StatusScanning, nil
	case "ready":
		return StatusReady, nil
	case "skipped":
		return StatusSkipped, nil
	case "error":
		return StatusError, nil
	default:
		return StatusPending, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ProcessingStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ProcessingStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
