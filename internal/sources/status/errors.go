package status

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrSnapshotNotFound means the report file does not exist. It is never retried.
	ErrSnapshotNotFound = errors.New("status report not found")
	// ErrSnapshotEmpty means the report stayed empty for every read attempt.
	ErrSnapshotEmpty = errors.New("status report is empty")
	// ErrMalformed is wrapped by every ParseError.
	ErrMalformed = errors.New("malformed status report")
	// ErrNoCheckTime means the report carries no as-of marker.
	ErrNoCheckTime = errors.Wrap(ErrMalformed, "no check time")
)

// ParseError points at the offending line of a report.
type ParseError struct {
	LineNo int
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %s", e.LineNo, e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }
