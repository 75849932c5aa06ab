package track

import (
	"errors"
	"fmt"
)

// Domain errors for tracking sessions.
var (
	// ErrTrackingUnavailable indicates the tracker capability failed for a frame.
	ErrTrackingUnavailable = errors.New("track: tracker unavailable")

	// ErrNotInitialized indicates Track was called before any successful Initialize.
	ErrNotInitialized = errors.New("track: session not initialized")

	// ErrUnknownMode indicates an unrecognised multi-object mode.
	ErrUnknownMode = errors.New("track: unknown multi-object mode")

	// ErrInvalidTarget indicates a target box that is malformed or already active.
	ErrInvalidTarget = errors.New("track: invalid target")
)

// Error wraps a tracker failure with frame context. It matches both
// ErrTrackingUnavailable and the underlying cause under errors.Is.
type Error struct {
	Op      string
	Seq     int64
	Objects []ObjectID
	Wrapped error
}

func (e *Error) Error() string {
	return fmt.Sprintf("track: %s frame %d objects %v: %v", e.Op, e.Seq, e.Objects, e.Wrapped)
}

func (e *Error) Unwrap() []error {
	return []error{ErrTrackingUnavailable, e.Wrapped}
}
