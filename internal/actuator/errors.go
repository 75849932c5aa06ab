package actuator

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection indicates the serial channel could not be opened.
	ErrConnection = errors.New("actuator: connection failed")

	// ErrActuation indicates a single command transmit failed.
	ErrActuation = errors.New("actuator: transmit failed")

	// ErrClosed indicates a write on a closed link. It also matches ErrActuation.
	ErrClosed = fmt.Errorf("%w: link closed", ErrActuation)

	// ErrInvalidAxis indicates an axis index other than 0 or 1.
	ErrInvalidAxis = errors.New("actuator: invalid axis")

	// ErrMalformedPacket indicates bytes that are not a command packet.
	ErrMalformedPacket = errors.New("actuator: malformed packet")
)

// TransmitError wraps a failed write with the command that was being sent.
type TransmitError struct {
	Command Command
	Wrapped error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("actuator: transmit %v: %v", e.Command.Angles, e.Wrapped)
}

func (e *TransmitError) Unwrap() []error {
	return []error{ErrActuation, e.Wrapped}
}
