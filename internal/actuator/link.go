package actuator

import (
	"fmt"
	"io"
	"sync"
)

// Link holds the last commanded state and writes one packet per position
// update. Nothing is ever read back.
type Link struct {
	mu     sync.Mutex
	port   io.WriteCloser
	cmd    Command
	sent   int
	closed bool
}

// New wraps an already open port. cmd is the initial state.
func New(port io.WriteCloser, cmd Command) *Link {
	return &Link{port: port, cmd: cmd}
}

// SetAxisPosition updates axis and transmits the full command.
func (l *Link) SetAxisPosition(axis int, angle int) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cmd.Angles[axis] = int32(angle)
	return l.transmit()
}

// SetAxisMoveTime updates axis's move time. It takes effect on the next
// transmitted packet.
func (l *Link) SetAxisMoveTime(axis int, ms int) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	if ms < 0 {
		return fmt.Errorf("actuator: negative move time %d", ms)
	}
	l.mu.Lock()
	l.cmd.MoveTimesMs[axis] = int32(ms)
	l.mu.Unlock()
	return nil
}

// Flush transmits the current state unchanged.
func (l *Link) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transmit()
}

// Center drives both axes to angle, axis 1 first.
func (l *Link) Center(angle int) error {
	if err := l.SetAxisPosition(1, angle); err != nil {
		return err
	}
	return l.SetAxisPosition(0, angle)
}

func (l *Link) Command() Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd
}

// Sent reports how many packets were written successfully.
func (l *Link) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.port.Close()
}

func (l *Link) transmit() error {
	if l.closed {
		return ErrClosed
	}
	p := Encode(l.cmd)
	n, err := l.port.Write(p[:])
	if err != nil {
		return &TransmitError{Command: l.cmd, Wrapped: err}
	}
	if n != PacketSize {
		return &TransmitError{Command: l.cmd, Wrapped: io.ErrShortWrite}
	}
	l.sent++
	return nil
}

func checkAxis(axis int) error {
	if axis != 0 && axis != 1 {
		return fmt.Errorf("%w: %d", ErrInvalidAxis, axis)
	}
	return nil
}
