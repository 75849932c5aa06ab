// Package frame defines the image frames handed from a capture source to
// the tracking pipeline.
//
// The pipeline itself only looks at frame geometry and timing; the pixel
// payload is owned by the backend that produced it (see internal/cv) and is
// passed through untouched to the tracker.
package frame

import (
	"context"
	"errors"
	"time"
)

// ErrEndOfStream is returned by a Source when no further frames exist.
var ErrEndOfStream = errors.New("frame: end of stream")

type Frame struct {
	Seq      int64
	Captured time.Time
	Width    int
	Height   int
	Pixels   any

	release func()
}

// New wraps a backend payload. release, if non-nil, is invoked once by
// Release to free backend memory.
func New(seq int64, captured time.Time, width, height int, pixels any, release func()) Frame {
	return Frame{
		Seq:      seq,
		Captured: captured,
		Width:    width,
		Height:   height,
		Pixels:   pixels,
		release:  release,
	}
}

// Center returns the pixel centre of the frame.
func (f Frame) Center() (float64, float64) {
	return float64(f.Width) / 2, float64(f.Height) / 2
}

func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0
}

func (f Frame) Release() {
	if f.release != nil {
		f.release()
	}
}

// Source produces frames. Next may block until a frame is available.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context) (Frame, error)

func (fn SourceFunc) Next(ctx context.Context) (Frame, error) {
	return fn(ctx)
}
