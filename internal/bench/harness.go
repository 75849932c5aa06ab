package bench

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/san-kum/servotrack/internal/frame"
	"github.com/san-kum/servotrack/internal/track"
)

// ErrProtocol indicates malformed region or frame data from a harness.
var ErrProtocol = errors.New("bench: protocol error")

// Harness is the benchmark side of the handshake. Frame returns "" once
// the sequence is over.
type Harness interface {
	Region() (Region, error)
	Frame() (string, error)
	Report(r Result) error
}

// Loader reads the image at path into a frame.
type Loader interface {
	Load(ctx context.Context, path string) (frame.Frame, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(ctx context.Context, path string) (frame.Frame, error)

func (fn LoaderFunc) Load(ctx context.Context, path string) (frame.Frame, error) {
	return fn(ctx, path)
}

type RegionKind int

const (
	RegionRect RegionKind = iota
	RegionPolygon
	RegionMask
)

func (k RegionKind) String() string {
	switch k {
	case RegionRect:
		return "rectangle"
	case RegionPolygon:
		return "polygon"
	case RegionMask:
		return "mask"
	default:
		return fmt.Sprintf("region(%d)", int(k))
	}
}

type Point struct {
	X, Y float64
}

// Region is an initial annotation. Only the field matching Kind is set.
// A mask may cover only part of the frame, placed at MaskOffset.
type Region struct {
	Kind       RegionKind
	Rect       track.BoundingBox
	Polygon    []Point
	Mask       *track.Mask
	MaskOffset image.Point
}

// FullMask returns the region mask placed on a width x height canvas.
func (r Region) FullMask(width, height int) *track.Mask {
	full := track.NewMask(width, height)
	if r.Mask == nil {
		return full
	}
	for y := 0; y < r.Mask.Height; y++ {
		for x := 0; x < r.Mask.Width; x++ {
			if v := r.Mask.At(x, y); v != 0 {
				full.Set(x+r.MaskOffset.X, y+r.MaskOffset.Y, 1)
			}
		}
	}
	return full
}

// Result is one reported frame outcome: a rectangle, or a mask when the
// tracker segments.
type Result struct {
	Rect          track.BoundingBox
	Mask          *track.Mask
	Confidence    float64
	HasConfidence bool
}

// String renders r in the text form used by VOT result files.
func (r Result) String() string {
	if r.Mask != nil {
		return EncodeMask(r.Mask)
	}
	return strings.Join([]string{
		strconv.FormatFloat(r.Rect.X, 'f', -1, 64),
		strconv.FormatFloat(r.Rect.Y, 'f', -1, 64),
		strconv.FormatFloat(r.Rect.Width, 'f', -1, 64),
		strconv.FormatFloat(r.Rect.Height, 'f', -1, 64),
	}, ",")
}

// SequenceError reports why one sequence was abandoned.
type SequenceError struct {
	Op      string
	Frame   int
	Wrapped error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("bench: %s at frame %d: %v", e.Op, e.Frame, e.Wrapped)
}

func (e *SequenceError) Unwrap() error {
	return e.Wrapped
}

func protocolErr(op string, n int, err error) error {
	return &SequenceError{Op: op, Frame: n, Wrapped: fmt.Errorf("%w: %w", ErrProtocol, err)}
}
