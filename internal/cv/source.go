package cv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/san-kum/servotrack/internal/frame"
)

var (
	ErrOpen             = errors.New("cv: cannot open capture")
	ErrUnsupportedFrame = errors.New("cv: frame has no gocv payload")
)

// Source reads frames from a camera or a video file.
type Source struct {
	capture *gocv.VideoCapture
	seq     int64
}

// Open opens device, which is either a camera index or a file path or URL.
func Open(device string) (*Source, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	if id, convErr := strconv.Atoi(device); convErr == nil {
		capture, err = gocv.VideoCaptureDevice(id)
	} else {
		capture, err = gocv.VideoCaptureFile(device)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrOpen, device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w %q", ErrOpen, device)
	}
	return &Source{capture: capture}, nil
}

// Size reports the capture resolution.
func (s *Source) Size() (int, int) {
	return int(s.capture.Get(gocv.VideoCaptureFrameWidth)), int(s.capture.Get(gocv.VideoCaptureFrameHeight))
}

func (s *Source) Next(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return frame.Frame{}, frame.ErrEndOfStream
	}
	s.seq++
	return wrap(s.seq, time.Now(), &mat), nil
}

func (s *Source) Close() error {
	return s.capture.Close()
}

func wrap(seq int64, at time.Time, mat *gocv.Mat) frame.Frame {
	return frame.New(seq, at, mat.Cols(), mat.Rows(), mat, func() { mat.Close() })
}

// LoadImage reads a colour image from disk. It has the signature of
// bench.LoaderFunc.
func LoadImage(ctx context.Context, path string) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return frame.Frame{}, err
	}
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return frame.Frame{}, fmt.Errorf("cv: cannot decode %s", path)
	}
	return wrap(0, time.Now(), &mat), nil
}

func matOf(f frame.Frame) (gocv.Mat, error) {
	switch p := f.Pixels.(type) {
	case *gocv.Mat:
		if p != nil && !p.Empty() {
			return *p, nil
		}
	case gocv.Mat:
		if !p.Empty() {
			return p, nil
		}
	}
	return gocv.Mat{}, fmt.Errorf("%w: frame %d", ErrUnsupportedFrame, f.Seq)
}
