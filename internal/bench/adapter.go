package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/san-kum/servotrack/internal/frame"
	"github.com/san-kum/servotrack/internal/track"
)

// PolygonAdapter drives a single-object session through a harness that
// annotates with polygons and expects rectangles back.
type PolygonAdapter struct {
	Session    *track.Session
	Loader     Loader
	Conversion Conversion
	Log        *slog.Logger
}

// Run plays one sequence. It returns nil when the harness signals the end
// of the sequence; any error is fatal to this sequence only.
func (a *PolygonAdapter) Run(ctx context.Context, h Harness) error {
	region, err := h.Region()
	if err != nil {
		return protocolErr("region", 0, err)
	}

	var box track.BoundingBox
	switch region.Kind {
	case RegionPolygon:
		box, err = PolygonToBox(region.Polygon, a.Conversion)
		if err != nil {
			return &SequenceError{Op: "region", Wrapped: err}
		}
	case RegionRect:
		box = region.Rect
	default:
		return protocolErr("region", 0, fmt.Errorf("unsupported region %v", region.Kind))
	}

	r := runner{sess: a.Session, loader: a.Loader, harness: h, log: logger(a.Log)}
	return r.run(ctx, func(f frame.Frame) (track.Init, error) {
		init := track.Init{}
		init.Add(r.sess.NextID(), box)
		return init, nil
	}, func(out track.Output, id track.ObjectID, last track.BoundingBox) Result {
		return Result{Rect: last}
	})
}

// RegionAdapter drives a session through a harness that annotates with a
// rectangle or a mask and takes a confidence with every report.
type RegionAdapter struct {
	Session *track.Session
	Loader  Loader
	// PredictsMask reports segmentation masks instead of rectangles when
	// the tracker produces them.
	PredictsMask bool
	Log          *slog.Logger
}

func (a *RegionAdapter) Run(ctx context.Context, h Harness) error {
	region, err := h.Region()
	if err != nil {
		return protocolErr("region", 0, err)
	}
	if region.Kind != RegionRect && region.Kind != RegionMask {
		return protocolErr("region", 0, fmt.Errorf("unsupported region %v", region.Kind))
	}

	r := runner{sess: a.Session, loader: a.Loader, harness: h, log: logger(a.Log)}
	return r.run(ctx, func(f frame.Frame) (track.Init, error) {
		init := track.Init{}
		id := r.sess.NextID()
		if region.Kind == RegionRect {
			init.Add(id, region.Rect)
			return init, nil
		}
		full := region.FullMask(f.Width, f.Height)
		box := full.BoundingBox()
		if box.Area() == 0 {
			return init, fmt.Errorf("%w: empty initial mask", ErrProtocol)
		}
		init.Add(id, box)
		init.Mask = full
		return init, nil
	}, func(out track.Output, id track.ObjectID, last track.BoundingBox) Result {
		res := Result{Rect: last, Confidence: 1, HasConfidence: true}
		if p, ok := out.Presence(); ok {
			res.Confidence = p
		}
		if a.PredictsMask && out.HasSegmentation() {
			res.Mask = objectMask(out.Segmentation, id)
		}
		return res
	})
}

type runner struct {
	sess    *track.Session
	loader  Loader
	harness Harness
	log     *slog.Logger
}

func (r *runner) run(
	ctx context.Context,
	seed func(frame.Frame) (track.Init, error),
	report func(track.Output, track.ObjectID, track.BoundingBox) Result,
) error {
	r.sess.Reset()

	f, ok, err := r.next(ctx, 0)
	if err != nil || !ok {
		return err
	}
	init, err := seed(f)
	if err != nil {
		f.Release()
		return &SequenceError{Op: "region", Wrapped: err}
	}
	_, err = r.sess.Initialize(ctx, f, init)
	f.Release()
	if err != nil {
		return &SequenceError{Op: "initialize", Wrapped: err}
	}
	id := init.IDs[0]
	last := init.Boxes[id]
	r.log.DebugContext(ctx, "sequence initialised", "object", id, "box", last)

	for n := 1; ; n++ {
		f, ok, err := r.next(ctx, n)
		if err != nil {
			return err
		}
		if !ok {
			r.log.DebugContext(ctx, "sequence ended", "frames", n)
			return nil
		}
		out, err := r.sess.Track(ctx, f)
		f.Release()
		if err != nil {
			return &SequenceError{Op: "track", Frame: n, Wrapped: err}
		}
		if b, found := out.Box(id); found {
			last = b
		}
		if err := r.harness.Report(report(out, id, last)); err != nil {
			return &SequenceError{Op: "report", Frame: n, Wrapped: err}
		}
	}
}

// next asks the harness for frame n. ok is false at end of sequence.
func (r *runner) next(ctx context.Context, n int) (frame.Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, false, err
	}
	path, err := r.harness.Frame()
	if err != nil {
		return frame.Frame{}, false, protocolErr("frame", n, err)
	}
	if path == "" {
		return frame.Frame{}, false, nil
	}
	f, err := r.loader.Load(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return frame.Frame{}, false, err
		}
		return frame.Frame{}, false, protocolErr("load "+path, n, err)
	}
	return f, true, nil
}

// objectMask extracts id from a merged label mask, or binarises a mask
// that does not carry object labels.
func objectMask(m *track.Mask, id track.ObjectID) *track.Mask {
	if slices.Contains(m.Data, uint8(id)) {
		return m.Only(uint8(id))
	}
	out := track.NewMask(m.Width, m.Height)
	for i, v := range m.Data {
		if v != 0 {
			out.Data[i] = 1
		}
	}
	return out
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "bench")
}
