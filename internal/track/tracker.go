package track

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/servotrack/internal/frame"
)

// Tracker is the external tracking capability.
type Tracker interface {
	// Initialize seeds the targets in init on frame f.
	Initialize(ctx context.Context, f frame.Frame, init Init) (Output, error)
	// Track locates every active target in f given the previous output.
	Track(ctx context.Context, f frame.Frame, info FrameInfo) (Output, error)
}

// Resetter is implemented by trackers that hold state across a session
// reset.
type Resetter interface {
	Reset()
}

// Factory builds a fresh tracker instance.
type Factory func() (Tracker, error)

// Mode selects how multiple objects are dispatched to tracker instances.
type Mode int

const (
	ModeDefault Mode = iota
	ModeParallel
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeParallel:
		return "parallel"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ModeDefault, nil
	case "parallel":
		return ModeParallel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

type strategy interface {
	initialize(ctx context.Context, f frame.Frame, init Init) (Output, error)
	track(ctx context.Context, f frame.Frame, info FrameInfo) (Output, error)
	reset()
}

func newStrategy(mode Mode, factory Factory) (strategy, error) {
	switch mode {
	case ModeDefault:
		return &shared{factory: factory}, nil
	case ModeParallel:
		return &perObject{factory: factory, trackers: make(map[ObjectID]Tracker)}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}
}

// shared hands every object to a single tracker instance.
type shared struct {
	factory Factory
	tracker Tracker
}

func (s *shared) initialize(ctx context.Context, f frame.Frame, init Init) (Output, error) {
	if s.tracker == nil {
		t, err := s.factory()
		if err != nil {
			return Output{}, err
		}
		s.tracker = t
	}
	return s.tracker.Initialize(ctx, f, init)
}

func (s *shared) track(ctx context.Context, f frame.Frame, info FrameInfo) (Output, error) {
	if s.tracker == nil {
		if info.Init.Empty() {
			return Output{}, ErrNotInitialized
		}
		t, err := s.factory()
		if err != nil {
			return Output{}, err
		}
		s.tracker = t
	}
	return s.tracker.Track(ctx, f, info)
}

func (s *shared) reset() {
	if r, ok := s.tracker.(Resetter); ok {
		r.Reset()
	}
}

// perObject runs one tracker instance per object.
type perObject struct {
	factory  Factory
	trackers map[ObjectID]Tracker
}

type part struct {
	id  ObjectID
	out Output
}

func (p *perObject) initialize(ctx context.Context, f frame.Frame, init Init) (Output, error) {
	created, parts, err := p.seed(ctx, f, init)
	if err != nil {
		return Output{}, err
	}
	for id, t := range created {
		p.trackers[id] = t
	}
	return merge(parts), nil
}

// seed initialises one new tracker per object in init without registering
// them, so a failure leaves the strategy untouched.
func (p *perObject) seed(ctx context.Context, f frame.Frame, init Init) (map[ObjectID]Tracker, []part, error) {
	created := make(map[ObjectID]Tracker, len(init.IDs))
	parts := make([]part, 0, len(init.IDs))
	for _, id := range init.IDs {
		t, err := p.factory()
		if err != nil {
			return nil, nil, err
		}
		one := Init{}
		one.Add(id, init.Boxes[id])
		if init.Mask != nil {
			if len(init.IDs) == 1 {
				one.Mask = init.Mask
			} else {
				one.Mask = init.Mask.Only(uint8(id))
			}
		}
		out, err := t.Initialize(ctx, f, one)
		if err != nil {
			return nil, nil, fmt.Errorf("object %d: %w", id, err)
		}
		created[id] = t
		parts = append(parts, part{id: id, out: out})
	}
	return created, parts, nil
}

func (p *perObject) track(ctx context.Context, f frame.Frame, info FrameInfo) (Output, error) {
	fresh := make(map[ObjectID]bool, len(info.Init.IDs))
	for _, id := range info.Init.IDs {
		fresh[id] = true
	}

	parts := make([]part, 0, len(info.SequenceIDs))
	for _, id := range info.SequenceIDs {
		if fresh[id] {
			continue
		}
		t, ok := p.trackers[id]
		if !ok {
			return Output{}, fmt.Errorf("object %d: %w", id, ErrNotInitialized)
		}
		out, err := t.Track(ctx, f, FrameInfo{
			Previous:    info.Previous.Subset(id),
			SequenceIDs: []ObjectID{id},
		})
		if err != nil {
			return Output{}, fmt.Errorf("object %d: %w", id, err)
		}
		parts = append(parts, part{id: id, out: out})
	}

	created, seeded, err := p.seed(ctx, f, info.Init)
	if err != nil {
		return Output{}, err
	}
	for id, t := range created {
		p.trackers[id] = t
	}
	return merge(append(parts, seeded...)), nil
}

func (p *perObject) reset() {
	for _, t := range p.trackers {
		if r, ok := t.(Resetter); ok {
			r.Reset()
		}
	}
	p.trackers = make(map[ObjectID]Tracker)
}

// merge combines per-object outputs: boxes in order, masks painted with the
// object id as label, the lowest presence score, and summed time.
func merge(parts []part) Output {
	out := NewOutput()
	presence := math.Inf(1)
	for _, p := range parts {
		box, ok := p.out.Box(p.id)
		if !ok && p.out.Len() == 1 {
			box, ok = p.out.Box(p.out.IDs[0])
		}
		if ok {
			out.Set(p.id, box)
		}
		if seg := p.out.Segmentation; seg != nil {
			if out.Segmentation == nil {
				out.Segmentation = NewMask(seg.Width, seg.Height)
			}
			for i, v := range seg.Data {
				if v != 0 && i < len(out.Segmentation.Data) {
					out.Segmentation.Data[i] = uint8(p.id)
				}
			}
		}
		if s, ok := p.out.Presence(); ok {
			presence = math.Min(presence, s)
		}
		out.ProcessingTime += p.out.ProcessingTime
	}
	if !math.IsInf(presence, 1) {
		out.PresenceScore = Score(presence)
	}
	return out
}
