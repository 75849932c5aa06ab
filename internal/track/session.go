package track

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/san-kum/servotrack/internal/frame"
)

// Session owns object identity and the previous-output record that every
// Track call feeds back to the tracker.
type Session struct {
	mode     Mode
	strategy strategy

	nextID      ObjectID
	active      []ObjectID
	pending     Init
	previous    Output
	initialized bool
}

func NewSession(mode Mode, factory Factory) (*Session, error) {
	if factory == nil {
		return nil, errors.New("track: nil tracker factory")
	}
	st, err := newStrategy(mode, factory)
	if err != nil {
		return nil, err
	}
	return &Session{
		mode:     mode,
		strategy: st,
		nextID:   1,
		previous: NewOutput(),
	}, nil
}

func (s *Session) Mode() Mode { return s.mode }

// NextID allocates a fresh object id.
func (s *Session) NextID() ObjectID {
	id := s.nextID
	s.nextID++
	return id
}

// Initialize seeds the targets in init on f. On success they join the
// active set and their boxes are merged into the previous output.
func (s *Session) Initialize(ctx context.Context, f frame.Frame, init Init) (Output, error) {
	if init.Empty() {
		return NewOutput(), fmt.Errorf("%w: no targets", ErrInvalidTarget)
	}
	for _, id := range init.IDs {
		if err := s.checkTarget(id, init.Boxes[id]); err != nil {
			return NewOutput(), err
		}
	}

	start := time.Now()
	out, err := s.strategy.initialize(ctx, f, init.Clone())
	if err != nil {
		return NewOutput(), &Error{Op: "initialize", Seq: f.Seq, Objects: init.IDs, Wrapped: err}
	}
	fillMissing(&out, init)
	if out.ProcessingTime == 0 {
		out.ProcessingTime = time.Since(start)
	}

	for _, id := range init.IDs {
		s.reserve(id)
		s.active = append(s.active, id)
		s.previous.Set(id, out.Boxes[id])
	}
	if out.Segmentation != nil {
		s.previous.Segmentation = out.Segmentation.Clone()
	}
	if out.PresenceScore != nil {
		s.previous.PresenceScore = Score(*out.PresenceScore)
	}
	s.previous.ProcessingTime = out.ProcessingTime
	s.initialized = true
	return out, nil
}

// AddTarget queues id to be initialised and first tracked by the next
// Track call.
func (s *Session) AddTarget(id ObjectID, box BoundingBox) error {
	if err := s.checkTarget(id, box); err != nil {
		return err
	}
	if _, ok := s.pending.Boxes[id]; ok {
		return fmt.Errorf("%w: object %d already pending", ErrInvalidTarget, id)
	}
	s.reserve(id)
	s.pending.Add(id, box)
	return nil
}

// Track runs the tracker on f. With no active or pending targets it returns
// an empty output without calling the tracker. Targets queued by AddTarget
// are initialised and tracked in this same call. On failure the previous
// output and the queued targets are kept for the next frame.
func (s *Session) Track(ctx context.Context, f frame.Frame) (Output, error) {
	if len(s.active) == 0 && s.pending.Empty() {
		return NewOutput(), nil
	}

	ids := append(slices.Clone(s.active), s.pending.IDs...)
	info := FrameInfo{
		Previous:    s.previous.Clone(),
		Init:        s.pending.Clone(),
		SequenceIDs: ids,
	}

	start := time.Now()
	out, err := s.strategy.track(ctx, f, info)
	if err != nil {
		return NewOutput(), &Error{Op: "track", Seq: f.Seq, Objects: ids, Wrapped: err}
	}
	fillMissing(&out, s.pending)
	if out.ProcessingTime == 0 {
		out.ProcessingTime = time.Since(start)
	}

	s.active = ids
	s.previous = out.Clone()
	s.pending = Init{}
	s.initialized = true
	return out, nil
}

// Reset forgets every target and the previous output. Calling it more than
// once is the same as calling it once.
func (s *Session) Reset() {
	s.strategy.reset()
	s.nextID = 1
	s.active = nil
	s.pending = Init{}
	s.previous = NewOutput()
	s.initialized = false
}

// Active returns the active object ids in insertion order.
func (s *Session) Active() []ObjectID {
	return slices.Clone(s.active)
}

// Pending returns the ids queued by AddTarget that have not been tracked yet.
func (s *Session) Pending() []ObjectID {
	return slices.Clone(s.pending.IDs)
}

// Previous returns a copy of the last successful output.
func (s *Session) Previous() Output {
	return s.previous.Clone()
}

func (s *Session) Initialized() bool { return s.initialized }

func (s *Session) checkTarget(id ObjectID, box BoundingBox) error {
	if id <= 0 {
		return fmt.Errorf("%w: object id %d", ErrInvalidTarget, id)
	}
	if !box.Valid() {
		return fmt.Errorf("%w: object %d box %+v", ErrInvalidTarget, id, box)
	}
	if slices.Contains(s.active, id) {
		return fmt.Errorf("%w: object %d already active", ErrInvalidTarget, id)
	}
	return nil
}

// reserve keeps caller-chosen ids from being handed out again by NextID.
func (s *Session) reserve(id ObjectID) {
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

func fillMissing(out *Output, init Init) {
	for _, id := range init.IDs {
		if _, ok := out.Boxes[id]; !ok {
			out.Set(id, init.Boxes[id])
		}
	}
}
