package cv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/san-kum/servotrack/internal/frame"
	"github.com/san-kum/servotrack/internal/track"
)

var ErrTargetLost = errors.New("cv: target lost")

// MIL tracks each object with its own OpenCV MIL tracker. It implements
// track.Tracker and track.Resetter.
type MIL struct {
	mu       sync.Mutex
	trackers map[track.ObjectID]gocv.Tracker
	newFn    func() gocv.Tracker
}

func NewMIL() *MIL {
	return &MIL{
		trackers: make(map[track.ObjectID]gocv.Tracker),
		newFn:    gocv.NewTrackerMIL,
	}
}

// Factory returns a track.Factory producing fresh MIL trackers.
func Factory() track.Factory {
	return func() (track.Tracker, error) { return NewMIL(), nil }
}

func (m *MIL) Initialize(ctx context.Context, f frame.Frame, init track.Init) (track.Output, error) {
	mat, err := matOf(f)
	if err != nil {
		return track.Output{}, err
	}
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	out := track.NewOutput()
	if err := m.seed(mat, init, &out); err != nil {
		return track.Output{}, err
	}
	out.ProcessingTime = time.Since(start)
	return out, nil
}

func (m *MIL) seed(mat gocv.Mat, init track.Init, out *track.Output) error {
	for _, id := range init.IDs {
		box := init.Boxes[id]
		t := m.newFn()
		if !t.Init(mat, box.Rect()) {
			t.Close()
			return fmt.Errorf("cv: init object %d at %v failed", id, box)
		}
		if old, ok := m.trackers[id]; ok {
			old.Close()
		}
		m.trackers[id] = t
		out.Set(id, box)
	}
	return nil
}

// Track advances every known object on f and seeds the new ones. An object
// whose tracker loses it is left out of the output while the others still
// advance. The frame fails with ErrTargetLost only when nothing is left to
// report.
func (m *MIL) Track(ctx context.Context, f frame.Frame, info track.FrameInfo) (track.Output, error) {
	mat, err := matOf(f)
	if err != nil {
		return track.Output{}, err
	}
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var known []track.ObjectID
	for _, id := range info.SequenceIDs {
		if _, fresh := info.Init.Boxes[id]; fresh {
			continue
		}
		if _, ok := m.trackers[id]; !ok {
			return track.Output{}, fmt.Errorf("%w: object %d", track.ErrNotInitialized, id)
		}
		known = append(known, id)
	}

	out := track.NewOutput()
	var lost []track.ObjectID
	for _, id := range known {
		rect, ok := m.trackers[id].Update(mat)
		if !ok {
			lost = append(lost, id)
			continue
		}
		out.Set(id, track.FromRect(rect))
	}
	if len(lost) > 0 && len(lost) == len(known) && info.Init.Empty() {
		return track.Output{}, fmt.Errorf("%w: objects %v", ErrTargetLost, lost)
	}
	if err := m.seed(mat, info.Init, &out); err != nil {
		return track.Output{}, err
	}
	out.ProcessingTime = time.Since(start)
	return out, nil
}

func (m *MIL) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.trackers {
		t.Close()
		delete(m.trackers, id)
	}
}

func (m *MIL) Close() error {
	m.Reset()
	return nil
}
