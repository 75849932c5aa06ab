package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/servotrack/internal/actuator"
	"github.com/san-kum/servotrack/internal/control"
	"github.com/san-kum/servotrack/internal/frame"
	"github.com/san-kum/servotrack/internal/timeutil"
	"github.com/san-kum/servotrack/internal/track"
)

// holdTracker reports every object where it was last seen.
type holdTracker struct {
	calls  int
	failOn map[int]bool
	events *[]string
}

func (h *holdTracker) Initialize(_ context.Context, _ frame.Frame, init track.Init) (track.Output, error) {
	out := track.NewOutput()
	for _, id := range init.IDs {
		out.Set(id, init.Boxes[id])
	}
	return out, nil
}

func (h *holdTracker) Track(_ context.Context, f frame.Frame, info track.FrameInfo) (track.Output, error) {
	h.calls++
	if h.events != nil {
		*h.events = append(*h.events, fmt.Sprintf("track %d", f.Seq))
	}
	if h.failOn[h.calls] {
		return track.Output{}, errors.New("tracker lost")
	}
	out := track.NewOutput()
	for _, id := range info.SequenceIDs {
		b, ok := info.Previous.Box(id)
		if !ok {
			b = info.Init.Boxes[id]
		}
		out.Set(id, b)
	}
	return out, nil
}

type axisCall struct{ axis, angle int }

type fakeActuator struct {
	calls   []axisCall
	centers []int
	err     error
	events  *[]string
}

func (a *fakeActuator) SetAxisPosition(axis, angle int) error {
	if a.err != nil {
		return a.err
	}
	a.calls = append(a.calls, axisCall{axis, angle})
	return nil
}

func (a *fakeActuator) Center(angle int) error {
	if a.events != nil {
		*a.events = append(*a.events, "center")
	}
	a.centers = append(a.centers, angle)
	return nil
}

// script emits n frames, advancing the clock by step between them.
type script struct {
	clock   *timeutil.MockClock
	step    time.Duration
	n       int
	seq     int64
	onFrame func(seq int64)
	events  *[]string
}

func (s *script) Next(ctx context.Context) (frame.Frame, error) {
	if int(s.seq) >= s.n {
		return frame.Frame{}, frame.ErrEndOfStream
	}
	if s.seq > 0 {
		s.clock.Advance(s.step)
	}
	seq := s.seq
	s.seq++
	if s.events != nil {
		*s.events = append(*s.events, fmt.Sprintf("frame %d", seq))
	}
	if s.onFrame != nil {
		s.onFrame(seq)
	}
	return frame.New(seq, time.Time{}, 1280, 1024, nil, nil), nil
}

type harness struct {
	clock   *timeutil.MockClock
	src     *script
	tracker *holdTracker
	sess    *track.Session
	ctrl    *control.DualAxis
	act     *fakeActuator
	sig     *Signals
	samples []Sample
}

func newHarness(t *testing.T, frames int, step time.Duration) *harness {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	h := &harness{
		clock:   clock,
		src:     &script{clock: clock, step: step, n: frames},
		tracker: &holdTracker{},
		act:     &fakeActuator{},
		sig:     NewSignals(),
		ctrl:    control.NewDualAxis(control.Gains{Kp: 0.1}, 17.25/1280, 9.9/1024),
	}
	sess, err := track.NewSession(track.ModeDefault, func() (track.Tracker, error) { return h.tracker, nil })
	require.NoError(t, err)
	h.sess = sess
	return h
}

func (h *harness) run(t *testing.T, cfg Config) (*Result, error) {
	t.Helper()
	l := New(h.src, h.sess, h.ctrl, h.act, h.sig, cfg,
		WithClock(h.clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithObserver(ObserverFunc(func(s Sample) { h.samples = append(h.samples, s) })),
	)
	return l.Run(context.Background())
}

func TestLoopReferenceScenario(t *testing.T) {
	h := newHarness(t, 1, 0)
	h.sig.Select(track.Box(100, 100, 50, 50))

	cfg := DefaultConfig()
	cfg.FixedDt = 100 * time.Millisecond
	res, err := h.run(t, cfg)
	require.NoError(t, err)

	require.Len(t, h.samples, 1)
	s := h.samples[0]
	assert.Equal(t, track.ObjectID(1), s.Object)
	assert.Equal(t, -515.0, s.ErrX)
	assert.Equal(t, -387.0, s.ErrY)
	assert.InDelta(t, -6.94, s.AngleX, 0.005)
	assert.Equal(t, 83, s.Pan)
	assert.True(t, s.Transmitted)

	require.Len(t, h.act.calls, 2)
	assert.Equal(t, axisCall{axis: 1, angle: 83}, h.act.calls[0], "pan goes to axis 1")
	assert.Equal(t, 0, h.act.calls[1].axis, "tilt goes to axis 0")
	assert.Equal(t, 1, res.Transmissions)
}

func TestLoopRateLimitsTransmissions(t *testing.T) {
	h := newHarness(t, 10, 20*time.Millisecond)
	h.sig.Select(track.Box(100, 100, 50, 50))

	cfg := DefaultConfig()
	cfg.MinTransmitInterval = 200 * time.Millisecond
	res, err := h.run(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Samples, "controller runs every frame")
	assert.LessOrEqual(t, len(h.act.calls), 2)
	assert.Equal(t, 1, res.Transmissions)
	for i, s := range h.samples[1:] {
		assert.False(t, s.Transmitted, "sample %d", i+1)
		assert.InDelta(t, 0.02, s.Dt, 1e-9)
	}
}

func TestLoopTransmitsAgainAfterInterval(t *testing.T) {
	h := newHarness(t, 21, 20*time.Millisecond)
	h.sig.Select(track.Box(100, 100, 50, 50))

	cfg := DefaultConfig()
	cfg.MinTransmitInterval = 200 * time.Millisecond
	res, err := h.run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Transmissions)
}

func TestLoopWaitsWithoutTarget(t *testing.T) {
	h := newHarness(t, 5, 20*time.Millisecond)
	l := New(h.src, h.sess, h.ctrl, h.act, h.sig, DefaultConfig(), WithClock(h.clock))

	res, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Frames)
	assert.Zero(t, h.tracker.calls)
	assert.Empty(t, h.act.calls)
	assert.Equal(t, StateWaitingForTarget, l.State())
}

func TestLoopSelectionMidStream(t *testing.T) {
	h := newHarness(t, 4, 20*time.Millisecond)
	h.src.onFrame = func(seq int64) {
		if seq == 2 {
			h.sig.Select(track.Box(600, 480, 80, 64))
		}
	}

	res, err := h.run(t, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Samples)
	assert.Equal(t, int64(2), h.samples[0].Seq)
	assert.Equal(t, []track.ObjectID{1}, h.sess.Active())
}

func TestLoopTrackerFailureContinues(t *testing.T) {
	h := newHarness(t, 6, 20*time.Millisecond)
	h.tracker.failOn = map[int]bool{2: true, 3: true}
	h.sig.Select(track.Box(100, 100, 50, 50))

	res, err := h.run(t, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Frames)
	assert.Equal(t, 2, res.TrackErrors)
	assert.Equal(t, 4, res.Samples)

	// stale previous output still feeds the next successful frame
	b, ok := h.sess.Previous().Box(1)
	require.True(t, ok)
	assert.Equal(t, track.Box(100, 100, 50, 50), b)
}

func TestLoopActuationErrorContinues(t *testing.T) {
	h := newHarness(t, 3, 20*time.Millisecond)
	h.act.err = fmt.Errorf("%w: write timeout", actuator.ErrActuation)
	h.sig.Select(track.Box(100, 100, 50, 50))

	res, err := h.run(t, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, res.ActuationErrors)
	assert.Equal(t, 3, res.Samples)
	assert.Zero(t, res.Transmissions)
}

func TestLoopClosedLinkIsFatal(t *testing.T) {
	h := newHarness(t, 5, 20*time.Millisecond)
	h.act.err = actuator.ErrClosed
	h.sig.Select(track.Box(100, 100, 50, 50))

	res, err := h.run(t, DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, actuator.ErrClosed)
	assert.Equal(t, 1, res.Frames)
}

func TestLoopResetCompletesBeforeNextFrame(t *testing.T) {
	var events []string
	h := newHarness(t, 5, 20*time.Millisecond)
	h.src.events = &events
	h.tracker.events = &events
	h.act.events = &events
	h.src.onFrame = func(seq int64) {
		if seq == 2 {
			h.sig.Reset()
		}
	}
	h.sig.Select(track.Box(100, 100, 50, 50))

	res, err := h.run(t, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"frame 0", "track 0",
		"frame 1", "track 1",
		"frame 2", "track 2",
		"center",
		"frame 3",
		"frame 4",
	}, events)
	assert.Equal(t, []int{90}, h.act.centers)
	assert.Equal(t, 1, res.Resets)
	assert.Empty(t, h.sess.Active())
	assert.Equal(t, track.ObjectID(1), h.sess.NextID(), "ids restart after reset")
}

func TestLoopResetDropsQueuedSelections(t *testing.T) {
	h := newHarness(t, 5, 20*time.Millisecond)
	h.sig.Select(track.Box(200, 200, 40, 40))
	h.sig.Reset()
	h.src.onFrame = func(seq int64) {
		if seq == 3 {
			h.sig.Select(track.Box(600, 480, 80, 64))
		}
	}

	res, err := h.run(t, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resets)
	require.Len(t, h.samples, 2, "only the selection made after the reset is tracked")
	assert.Equal(t, int64(3), h.samples[0].Seq)
	assert.Equal(t, track.ObjectID(1), h.samples[0].Object)
	assert.Equal(t, []track.ObjectID{1}, h.sess.Active())
	b, ok := h.sess.Previous().Box(1)
	require.True(t, ok)
	assert.Equal(t, track.Box(600, 480, 80, 64), b)
}

func TestLoopQuit(t *testing.T) {
	h := newHarness(t, 10, 20*time.Millisecond)
	h.src.onFrame = func(seq int64) {
		if seq == 1 {
			h.sig.Quit()
		}
	}

	res, err := h.run(t, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Frames)
}

func TestLoopClampsIdenticalTimestamps(t *testing.T) {
	h := newHarness(t, 4, 0)
	h.ctrl = control.NewDualAxis(control.Gains{Kp: 0.1, Kd: 0.05}, 0.01, 0.01)
	h.sig.Select(track.Box(100, 100, 50, 50))

	_, err := h.run(t, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, h.samples, 4)
	assert.InDelta(t, 0.1, h.samples[0].Dt, 1e-9, "first frame uses InitialDt")
	for _, s := range h.samples[1:] {
		assert.InDelta(t, 0.001, s.Dt, 1e-9)
		assert.False(t, math.IsNaN(s.AngleX))
	}
}

func TestLoopSeedsInitialBox(t *testing.T) {
	h := newHarness(t, 3, 20*time.Millisecond)
	box := track.Box(100, 100, 50, 50)
	cfg := DefaultConfig()
	cfg.InitialBox = &box

	res, err := h.run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, []track.ObjectID{1}, h.sess.Active())
	assert.Equal(t, 2, res.Samples, "first frame is consumed by initialisation")
	assert.Equal(t, 2, h.tracker.calls)
}

func TestLoopHonoursContext(t *testing.T) {
	h := newHarness(t, 100, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	h.src.onFrame = func(seq int64) {
		if seq == 3 {
			cancel()
		}
	}
	l := New(h.src, h.sess, h.ctrl, h.act, h.sig, DefaultConfig(), WithClock(h.clock))
	res, err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, res.Frames)
}

type countMetric struct{ n int }

func (c *countMetric) Name() string   { return "count" }
func (c *countMetric) Observe(Sample) { c.n++ }
func (c *countMetric) Value() float64 { return float64(c.n) }
func (c *countMetric) Reset()         { c.n = 0 }

func TestLoopReportsMetrics(t *testing.T) {
	h := newHarness(t, 3, 20*time.Millisecond)
	h.sig.Select(track.Box(100, 100, 50, 50))
	l := New(h.src, h.sess, h.ctrl, h.act, h.sig, DefaultConfig(), WithClock(h.clock), WithMetric(&countMetric{}))

	res, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Metrics["count"])
	assert.Equal(t, 40*time.Millisecond, res.Duration)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting", StateWaitingForTarget.String())
	assert.Equal(t, "tracking", StateTracking.String())
}
