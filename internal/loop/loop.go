package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/san-kum/servotrack/internal/actuator"
	"github.com/san-kum/servotrack/internal/control"
	"github.com/san-kum/servotrack/internal/frame"
	"github.com/san-kum/servotrack/internal/timeutil"
	"github.com/san-kum/servotrack/internal/track"
)

// Loop couples a frame source to the tracker, the controller and the
// actuator. Everything except Signals runs on the goroutine calling Run.
type Loop struct {
	src  frame.Source
	sess *track.Session
	ctrl *control.DualAxis
	act  Actuator
	sig  *Signals
	cfg  Config

	clock     timeutil.Clock
	log       *slog.Logger
	observers []Observer
	metrics   []Metric

	state atomic.Int32

	lastFrame time.Time
	haveFrame bool
	lastTx    time.Time
	haveTx    bool
	seeded    bool
}

func New(src frame.Source, sess *track.Session, ctrl *control.DualAxis, act Actuator, sig *Signals, cfg Config, opts ...Option) *Loop {
	if sig == nil {
		sig = NewSignals()
	}
	l := &Loop{
		src:   src,
		sess:  sess,
		ctrl:  ctrl,
		act:   act,
		sig:   sig,
		cfg:   cfg.withDefaults(),
		clock: timeutil.RealClock{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With("component", "loop")
	return l
}

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) Signals() *Signals { return l.sig }

// Run processes frames until the source ends, quit is signalled or ctx is
// done. Tracker and single transmit failures are logged and skipped; a
// closed actuator link ends the run with an error.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	result := &Result{Metrics: make(map[string]float64)}
	for _, m := range l.metrics {
		m.Reset()
	}
	start := l.clock.Now()
	defer func() {
		result.Duration = l.clock.Since(start)
		for _, m := range l.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		quit, reset := l.sig.control()
		if quit {
			l.log.InfoContext(ctx, "quit requested", "frames", result.Frames)
			return result, nil
		}
		if reset {
			result.Resets++
			if err := l.reset(ctx); err != nil {
				return result, err
			}
		}

		f, err := l.src.Next(ctx)
		if errors.Is(err, frame.ErrEndOfStream) {
			l.log.InfoContext(ctx, "frame source ended", "frames", result.Frames)
			return result, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, fmt.Errorf("loop: acquire frame: %w", err)
		}

		result.Frames++
		err = l.step(ctx, f, result)
		f.Release()
		if err != nil {
			return result, err
		}
	}
}

func (l *Loop) step(ctx context.Context, f frame.Frame, result *Result) error {
	dt := l.timestep(f)

	if l.cfg.InitialBox != nil && !l.seeded {
		l.seed(ctx, f)
		return nil
	}

	for _, box := range l.sig.takeSelections() {
		id := l.sess.NextID()
		if err := l.sess.AddTarget(id, box); err != nil {
			l.log.WarnContext(ctx, "target rejected", "object", id, "err", err)
			continue
		}
		l.log.InfoContext(ctx, "target selected", "object", id, "box", box)
	}

	if len(l.sess.Active()) == 0 && len(l.sess.Pending()) == 0 {
		l.setState(StateWaitingForTarget)
		return nil
	}

	out, err := l.sess.Track(ctx, f)
	if err != nil {
		result.TrackErrors++
		l.log.WarnContext(ctx, "tracking failed, keeping previous output", "seq", f.Seq, "err", err)
		return nil
	}
	l.setState(StateTracking)

	cx, cy := f.Center()
	for _, id := range out.IDs {
		box := out.Boxes[id]
		bx, by := box.Center()
		s := Sample{
			Seq:    f.Seq,
			Time:   l.clock.Now(),
			Object: id,
			Box:    box,
			ErrX:   bx - cx,
			ErrY:   by - cy,
			Dt:     dt,
		}

		s.AngleX, s.AngleY, err = l.ctrl.Compute(s.ErrX, s.ErrY, dt)
		if err != nil {
			l.log.ErrorContext(ctx, "controller rejected step", "object", id, "dt", dt, "err", err)
			continue
		}
		s.Pan = l.cfg.CenterAngle + int(math.Round(s.AngleX))
		s.Tilt = l.cfg.CenterAngle + int(math.Round(s.AngleY))

		if l.transmitDue() {
			sent, err := l.transmit(s.Pan, s.Tilt)
			if errors.Is(err, actuator.ErrClosed) {
				return fmt.Errorf("loop: %w", err)
			}
			if err != nil {
				result.ActuationErrors++
				l.log.WarnContext(ctx, "transmit failed", "pan", s.Pan, "tilt", s.Tilt, "err", err)
			}
			s.Transmitted = sent
			if sent {
				result.Transmissions++
			}
		}

		result.Samples++
		l.emit(s)
	}
	return nil
}

// seed initialises the configured start box on the first frame. A failure
// leaves it unseeded so the next frame retries.
func (l *Loop) seed(ctx context.Context, f frame.Frame) {
	init := track.Init{}
	id := l.sess.NextID()
	init.Add(id, *l.cfg.InitialBox)
	if _, err := l.sess.Initialize(ctx, f, init); err != nil {
		l.log.WarnContext(ctx, "initial target failed", "object", id, "err", err)
		l.sess.Reset()
		return
	}
	l.seeded = true
	l.setState(StateTracking)
	l.log.InfoContext(ctx, "initial target seeded", "object", id, "box", *l.cfg.InitialBox)
}

// reset centres the mount and clears all tracking and control history
// before the next frame is read. Selections queued before the reset are
// dropped.
func (l *Loop) reset(ctx context.Context) error {
	err := l.act.Center(l.cfg.CenterAngle)
	if errors.Is(err, actuator.ErrClosed) {
		return fmt.Errorf("loop: reset: %w", err)
	}
	if err != nil {
		l.log.WarnContext(ctx, "centre on reset failed", "err", err)
	}
	if n := len(l.sig.takeSelections()); n > 0 {
		l.log.DebugContext(ctx, "pending selections dropped", "count", n)
	}
	l.sess.Reset()
	l.ctrl.Reset()
	l.haveFrame = false
	l.lastTx = l.clock.Now()
	l.haveTx = true
	l.setState(StateWaitingForTarget)
	l.log.InfoContext(ctx, "reset complete", "center", l.cfg.CenterAngle)
	return nil
}

// timestep returns the controller dt in seconds for f.
func (l *Loop) timestep(f frame.Frame) float64 {
	now := f.Captured
	if now.IsZero() {
		now = l.clock.Now()
	}
	prev, had := l.lastFrame, l.haveFrame
	l.lastFrame, l.haveFrame = now, true

	if l.cfg.FixedDt > 0 {
		return l.cfg.FixedDt.Seconds()
	}
	if !had {
		return l.cfg.InitialDt.Seconds()
	}
	return max(now.Sub(prev), l.cfg.MinDt).Seconds()
}

func (l *Loop) transmitDue() bool {
	if !l.haveTx {
		return true
	}
	return l.clock.Since(l.lastTx) >= l.cfg.MinTransmitInterval
}

// transmit writes pan then tilt. The gate restarts even when a write
// fails.
func (l *Loop) transmit(pan, tilt int) (bool, error) {
	l.lastTx = l.clock.Now()
	l.haveTx = true
	if err := l.act.SetAxisPosition(l.cfg.PanAxis, pan); err != nil {
		return false, err
	}
	if err := l.act.SetAxisPosition(l.cfg.TiltAxis, tilt); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Loop) emit(s Sample) {
	for _, m := range l.metrics {
		m.Observe(s)
	}
	for _, o := range l.observers {
		o.OnSample(s)
	}
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}
