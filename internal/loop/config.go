package loop

import (
	"log/slog"
	"time"

	"github.com/san-kum/servotrack/internal/timeutil"
	"github.com/san-kum/servotrack/internal/track"
)

type Config struct {
	// CenterAngle is the neutral servo position in degrees.
	CenterAngle int
	// PanAxis receives the x correction, TiltAxis the y correction.
	PanAxis  int
	TiltAxis int

	// MinTransmitInterval gates actuator writes; zero sends every step.
	MinTransmitInterval time.Duration

	// FixedDt, when positive, replaces the measured frame interval.
	FixedDt time.Duration
	// InitialDt is used for the first frame, which has no interval.
	InitialDt time.Duration
	// MinDt is the floor applied to measured intervals.
	MinDt time.Duration

	// InitialBox, if set, is initialised on the first frame.
	InitialBox *track.BoundingBox
}

func DefaultConfig() Config {
	return Config{
		CenterAngle: 90,
		PanAxis:     1,
		TiltAxis:    0,
		InitialDt:   100 * time.Millisecond,
		MinDt:       time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	if c.MinDt <= 0 {
		c.MinDt = time.Millisecond
	}
	if c.InitialDt <= 0 {
		c.InitialDt = 100 * time.Millisecond
	}
	return c
}

type Option func(*Loop)

func WithClock(c timeutil.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

func WithMetric(m Metric) Option {
	return func(l *Loop) { l.metrics = append(l.metrics, m) }
}
