// Package loop runs the frame-to-servo control cycle.
package loop

import (
	"fmt"
	"time"

	"github.com/san-kum/servotrack/internal/track"
)

// Actuator is the part of the servo link the loop drives.
type Actuator interface {
	SetAxisPosition(axis int, angle int) error
	Center(angle int) error
}

// State is the loop's coarse operating mode.
type State int32

const (
	StateWaitingForTarget State = iota
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateWaitingForTarget:
		return "waiting"
	case StateTracking:
		return "tracking"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Sample is one control step for one object.
type Sample struct {
	Seq    int64
	Time   time.Time
	Object track.ObjectID
	Box    track.BoundingBox

	ErrX, ErrY     float64
	AngleX, AngleY float64
	Pan, Tilt      int

	Transmitted bool
	Dt          float64
}

type Observer interface {
	OnSample(s Sample)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Sample)

func (f ObserverFunc) OnSample(s Sample) { f(s) }

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Result summarises a finished Run.
type Result struct {
	Frames          int
	Samples         int
	Transmissions   int
	TrackErrors     int
	ActuationErrors int
	Resets          int
	Duration        time.Duration
	Metrics         map[string]float64
}
