// Package selection turns pointer events into target boxes.
//
// It is a two-state machine: Idle until the first press, Selecting while
// the pointer moves, and back to Idle on the second press, which emits
// exactly one box.
package selection

import (
	"fmt"
	"image"

	"github.com/san-kum/servotrack/internal/track"
)

type State int

const (
	Idle State = iota
	Selecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Selector struct {
	state State
	start image.Point
	end   image.Point
}

func New() *Selector {
	return &Selector{}
}

func (s *Selector) State() State { return s.state }

// Press handles a button press at p. The second press of a drag returns
// the finished box and true.
func (s *Selector) Press(p image.Point) (track.BoundingBox, bool) {
	switch s.state {
	case Idle:
		s.start, s.end = p, p
		s.state = Selecting
		return track.BoundingBox{}, false
	default:
		s.end = p
		s.state = Idle
		return s.box(), true
	}
}

// Move updates the free corner while selecting.
func (s *Selector) Move(p image.Point) {
	if s.state == Selecting {
		s.end = p
	}
}

// Current returns the box being dragged, if any.
func (s *Selector) Current() (track.BoundingBox, bool) {
	if s.state != Selecting {
		return track.BoundingBox{}, false
	}
	return s.box(), true
}

// Cancel abandons a drag in progress.
func (s *Selector) Cancel() {
	s.state = Idle
}

func (s *Selector) box() track.BoundingBox {
	return track.FromRect(image.Rectangle{Min: s.start, Max: s.end})
}
