package loop

import (
	"sync"

	"github.com/san-kum/servotrack/internal/track"
)

// Signals is the operator inbox. Any goroutine may post to it; the loop
// drains it once per iteration.
type Signals struct {
	mu         sync.Mutex
	selections []track.BoundingBox
	reset      bool
	quit       bool
}

func NewSignals() *Signals {
	return &Signals{}
}

// Select queues a new target box.
func (s *Signals) Select(box track.BoundingBox) {
	s.mu.Lock()
	s.selections = append(s.selections, box)
	s.mu.Unlock()
}

func (s *Signals) Reset() {
	s.mu.Lock()
	s.reset = true
	s.mu.Unlock()
}

func (s *Signals) Quit() {
	s.mu.Lock()
	s.quit = true
	s.mu.Unlock()
}

// control reports and clears a pending reset, and reports quit.
func (s *Signals) control() (quit, reset bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reset, s.reset = s.reset, false
	return s.quit, reset
}

func (s *Signals) takeSelections() []track.BoundingBox {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.selections
	s.selections = nil
	return out
}
