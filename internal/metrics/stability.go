package metrics

import (
	"math"

	"github.com/san-kum/servotrack/internal/loop"
)

// Stability is the fraction of samples whose target centre lies within
// threshold pixels of the frame centre on both axes.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x loop.Sample) {
	s.samples++
	if math.Abs(x.ErrX) > s.threshold || math.Abs(x.ErrY) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
