package metrics

import (
	"math"

	"github.com/san-kum/servotrack/internal/loop"
)

// CentringRMS is the root mean square pixel distance between the target
// and the frame centre.
type CentringRMS struct {
	sumSq   float64
	samples int
}

func NewCentringRMS() *CentringRMS { return &CentringRMS{} }

func (c *CentringRMS) Name() string { return "centring_rms" }

func (c *CentringRMS) Observe(s loop.Sample) {
	c.sumSq += s.ErrX*s.ErrX + s.ErrY*s.ErrY
	c.samples++
}

func (c *CentringRMS) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return math.Sqrt(c.sumSq / float64(c.samples))
}

func (c *CentringRMS) Reset() {
	c.sumSq = 0
	c.samples = 0
}

// Transmissions counts samples that produced an actuator write.
type Transmissions struct {
	n int
}

func NewTransmissions() *Transmissions { return &Transmissions{} }

func (t *Transmissions) Name() string { return "transmissions" }

func (t *Transmissions) Observe(s loop.Sample) {
	if s.Transmitted {
		t.n++
	}
}

func (t *Transmissions) Value() float64 { return float64(t.n) }

func (t *Transmissions) Reset() { t.n = 0 }

// Default returns the metrics recorded for every tracking run.
func Default() []loop.Metric {
	return []loop.Metric{
		NewControlEffort(),
		NewStability(DefaultStabilityThreshold),
		NewCentringRMS(),
		NewTransmissions(),
		NewOscillation(),
	}
}

// DefaultStabilityThreshold is the pixel radius counted as centred.
const DefaultStabilityThreshold = 20.0
