package metrics

import (
	"github.com/san-kum/servotrack/internal/analysis"
	"github.com/san-kum/servotrack/internal/loop"
)

const oscillationWindow = 1024

// Oscillation reports the dominant frequency in Hz of the horizontal
// centring error over the most recent samples. Zero means too few samples.
type Oscillation struct {
	errs []float64
	dts  []float64
}

func NewOscillation() *Oscillation { return &Oscillation{} }

func (o *Oscillation) Name() string { return "oscillation_hz" }

func (o *Oscillation) Observe(s loop.Sample) {
	o.errs = append(o.errs, s.ErrX)
	o.dts = append(o.dts, s.Dt)
	if len(o.errs) > oscillationWindow {
		o.errs = o.errs[1:]
		o.dts = o.dts[1:]
	}
}

func (o *Oscillation) Value() float64 {
	hz, _, err := analysis.Dominant(o.errs, analysis.Rate(o.dts))
	if err != nil {
		return 0
	}
	return hz
}

func (o *Oscillation) Reset() {
	o.errs = o.errs[:0]
	o.dts = o.dts[:0]
}
