package viz

import (
	"errors"
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/servotrack/internal/loop"
)

var ErrNoData = errors.New("viz: no samples to plot")

// Fields lists the sample columns Plot understands.
var Fields = []string{"err_x", "err_y", "angle_x", "angle_y", "pan", "tilt"}

func field(s loop.Sample, name string) (float64, bool) {
	switch name {
	case "err_x":
		return s.ErrX, true
	case "err_y":
		return s.ErrY, true
	case "angle_x":
		return s.AngleX, true
	case "angle_y":
		return s.AngleY, true
	case "pan":
		return float64(s.Pan), true
	case "tilt":
		return float64(s.Tilt), true
	}
	return 0, false
}

// Plot charts one sample column over the run.
func Plot(samples []loop.Sample, name string, width, height int) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoData
	}
	data := make([]float64, len(samples))
	for i, s := range samples {
		v, ok := field(s, name)
		if !ok {
			return "", fmt.Errorf("viz: unknown field %q", name)
		}
		data[i] = v
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(name),
	), nil
}
