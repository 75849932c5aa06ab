package control

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultOutputGain is the empirical multiplier applied after optics
// scaling.
const DefaultOutputGain = 10.0

var (
	ErrInvalidTimestep = errors.New("control: timestep must be positive")
	ErrParameterBounds = errors.New("control: parameter out of valid bounds")
	ErrUnknownParam    = errors.New("control: unknown parameter")
)

// Configurable is implemented by controllers that support live tuning.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// AnglePerPixel is the angular size of one pixel along an axis spanning
// fovDeg degrees over pixels pixels.
func AnglePerPixel(fovDeg float64, pixels int) (float64, error) {
	if pixels <= 0 {
		return 0, fmt.Errorf("%w: %d pixels", ErrParameterBounds, pixels)
	}
	if fovDeg <= 0 {
		return 0, fmt.Errorf("%w: fov %v", ErrParameterBounds, fovDeg)
	}
	return (fovDeg / 2) / (float64(pixels) / 2), nil
}

// Gains configures both axes of a DualAxis.
type Gains struct {
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	IntegralLimit float64 `yaml:"integral_limit"`
}

// DualAxis runs independent PID loops for x and y and converts the result
// into degrees.
type DualAxis struct {
	X, Y *PID

	ScaleX     float64
	ScaleY     float64
	OutputGain float64
}

// NewDualAxis builds a controller with the same gains on both axes. scaleX
// and scaleY are degrees per pixel.
func NewDualAxis(g Gains, scaleX, scaleY float64) *DualAxis {
	mk := func() *PID {
		p := NewPID(g.Kp, g.Ki, g.Kd)
		p.IntegralLimit = g.IntegralLimit
		return p
	}
	return &DualAxis{
		X:          mk(),
		Y:          mk(),
		ScaleX:     scaleX,
		ScaleY:     scaleY,
		OutputGain: DefaultOutputGain,
	}
}

// Compute maps pixel error to an angular correction per axis. dt is in
// seconds and must be positive; neither axis is advanced otherwise.
func (d *DualAxis) Compute(errX, errY, dt float64) (angleX, angleY float64, err error) {
	if !(dt > 0) {
		return 0, 0, fmt.Errorf("%w: dt=%v", ErrInvalidTimestep, dt)
	}
	ux, err := d.X.Update(errX, dt)
	if err != nil {
		return 0, 0, err
	}
	uy, err := d.Y.Update(errY, dt)
	if err != nil {
		return 0, 0, err
	}
	return ux * d.ScaleX * d.OutputGain, uy * d.ScaleY * d.OutputGain, nil
}

func (d *DualAxis) Reset() {
	d.X.Reset()
	d.Y.Reset()
}

// GetParams reports the x-axis gains; both axes are tuned together.
func (d *DualAxis) GetParams() map[string]float64 {
	params := d.X.GetParams()
	params["OutputGain"] = d.OutputGain
	return params
}

// SetParam applies name to both axes.
func (d *DualAxis) SetParam(name string, value float64) error {
	if name == "OutputGain" {
		d.OutputGain = value
		return nil
	}
	if err := d.X.SetParam(name, value); err != nil {
		return err
	}
	return d.Y.SetParam(name, value)
}

// ParamNames lists the tunable parameters in a stable order.
func (d *DualAxis) ParamNames() []string {
	names := make([]string, 0, 5)
	for k := range d.GetParams() {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
