package control

import (
	"fmt"
	"math"
)

// PID is a single-axis PID law over pixel error.
type PID struct {
	Kp float64
	Ki float64
	Kd float64
	// IntegralLimit bounds |integral| when positive. Zero leaves the
	// integral unbounded.
	IntegralLimit float64

	integral float64
	prevErr  float64
}

func NewPID(kp, ki, kd float64) *PID {
	return &PID{
		Kp: kp,
		Ki: ki,
		Kd: kd,
	}
}

// Update advances the controller by one step of length dt seconds and
// returns the control signal. dt <= 0 is rejected and leaves the state
// untouched.
func (p *PID) Update(err, dt float64) (float64, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return 0, fmt.Errorf("%w: dt=%v", ErrInvalidTimestep, dt)
	}

	p.integral += err * dt
	if p.IntegralLimit > 0 {
		p.integral = math.Max(-p.IntegralLimit, math.Min(p.IntegralLimit, p.integral))
	}
	derivative := (err - p.prevErr) / dt
	p.prevErr = err

	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative, nil
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
}

func (p *PID) Integral() float64 { return p.integral }

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":            p.Kp,
		"Ki":            p.Ki,
		"Kd":            p.Kd,
		"IntegralLimit": p.IntegralLimit,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "IntegralLimit":
		if value < 0 {
			return fmt.Errorf("%w: IntegralLimit=%v", ErrParameterBounds, value)
		}
		p.IntegralLimit = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return nil
}
