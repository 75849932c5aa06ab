// Package control turns pixel-space tracking error into angular servo
// corrections.
//
//   - [PID]: single-axis Proportional-Integral-Derivative law
//   - [DualAxis]: independent PID loops for pan and tilt, scaled by
//     [AnglePerPixel] and a configurable output gain
//
// # Usage
//
//	sx, _ := control.AnglePerPixel(34.5, 1280)
//	sy, _ := control.AnglePerPixel(27.6, 1024)
//	ctrl := control.NewDualAxis(control.Gains{Kp: 0.1}, sx, sy)
//	ax, ay, err := ctrl.Compute(errX, errY, 0.1)
//
// Controllers implementing [Configurable] support live tuning.
package control
