// Package viz renders tracking telemetry in the terminal.
//
// [Monitor] is a Bubble Tea model fed by the control loop through [Feed].
// It shows the current target, servo angles and a sparkline of the
// centring error. [Plot] draws a stored run as an ASCII chart.
//
// # Key Bindings
//
//	r      - Centre the mount and drop all targets
//	x / y  - Switch the sparkline between axes
//	q      - Quit
package viz
