// Package actuator speaks the write-only binary protocol of a two-axis
// serial servo controller.
//
// Each packet is 20 bytes: the ASCII magic "serv" followed by four
// little-endian int32 values (axis0 angle, axis1 angle, axis0 move time in
// ms, axis1 move time in ms). There is no checksum and no acknowledgement.
package actuator
