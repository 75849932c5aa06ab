package actuator

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PacketSize is the length of one command packet on the wire.
const PacketSize = 20

var magic = [4]byte{'s', 'e', 'r', 'v'}

// Command is the full settable state of the two-axis controller. Every
// packet carries both axes.
type Command struct {
	Angles      [2]int32 `json:"angles"`
	MoveTimesMs [2]int32 `json:"move_times_ms"`
}

// DefaultCommand centres both axes with the fastest move time.
func DefaultCommand() Command {
	return Command{
		Angles:      [2]int32{90, 90},
		MoveTimesMs: [2]int32{1, 1},
	}
}

// Encode lays out c as "serv" followed by four little-endian int32 fields:
// axis0 angle, axis1 angle, axis0 move time, axis1 move time.
func Encode(c Command) [PacketSize]byte {
	var p [PacketSize]byte
	copy(p[:4], magic[:])
	binary.LittleEndian.PutUint32(p[4:8], uint32(c.Angles[0]))
	binary.LittleEndian.PutUint32(p[8:12], uint32(c.Angles[1]))
	binary.LittleEndian.PutUint32(p[12:16], uint32(c.MoveTimesMs[0]))
	binary.LittleEndian.PutUint32(p[16:20], uint32(c.MoveTimesMs[1]))
	return p
}

// Decode parses one packet produced by Encode.
func Decode(p []byte) (Command, error) {
	if len(p) != PacketSize {
		return Command{}, fmt.Errorf("%w: length %d", ErrMalformedPacket, len(p))
	}
	if !bytes.Equal(p[:4], magic[:]) {
		return Command{}, fmt.Errorf("%w: magic %q", ErrMalformedPacket, p[:4])
	}
	var c Command
	c.Angles[0] = int32(binary.LittleEndian.Uint32(p[4:8]))
	c.Angles[1] = int32(binary.LittleEndian.Uint32(p[8:12]))
	c.MoveTimesMs[0] = int32(binary.LittleEndian.Uint32(p[12:16]))
	c.MoveTimesMs[1] = int32(binary.LittleEndian.Uint32(p[16:20]))
	return c, nil
}
