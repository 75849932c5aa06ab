package actuator

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"
)

type recordPort struct {
	bytes.Buffer
	err    error
	closed bool
}

func (p *recordPort) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.Buffer.Write(b)
}

func (p *recordPort) Close() error {
	p.closed = true
	return nil
}

func (p *recordPort) packets(t *testing.T) []Command {
	t.Helper()
	raw := p.Bytes()
	if len(raw)%PacketSize != 0 {
		t.Fatalf("wrote %d bytes, not a whole number of packets", len(raw))
	}
	var out []Command
	for i := 0; i < len(raw); i += PacketSize {
		c, err := Decode(raw[i : i+PacketSize])
		if err != nil {
			t.Fatalf("packet %d: %v", i/PacketSize, err)
		}
		out = append(out, c)
	}
	return out
}

func TestEncodeLayout(t *testing.T) {
	got := Encode(Command{Angles: [2]int32{45, 90}, MoveTimesMs: [2]int32{800, 1}})
	want := []byte{
		's', 'e', 'r', 'v',
		45, 0, 0, 0,
		90, 0, 0, 0,
		0x20, 0x03, 0, 0,
		1, 0, 0, 0,
	}
	if !bytes.Equal(got[:], want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeNegativeAngle(t *testing.T) {
	got := Encode(Command{Angles: [2]int32{-1, 0}})
	if !bytes.Equal(got[4:8], []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("axis0 bytes = % x, want ff ff ff ff", got[4:8])
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	good := Encode(DefaultCommand())
	bad := good
	bad[0] = 'x'

	tests := []struct {
		name string
		in   []byte
	}{
		{"short", good[:19]},
		{"long", append(good[:], 0)},
		{"magic", bad[:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.in); !errors.Is(err, ErrMalformedPacket) {
				t.Errorf("Decode() error = %v, want ErrMalformedPacket", err)
			}
		})
	}
}

func TestSetAxisPositionThenFlush(t *testing.T) {
	port := &recordPort{}
	link := New(port, DefaultCommand())

	if err := link.SetAxisPosition(0, 45); err != nil {
		t.Fatalf("SetAxisPosition: %v", err)
	}
	if err := link.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := port.packets(t)
	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}
	want := Command{Angles: [2]int32{45, 90}, MoveTimesMs: [2]int32{1, 1}}
	for i, c := range got {
		if c != want {
			t.Errorf("packet %d = %+v, want %+v", i, c, want)
		}
	}
	if link.Sent() != 2 {
		t.Errorf("Sent() = %d, want 2", link.Sent())
	}
}

func TestSetAxisMoveTimeDoesNotTransmit(t *testing.T) {
	port := &recordPort{}
	link := New(port, DefaultCommand())

	if err := link.SetAxisMoveTime(1, 800); err != nil {
		t.Fatalf("SetAxisMoveTime: %v", err)
	}
	if port.Len() != 0 {
		t.Fatalf("SetAxisMoveTime wrote %d bytes", port.Len())
	}

	if err := link.SetAxisPosition(1, 100); err != nil {
		t.Fatal(err)
	}
	got := port.packets(t)[0]
	if got.MoveTimesMs != [2]int32{1, 800} || got.Angles != [2]int32{90, 100} {
		t.Errorf("packet = %+v", got)
	}
}

func TestCenterOrder(t *testing.T) {
	port := &recordPort{}
	link := New(port, Command{Angles: [2]int32{10, 20}})

	if err := link.Center(90); err != nil {
		t.Fatal(err)
	}
	got := port.packets(t)
	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}
	if got[0].Angles != [2]int32{10, 90} {
		t.Errorf("first packet angles = %v, want axis 1 centred first", got[0].Angles)
	}
	if got[1].Angles != [2]int32{90, 90} {
		t.Errorf("second packet angles = %v", got[1].Angles)
	}
}

func TestInvalidAxis(t *testing.T) {
	link := New(&recordPort{}, DefaultCommand())
	if err := link.SetAxisPosition(2, 0); !errors.Is(err, ErrInvalidAxis) {
		t.Errorf("SetAxisPosition(2) error = %v", err)
	}
	if err := link.SetAxisMoveTime(-1, 0); !errors.Is(err, ErrInvalidAxis) {
		t.Errorf("SetAxisMoveTime(-1) error = %v", err)
	}
}

func TestWriteFailureIsActuationError(t *testing.T) {
	boom := errors.New("usb unplugged")
	port := &recordPort{err: boom}
	link := New(port, DefaultCommand())

	err := link.SetAxisPosition(0, 10)
	if !errors.Is(err, ErrActuation) || !errors.Is(err, boom) {
		t.Errorf("error = %v, want ErrActuation wrapping cause", err)
	}
	if errors.Is(err, ErrClosed) {
		t.Error("a failed write must not look like a closed link")
	}
	if link.Command().Angles[0] != 10 {
		t.Error("state should hold the requested angle even when the write fails")
	}
}

func TestClosedLink(t *testing.T) {
	port := &recordPort{}
	link := New(port, DefaultCommand())
	if err := link.Close(); err != nil {
		t.Fatal(err)
	}
	if !port.closed {
		t.Error("Close did not close the port")
	}
	if err := link.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}

	err := link.Flush()
	if !errors.Is(err, ErrClosed) || !errors.Is(err, ErrActuation) {
		t.Errorf("Flush after Close = %v", err)
	}
}

func TestPortOptionsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{
			name: "defaults",
			want: PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N", ReadTimeout: time.Second},
		},
		{
			name: "even parity long form",
			in:   PortOptions{BaudRate: 9600, Parity: "even", ReadTimeout: 50 * time.Millisecond},
			want: PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "E", ReadTimeout: 50 * time.Millisecond},
		},
		{name: "bad data bits", in: PortOptions{DataBits: 9}, wantErr: true},
		{name: "bad stop bits", in: PortOptions{StopBits: 3}, wantErr: true},
		{name: "bad parity", in: PortOptions{Parity: "mark"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Normalize() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.BaudRate != 115200 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.StopBits != serial.TwoStopBits || mode.Parity != serial.OddParity {
		t.Errorf("mode = %+v", mode)
	}
}

func TestOpenMissingPort(t *testing.T) {
	_, err := Open("/dev/servotrack-does-not-exist", PortOptions{})
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Open() error = %v, want ErrConnection", err)
	}
}
