package bench

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/san-kum/servotrack/internal/track"
)

// ParseMask decodes "m<x>,<y>,<w>,<h>,<runs...>": a w x h patch placed at
// (x, y), row-major, with run lengths alternating background and object
// starting with background.
func ParseMask(s string) (*track.Mask, image.Point, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(s), "m")
	if !ok {
		return nil, image.Point{}, fmt.Errorf("%w: mask must start with 'm'", ErrProtocol)
	}
	fields := strings.Split(strings.TrimSuffix(body, ","), ",")
	if len(fields) < 4 {
		return nil, image.Point{}, fmt.Errorf("%w: mask header has %d fields", ErrProtocol, len(fields))
	}
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 {
			return nil, image.Point{}, fmt.Errorf("%w: mask field %d %q", ErrProtocol, i, f)
		}
		nums[i] = n
	}

	if nums[2] > track.MaxMaskSide || nums[3] > track.MaxMaskSide {
		return nil, image.Point{}, fmt.Errorf("%w: mask %dx%d too large", ErrProtocol, nums[2], nums[3])
	}
	off := image.Pt(nums[0], nums[1])
	m := track.NewMask(nums[2], nums[3])
	pos, value := 0, uint8(0)
	for _, run := range nums[4:] {
		if pos+run > len(m.Data) {
			return nil, image.Point{}, fmt.Errorf("%w: mask runs exceed %dx%d", ErrProtocol, m.Width, m.Height)
		}
		if value != 0 {
			for i := pos; i < pos+run; i++ {
				m.Data[i] = 1
			}
		}
		pos += run
		value ^= 1
	}
	return m, off, nil
}

// EncodeMask crops m to its non-zero pixels and writes it in the form read
// by ParseMask.
func EncodeMask(m *track.Mask) string {
	box := m.BoundingBox()
	x0, y0 := int(box.X), int(box.Y)
	w, h := int(box.Width), int(box.Height)

	var b strings.Builder
	fmt.Fprintf(&b, "m%d,%d,%d,%d", x0, y0, w, h)
	if w == 0 || h == 0 {
		return b.String()
	}

	run, value := 0, uint8(0)
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			v := uint8(0)
			if m.At(x, y) != 0 {
				v = 1
			}
			if v != value {
				fmt.Fprintf(&b, ",%d", run)
				run, value = 0, v
			}
			run++
		}
	}
	fmt.Fprintf(&b, ",%d", run)
	return b.String()
}
