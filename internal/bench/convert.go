package bench

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/servotrack/internal/track"
)

// Conversion selects how a polygon annotation becomes an axis-aligned box.
type Conversion int

const (
	// ConvertUnion takes the tight box around every vertex.
	ConvertUnion Conversion = iota
	// ConvertPreserveArea centres a box on the vertex mean and scales it to
	// the polygon's own area.
	ConvertPreserveArea
)

func (c Conversion) String() string {
	switch c {
	case ConvertUnion:
		return "union"
	case ConvertPreserveArea:
		return "preserve_area"
	default:
		return fmt.Sprintf("conversion(%d)", int(c))
	}
}

func ParseConversion(s string) (Conversion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preserve_area", "preserve-area":
		return ConvertPreserveArea, nil
	case "union":
		return ConvertUnion, nil
	default:
		return 0, fmt.Errorf("bench: unknown polygon conversion %q", s)
	}
}

// PolygonToBox converts a polygon of at least three vertices.
func PolygonToBox(poly []Point, c Conversion) (track.BoundingBox, error) {
	if len(poly) < 3 {
		return track.BoundingBox{}, fmt.Errorf("%w: polygon has %d vertices", ErrProtocol, len(poly))
	}
	xs := make([]float64, len(poly))
	ys := make([]float64, len(poly))
	for i, p := range poly {
		xs[i], ys[i] = p.X, p.Y
	}
	x1, x2 := floats.Min(xs), floats.Max(xs)
	y1, y2 := floats.Min(ys), floats.Max(ys)

	switch c {
	case ConvertUnion:
		return track.Box(x1, y1, x2-x1, y2-y1), nil
	case ConvertPreserveArea:
		if len(poly) < 4 {
			return track.BoundingBox{}, fmt.Errorf("%w: preserve_area needs 4 vertices, got %d", ErrProtocol, len(poly))
		}
		cx := floats.Sum(xs) / float64(len(xs))
		cy := floats.Sum(ys) / float64(len(ys))

		a1 := edge(poly[0], poly[1]) * edge(poly[1], poly[2])
		a2 := (x2 - x1) * (y2 - y1)
		if a2 == 0 {
			return track.BoundingBox{}, fmt.Errorf("%w: degenerate polygon", ErrProtocol)
		}
		s := math.Sqrt(a1 / a2)
		w := s*(x2-x1) + 1
		h := s*(y2-y1) + 1
		return track.Box(cx-w/2, cy-h/2, w, h), nil
	default:
		return track.BoundingBox{}, fmt.Errorf("bench: unknown conversion %v", c)
	}
}

func edge(a, b Point) float64 {
	return floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
}
