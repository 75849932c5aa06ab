package track

import (
	"image"
	"math"
	"time"
)

// ObjectID identifies one target within a session. IDs start at 1 and are
// never reused until the session is reset.
type ObjectID int

// BoundingBox is an axis-aligned pixel rectangle with a top-left origin.
type BoundingBox struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func Box(x, y, w, h float64) BoundingBox {
	return BoundingBox{X: x, Y: y, Width: w, Height: h}
}

// FromRect converts an image rectangle into a box.
func FromRect(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return Box(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
}

func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

func (b BoundingBox) Valid() bool {
	for _, v := range [4]float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Width >= 0 && b.Height >= 0
}

func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Rect rounds the box onto the integer pixel grid.
func (b BoundingBox) Rect() image.Rectangle {
	x0 := int(math.Round(b.X))
	y0 := int(math.Round(b.Y))
	return image.Rect(x0, y0, x0+int(math.Round(b.Width)), y0+int(math.Round(b.Height)))
}

// Mask is a row-major label image. Zero is background; any other value
// marks an object pixel (the value is the object label in merged masks).
type Mask struct {
	Width  int
	Height int
	Data   []uint8
}

// MaxMaskSide bounds each mask dimension.
const MaxMaskSide = 1 << 15

// NewMask allocates a zeroed width x height mask. A non-positive side or
// one above MaxMaskSide yields an empty 0x0 mask.
func NewMask(width, height int) *Mask {
	if width <= 0 || height <= 0 || width > MaxMaskSide || height > MaxMaskSide {
		return &Mask{}
	}
	return &Mask{Width: width, Height: height, Data: make([]uint8, width*height)}
}

func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	if i := y*m.Width + x; i < len(m.Data) {
		return m.Data[i]
	}
	return 0
}

func (m *Mask) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if i := y*m.Width + x; i < len(m.Data) {
		m.Data[i] = v
	}
}

func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	c := &Mask{Width: m.Width, Height: m.Height, Data: make([]uint8, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

// Only returns a binary mask of the pixels carrying label.
func (m *Mask) Only(label uint8) *Mask {
	out := NewMask(m.Width, m.Height)
	for i, v := range m.Data[:min(len(m.Data), len(out.Data))] {
		if v == label {
			out.Data[i] = 1
		}
	}
	return out
}

// BoundingBox returns the tight box around all non-zero pixels, inclusive
// of the last row and column. An empty mask yields the zero box.
func (m *Mask) BoundingBox() BoundingBox {
	x1, y1 := m.Width, m.Height
	x2, y2 := -1, -1
	rows := 0
	if m.Width > 0 {
		rows = min(m.Height, len(m.Data)/m.Width)
	}
	for y := 0; y < rows; y++ {
		row := m.Data[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			x1 = min(x1, x)
			x2 = max(x2, x)
			y1 = min(y1, y)
			y2 = max(y2, y)
		}
	}
	if x2 < 0 {
		return BoundingBox{}
	}
	return Box(float64(x1), float64(y1), float64(x2-x1+1), float64(y2-y1+1))
}

// Output is the per-frame tracker result. Boxes are required; Segmentation
// and PresenceScore are present only when the tracker produces them.
type Output struct {
	IDs            []ObjectID
	Boxes          map[ObjectID]BoundingBox
	Segmentation   *Mask
	PresenceScore  *float64
	ProcessingTime time.Duration
}

func NewOutput() Output {
	return Output{Boxes: make(map[ObjectID]BoundingBox)}
}

// Set records a box, keeping first-insertion order of IDs.
func (o *Output) Set(id ObjectID, box BoundingBox) {
	if o.Boxes == nil {
		o.Boxes = make(map[ObjectID]BoundingBox)
	}
	if _, ok := o.Boxes[id]; !ok {
		o.IDs = append(o.IDs, id)
	}
	o.Boxes[id] = box
}

func (o Output) Box(id ObjectID) (BoundingBox, bool) {
	b, ok := o.Boxes[id]
	return b, ok
}

func (o Output) Len() int { return len(o.IDs) }

func (o Output) HasSegmentation() bool { return o.Segmentation != nil }

func (o Output) Presence() (float64, bool) {
	if o.PresenceScore == nil {
		return 0, false
	}
	return *o.PresenceScore, true
}

// Subset returns the part of o describing a single object.
func (o Output) Subset(id ObjectID) Output {
	out := NewOutput()
	if b, ok := o.Boxes[id]; ok {
		out.Set(id, b)
	}
	if o.Segmentation != nil {
		out.Segmentation = o.Segmentation.Only(uint8(id))
	}
	out.PresenceScore = o.PresenceScore
	return out
}

func (o Output) Clone() Output {
	c := Output{
		IDs:            append([]ObjectID(nil), o.IDs...),
		Boxes:          make(map[ObjectID]BoundingBox, len(o.Boxes)),
		Segmentation:   o.Segmentation.Clone(),
		ProcessingTime: o.ProcessingTime,
	}
	for id, b := range o.Boxes {
		c.Boxes[id] = b
	}
	if o.PresenceScore != nil {
		c.PresenceScore = Score(*o.PresenceScore)
	}
	return c
}

// Score boxes a presence score for Output.PresenceScore.
func Score(v float64) *float64 {
	return &v
}

// Init seeds one or more targets.
type Init struct {
	IDs   []ObjectID
	Boxes map[ObjectID]BoundingBox
	Mask  *Mask
}

func (i *Init) Add(id ObjectID, box BoundingBox) {
	if i.Boxes == nil {
		i.Boxes = make(map[ObjectID]BoundingBox)
	}
	if _, ok := i.Boxes[id]; !ok {
		i.IDs = append(i.IDs, id)
	}
	i.Boxes[id] = box
}

func (i Init) Empty() bool { return len(i.IDs) == 0 }

func (i Init) Clone() Init {
	c := Init{IDs: append([]ObjectID(nil), i.IDs...), Mask: i.Mask.Clone()}
	if i.Boxes != nil {
		c.Boxes = make(map[ObjectID]BoundingBox, len(i.Boxes))
		for id, b := range i.Boxes {
			c.Boxes[id] = b
		}
	}
	return c
}

// FrameInfo is the context handed to Tracker.Track.
type FrameInfo struct {
	// Previous is the most recent successful output of this session.
	Previous Output
	// Init holds targets added since the last frame; they are initialised
	// and tracked in this same call.
	Init Init
	// SequenceIDs lists every active object, new ones last.
	SequenceIDs []ObjectID
}
