package bench_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/servotrack/internal/bench"
	"github.com/san-kum/servotrack/internal/frame"
	"github.com/san-kum/servotrack/internal/track"
)

// scriptHarness hands out a fixed region and frame list.
type scriptHarness struct {
	region     bench.Region
	regionErr  error
	frames     []string
	next       int
	frameCalls int
	reports    []bench.Result
}

func (h *scriptHarness) Region() (bench.Region, error) { return h.region, h.regionErr }

func (h *scriptHarness) Frame() (string, error) {
	h.frameCalls++
	if h.next >= len(h.frames) {
		return "", nil
	}
	p := h.frames[h.next]
	h.next++
	return p, nil
}

func (h *scriptHarness) Report(r bench.Result) error {
	h.reports = append(h.reports, r)
	return nil
}

// driftTracker moves the box one pixel right every frame.
type driftTracker struct {
	inits    []track.Init
	presence *float64
	segment  bool
	failAt   int
	calls    int
}

func (d *driftTracker) Initialize(_ context.Context, _ frame.Frame, init track.Init) (track.Output, error) {
	d.inits = append(d.inits, init.Clone())
	out := track.NewOutput()
	for _, id := range init.IDs {
		out.Set(id, init.Boxes[id])
	}
	return out, nil
}

func (d *driftTracker) Track(_ context.Context, f frame.Frame, info track.FrameInfo) (track.Output, error) {
	d.calls++
	if d.failAt == d.calls {
		return track.Output{}, errors.New("lost")
	}
	out := track.NewOutput()
	for _, id := range info.SequenceIDs {
		b, _ := info.Previous.Box(id)
		b.X++
		out.Set(id, b)
		if d.segment {
			out.Segmentation = track.NewMask(f.Width, f.Height)
			out.Segmentation.Set(int(b.X), int(b.Y), 255)
		}
	}
	out.PresenceScore = d.presence
	return out, nil
}

var frameLoader = bench.LoaderFunc(func(_ context.Context, path string) (frame.Frame, error) {
	if path == "missing.jpg" {
		return frame.Frame{}, os.ErrNotExist
	}
	return frame.New(0, time.Time{}, 64, 48, path, nil), nil
})

func newSession(tr *driftTracker) *track.Session {
	sess, err := track.NewSession(track.ModeDefault, func() (track.Tracker, error) { return tr, nil })
	Expect(err).NotTo(HaveOccurred())
	return sess
}

var _ = Describe("PolygonAdapter", func() {
	var (
		tr      *driftTracker
		adapter *bench.PolygonAdapter
		h       *scriptHarness
	)

	BeforeEach(func() {
		tr = &driftTracker{}
		adapter = &bench.PolygonAdapter{Session: newSession(tr), Loader: frameLoader, Conversion: bench.ConvertUnion}
		h = &scriptHarness{
			region: bench.Region{Kind: bench.RegionPolygon, Polygon: []bench.Point{{10, 10}, {30, 10}, {30, 20}, {10, 20}}},
			frames: []string{"0.jpg", "1.jpg", "2.jpg", "3.jpg"},
		}
	})

	It("initialises from the converted polygon and reports every later frame", func() {
		Expect(adapter.Run(context.Background(), h)).To(Succeed())

		Expect(tr.inits).To(HaveLen(1))
		Expect(tr.inits[0].Boxes[1]).To(Equal(track.Box(10, 10, 20, 10)))
		Expect(h.reports).To(HaveLen(3))
		Expect(h.reports[2].Rect).To(Equal(track.Box(13, 10, 20, 10)))
		Expect(h.reports[0].HasConfidence).To(BeFalse())
	})

	It("stops at the end of the sequence without another report", func() {
		Expect(adapter.Run(context.Background(), h)).To(Succeed())
		Expect(h.frameCalls).To(Equal(len(h.frames) + 1))
		Expect(h.reports).To(HaveLen(len(h.frames) - 1))
	})

	It("does nothing when the first frame is already the end", func() {
		h.frames = nil
		Expect(adapter.Run(context.Background(), h)).To(Succeed())
		Expect(tr.inits).To(BeEmpty())
		Expect(h.reports).To(BeEmpty())
	})

	It("passes a plain rectangle through", func() {
		h.region = bench.Region{Kind: bench.RegionRect, Rect: track.Box(1, 2, 3, 4)}
		Expect(adapter.Run(context.Background(), h)).To(Succeed())
		Expect(tr.inits[0].Boxes[1]).To(Equal(track.Box(1, 2, 3, 4)))
	})

	It("treats a mask region as a protocol error", func() {
		h.region = bench.Region{Kind: bench.RegionMask, Mask: track.NewMask(2, 2)}
		err := adapter.Run(context.Background(), h)
		Expect(err).To(MatchError(bench.ErrProtocol))
		Expect(h.reports).To(BeEmpty())
	})

	It("abandons the sequence when tracking fails", func() {
		tr.failAt = 2
		err := adapter.Run(context.Background(), h)

		var seqErr *bench.SequenceError
		Expect(errors.As(err, &seqErr)).To(BeTrue())
		Expect(seqErr.Frame).To(Equal(2))
		Expect(err).To(MatchError(track.ErrTrackingUnavailable))
		Expect(h.reports).To(HaveLen(1))
	})

	It("reports unreadable frames as protocol errors", func() {
		h.frames = []string{"0.jpg", "missing.jpg"}
		err := adapter.Run(context.Background(), h)
		Expect(err).To(MatchError(bench.ErrProtocol))
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("runs again on the same session", func() {
		Expect(adapter.Run(context.Background(), h)).To(Succeed())
		h2 := &scriptHarness{region: h.region, frames: []string{"a.jpg", "b.jpg"}}
		Expect(adapter.Run(context.Background(), h2)).To(Succeed())
		Expect(tr.inits[1].IDs).To(Equal([]track.ObjectID{1}))
		Expect(h2.reports).To(HaveLen(1))
	})
})

var _ = Describe("RegionAdapter", func() {
	var (
		tr      *driftTracker
		adapter *bench.RegionAdapter
		h       *scriptHarness
	)

	BeforeEach(func() {
		tr = &driftTracker{}
		adapter = &bench.RegionAdapter{Session: newSession(tr), Loader: frameLoader}
		h = &scriptHarness{
			region: bench.Region{Kind: bench.RegionRect, Rect: track.Box(5, 5, 10, 10)},
			frames: []string{"0.jpg", "1.jpg", "2.jpg"},
		}
	})

	It("reports a confidence of 1 when the tracker gives none", func() {
		Expect(adapter.Run(context.Background(), h)).To(Succeed())
		Expect(h.reports).To(HaveLen(2))
		for _, r := range h.reports {
			Expect(r.HasConfidence).To(BeTrue())
			Expect(r.Confidence).To(Equal(1.0))
			Expect(r.Mask).To(BeNil())
		}
	})

	It("forwards the tracker presence score", func() {
		tr.presence = track.Score(0.25)
		Expect(adapter.Run(context.Background(), h)).To(Succeed())
		Expect(h.reports[0].Confidence).To(Equal(0.25))
	})

	It("initialises from a full-size mask and its derived box", func() {
		patch := track.NewMask(3, 2)
		patch.Set(0, 0, 1)
		patch.Set(2, 1, 1)
		h.region = bench.Region{Kind: bench.RegionMask, Mask: patch, MaskOffset: image.Pt(20, 30)}

		Expect(adapter.Run(context.Background(), h)).To(Succeed())
		init := tr.inits[0]
		Expect(init.Boxes[1]).To(Equal(track.Box(20, 30, 3, 2)))
		Expect(init.Mask).NotTo(BeNil())
		Expect(init.Mask.Width).To(Equal(64))
		Expect(init.Mask.At(22, 31)).To(Equal(uint8(1)))
	})

	It("rejects an empty initial mask", func() {
		h.region = bench.Region{Kind: bench.RegionMask, Mask: track.NewMask(3, 3)}
		Expect(adapter.Run(context.Background(), h)).To(MatchError(bench.ErrProtocol))
	})

	It("reports masks when the tracker segments", func() {
		tr.segment = true
		adapter.PredictsMask = true
		Expect(adapter.Run(context.Background(), h)).To(Succeed())
		m := h.reports[0].Mask
		Expect(m).NotTo(BeNil())
		Expect(m.At(6, 5)).To(Equal(uint8(1)))
		Expect(h.reports[0].String()).To(HavePrefix("m6,5,1,1"))
	})

	It("rejects polygon regions", func() {
		h.region = bench.Region{Kind: bench.RegionPolygon}
		Expect(adapter.Run(context.Background(), h)).To(MatchError(bench.ErrProtocol))
	})

	It("fails the sequence when the harness cannot give a region", func() {
		h.regionErr = errors.New("eof")
		Expect(adapter.Run(context.Background(), h)).To(MatchError(bench.ErrProtocol))
	})
})

var _ = Describe("PolygonToBox", func() {
	square := []bench.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	diamond := []bench.Point{{5, 0}, {10, 5}, {5, 10}, {0, 5}}

	DescribeTable("conversions",
		func(poly []bench.Point, c bench.Conversion, want track.BoundingBox) {
			got, err := bench.PolygonToBox(poly, c)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.X).To(BeNumerically("~", want.X, 1e-3))
			Expect(got.Y).To(BeNumerically("~", want.Y, 1e-3))
			Expect(got.Width).To(BeNumerically("~", want.Width, 1e-3))
			Expect(got.Height).To(BeNumerically("~", want.Height, 1e-3))
		},
		Entry("union of a square", square, bench.ConvertUnion, track.Box(0, 0, 10, 10)),
		Entry("union of a diamond", diamond, bench.ConvertUnion, track.Box(0, 0, 10, 10)),
		Entry("preserve_area of a square", square, bench.ConvertPreserveArea, track.Box(-0.5, -0.5, 11, 11)),
		Entry("preserve_area of a diamond", diamond, bench.ConvertPreserveArea, track.Box(0.9645, 0.9645, 8.0711, 8.0711)),
	)

	It("rejects short polygons", func() {
		_, err := bench.PolygonToBox([]bench.Point{{0, 0}, {1, 1}}, bench.ConvertUnion)
		Expect(err).To(MatchError(bench.ErrProtocol))
	})

	It("parses conversion names", func() {
		c, err := bench.ParseConversion("union")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(bench.ConvertUnion))
		c, err = bench.ParseConversion("")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(bench.ConvertPreserveArea))
		_, err = bench.ParseConversion("hull")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("region text", func() {
	DescribeTable("ParseRegion",
		func(line string, kind bench.RegionKind) {
			r, err := bench.ParseRegion(line)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Kind).To(Equal(kind))
		},
		Entry("rectangle", "1,2,3,4", bench.RegionRect),
		Entry("polygon", "0,0,10,0,10,10,0,10", bench.RegionPolygon),
		Entry("mask", "m1,2,2,2,1,2,1", bench.RegionMask),
	)

	DescribeTable("malformed regions",
		func(line string) {
			_, err := bench.ParseRegion(line)
			Expect(err).To(MatchError(bench.ErrProtocol))
		},
		Entry("too few values", "1,2,3"),
		Entry("odd polygon", "1,2,3,4,5,6,7"),
		Entry("not a number", "1,2,x,4"),
		Entry("negative width", "0,0,-1,4"),
		Entry("mask overflow", "m0,0,2,2,1,9"),
		Entry("mask side above limit", "m0,0,40000,2"),
		Entry("mask area overflows int", "m0,0,3037000500,3037000500"),
		Entry("mask area wraps to zero", "m0,0,4294967296,4294967296"),
	)

	It("rejects an oversized mask header before allocating", func() {
		m, _, err := bench.ParseMask("m0,0,4294967296,4294967296,1")
		Expect(err).To(MatchError(bench.ErrProtocol))
		Expect(m).To(BeNil())
	})

	It("places an empty mask on a canvas without indexing past it", func() {
		r := bench.Region{Kind: bench.RegionMask, Mask: &track.Mask{Width: 4, Height: 4}}
		full := r.FullMask(4, 4)
		Expect(full.BoundingBox().Area()).To(BeZero())
	})

	It("decodes mask runs from background first", func() {
		m, off, err := bench.ParseMask("m1,2,2,2,1,2,1")
		Expect(err).NotTo(HaveOccurred())
		Expect(off).To(Equal(image.Pt(1, 2)))
		Expect(m.Data).To(Equal([]uint8{0, 1, 1, 0}))
	})

	It("encodes a mask cropped to its content", func() {
		m := track.NewMask(5, 5)
		m.Set(1, 2, 1)
		m.Set(2, 3, 1)
		Expect(bench.EncodeMask(m)).To(Equal("m1,2,2,2,0,1,2,1"))
		Expect(bench.EncodeMask(track.NewMask(3, 3))).To(Equal("m0,0,0,0"))
	})

	It("formats rectangles", func() {
		r := bench.Result{Rect: track.Box(1.5, 2, 30, 40)}
		Expect(r.String()).To(Equal("1.5,2,30,40"))
	})
})

var _ = Describe("SequenceHarness", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(name, body string) {
		p := filepath.Join(dir, name)
		Expect(os.MkdirAll(filepath.Dir(p), 0755)).To(Succeed())
		Expect(os.WriteFile(p, []byte(body), 0644)).To(Succeed())
	}

	It("plays sorted images from color/ and records reports", func() {
		write("groundtruth.txt", "10,10,20,10\n11,10,20,10\n")
		for _, n := range []string{"00000003.jpg", "00000001.jpg", "00000002.jpg"} {
			write(filepath.Join("color", n), "")
		}
		write(filepath.Join("color", "notes.txt"), "")

		seq, err := bench.OpenSequence(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(seq.Len()).To(Equal(3))

		tr := &driftTracker{}
		adapter := &bench.PolygonAdapter{Session: newSession(tr), Loader: frameLoader}
		Expect(adapter.Run(context.Background(), seq)).To(Succeed())

		Expect(tr.inits[0].Boxes[1]).To(Equal(track.Box(10, 10, 20, 10)))
		Expect(seq.Reports).To(HaveLen(2))
		Expect(seq.Reports[1].Rect.X).To(Equal(12.0))

		seq.Rewind()
		p, _ := seq.Frame()
		Expect(p).To(Equal(filepath.Join(dir, "color", "00000001.jpg")))
	})

	It("prefers images.txt", func() {
		write("groundtruth.txt", "0,0,10,0,10,10,0,10")
		write("images.txt", "b.png\na.png\n")

		seq, err := bench.OpenSequence(dir)
		Expect(err).NotTo(HaveOccurred())
		r, _ := seq.Region()
		Expect(r.Kind).To(Equal(bench.RegionPolygon))
		p, _ := seq.Frame()
		Expect(p).To(Equal(filepath.Join(dir, "b.png")))
	})

	It("ends the sequence with a protocol error on an oversized mask", func() {
		write("groundtruth.txt", "m0,0,3037000500,3037000500,1\n")
		write(filepath.Join("color", "00000001.jpg"), "")
		_, err := bench.OpenSequence(dir)
		Expect(err).To(MatchError(bench.ErrProtocol))
	})

	It("fails on a directory without frames", func() {
		write("groundtruth.txt", "1,2,3,4")
		_, err := bench.OpenSequence(dir)
		Expect(err).To(MatchError(bench.ErrProtocol))
	})

	It("fails without ground truth", func() {
		_, err := bench.OpenSequence(dir)
		Expect(err).To(HaveOccurred())
		Expect(fmt.Sprint(err)).To(ContainSubstring("groundtruth.txt"))
	})
})
