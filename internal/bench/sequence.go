package bench

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/san-kum/servotrack/internal/track"
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp"}

// SequenceHarness replays a sequence directory laid out the VOT way:
// groundtruth.txt holds the initial region on its first line, and frames
// come from images.txt or the sorted image files in the directory (or its
// color/ subdirectory). Reports are kept in memory.
type SequenceHarness struct {
	Name    string
	Dir     string
	Reports []Result

	region Region
	frames []string
	next   int
}

func OpenSequence(dir string) (*SequenceHarness, error) {
	region, err := readRegion(filepath.Join(dir, "groundtruth.txt"))
	if err != nil {
		return nil, err
	}
	frames, err := listFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", ErrProtocol, dir)
	}
	return &SequenceHarness{
		Name:   filepath.Base(dir),
		Dir:    dir,
		region: region,
		frames: frames,
	}, nil
}

func (s *SequenceHarness) Region() (Region, error) { return s.region, nil }

func (s *SequenceHarness) Frame() (string, error) {
	if s.next >= len(s.frames) {
		return "", nil
	}
	p := s.frames[s.next]
	s.next++
	return p, nil
}

func (s *SequenceHarness) Report(r Result) error {
	s.Reports = append(s.Reports, r)
	return nil
}

func (s *SequenceHarness) Len() int { return len(s.frames) }

// Rewind restarts the sequence and drops earlier reports.
func (s *SequenceHarness) Rewind() {
	s.next = 0
	s.Reports = nil
}

// ParseRegion reads one annotation line: 4 numbers are a rectangle, 6 or
// more an x,y polygon, and a leading 'm' a run-length mask.
func ParseRegion(line string) (Region, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "m") {
		m, off, err := ParseMask(line)
		if err != nil {
			return Region{}, err
		}
		return Region{Kind: RegionMask, Mask: m, MaskOffset: off}, nil
	}

	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Region{}, fmt.Errorf("%w: region value %q", ErrProtocol, f)
		}
		vals[i] = v
	}

	switch {
	case len(vals) == 4:
		box := track.Box(vals[0], vals[1], vals[2], vals[3])
		if !box.Valid() {
			return Region{}, fmt.Errorf("%w: rectangle %v", ErrProtocol, vals)
		}
		return Region{Kind: RegionRect, Rect: box}, nil
	case len(vals) >= 6 && len(vals)%2 == 0:
		poly := make([]Point, 0, len(vals)/2)
		for i := 0; i < len(vals); i += 2 {
			poly = append(poly, Point{X: vals[i], Y: vals[i+1]})
		}
		return Region{Kind: RegionPolygon, Polygon: poly}, nil
	default:
		return Region{}, fmt.Errorf("%w: region with %d values", ErrProtocol, len(vals))
	}
}

func readRegion(path string) (Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return Region{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return ParseRegion(line)
		}
	}
	if err := sc.Err(); err != nil {
		return Region{}, err
	}
	return Region{}, fmt.Errorf("%w: %s is empty", ErrProtocol, path)
}

func listFrames(dir string) ([]string, error) {
	list := filepath.Join(dir, "images.txt")
	if data, err := os.ReadFile(list); err == nil {
		var frames []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !filepath.IsAbs(line) {
				line = filepath.Join(dir, line)
			}
			frames = append(frames, line)
		}
		return frames, nil
	}

	imgDir := dir
	if st, err := os.Stat(filepath.Join(dir, "color")); err == nil && st.IsDir() {
		imgDir = filepath.Join(dir, "color")
	}
	entries, err := os.ReadDir(imgDir)
	if err != nil {
		return nil, err
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		frames = append(frames, filepath.Join(imgDir, e.Name()))
	}
	slices.Sort(frames)
	return frames, nil
}
