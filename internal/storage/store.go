package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/servotrack/internal/loop"
	"github.com/san-kum/servotrack/internal/track"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

var ErrMalformedRow = errors.New("storage: malformed sample row")

var sampleHeader = []string{
	"seq", "time", "object",
	"x", "y", "w", "h",
	"err_x", "err_y", "angle_x", "angle_y",
	"pan", "tilt", "transmitted", "dt",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo is the caller-supplied description of a tracking run.
type RunInfo struct {
	Source  string             `json:"source"`
	Port    string             `json:"port"`
	Mode    string             `json:"mode"`
	Tracker string             `json:"tracker"`
	Params  map[string]float64 `json:"params"`
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RunInfo

	Frames          int                `json:"frames"`
	Samples         int                `json:"samples"`
	Transmissions   int                `json:"transmissions"`
	TrackErrors     int                `json:"track_errors"`
	ActuationErrors int                `json:"actuation_errors"`
	Resets          int                `json:"resets"`
	Duration        float64            `json:"duration"`
	Metrics         map[string]float64 `json:"metrics"`
}

// Save writes one run directory holding metadata.json and samples.csv and
// returns the new run id.
func (s *Store) Save(info RunInfo, result *loop.Result, samples []loop.Sample) (string, error) {
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Timestamp: time.Now(),
		RunInfo:   info,
	}
	if result != nil {
		meta.Frames = result.Frames
		meta.Samples = result.Samples
		meta.Transmissions = result.Transmissions
		meta.TrackErrors = result.TrackErrors
		meta.ActuationErrors = result.ActuationErrors
		meta.Resets = result.Resets
		meta.Duration = result.Duration.Seconds()
		meta.Metrics = result.Metrics
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteSamples(csvFile, samples); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]loop.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadSamples(file)
}

// SamplesPath is where a run's sample table lives.
func (s *Store) SamplesPath(runID string) string {
	return filepath.Join(s.baseDir, runID, samplesFile)
}

func WriteSamples(w io.Writer, samples []loop.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sampleHeader); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, s := range samples {
		row := []string{
			strconv.FormatInt(s.Seq, 10),
			s.Time.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(int(s.Object)),
			f(s.Box.X), f(s.Box.Y), f(s.Box.Width), f(s.Box.Height),
			f(s.ErrX), f(s.ErrY), f(s.AngleX), f(s.AngleY),
			strconv.Itoa(s.Pan), strconv.Itoa(s.Tilt),
			strconv.FormatBool(s.Transmitted),
			f(s.Dt),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadSamples(r io.Reader) ([]loop.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(sampleHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []loop.Sample{}, nil
	}

	samples := make([]loop.Sample, 0, len(records)-1)
	for i, rec := range records[1:] {
		s, err := parseSample(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, i+2, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func parseSample(rec []string) (loop.Sample, error) {
	var (
		s   loop.Sample
		err error
	)
	if s.Seq, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return s, err
	}
	if s.Time, err = time.Parse(time.RFC3339Nano, rec[1]); err != nil {
		return s, err
	}
	obj, err := strconv.Atoi(rec[2])
	if err != nil {
		return s, err
	}
	s.Object = track.ObjectID(obj)

	floats := make([]float64, 8)
	for i := range floats {
		if floats[i], err = strconv.ParseFloat(rec[3+i], 64); err != nil {
			return s, err
		}
	}
	s.Box = track.Box(floats[0], floats[1], floats[2], floats[3])
	s.ErrX, s.ErrY, s.AngleX, s.AngleY = floats[4], floats[5], floats[6], floats[7]

	if s.Pan, err = strconv.Atoi(rec[11]); err != nil {
		return s, err
	}
	if s.Tilt, err = strconv.Atoi(rec[12]); err != nil {
		return s, err
	}
	if s.Transmitted, err = strconv.ParseBool(rec[13]); err != nil {
		return s, err
	}
	if s.Dt, err = strconv.ParseFloat(rec[14], 64); err != nil {
		return s, err
	}
	return s, nil
}
