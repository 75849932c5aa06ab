package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type ExportData struct {
	Run     RunMetadata  `json:"run"`
	Samples []sampleJSON `json:"samples"`
}

type sampleJSON struct {
	Seq         int64      `json:"seq"`
	Object      int        `json:"object"`
	Box         [4]float64 `json:"box"`
	Error       [2]float64 `json:"error"`
	Angle       [2]float64 `json:"angle"`
	Pan         int        `json:"pan"`
	Tilt        int        `json:"tilt"`
	Transmitted bool       `json:"transmitted"`
	Dt          float64    `json:"dt"`
}

// Export writes a stored run to w as "csv" (the sample table) or "json"
// (metadata plus samples).
func (s *Store) Export(runID, format string, w io.Writer) error {
	switch format {
	case "csv":
		f, err := os.Open(s.SamplesPath(runID))
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	case "json":
		meta, err := s.Load(runID)
		if err != nil {
			return err
		}
		samples, err := s.LoadSamples(runID)
		if err != nil {
			return err
		}
		data := ExportData{Run: *meta, Samples: make([]sampleJSON, len(samples))}
		for i, x := range samples {
			data.Samples[i] = sampleJSON{
				Seq:         x.Seq,
				Object:      int(x.Object),
				Box:         [4]float64{x.Box.X, x.Box.Y, x.Box.Width, x.Box.Height},
				Error:       [2]float64{x.ErrX, x.ErrY},
				Angle:       [2]float64{x.AngleX, x.AngleY},
				Pan:         x.Pan,
				Tilt:        x.Tilt,
				Transmitted: x.Transmitted,
				Dt:          x.Dt,
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	default:
		return fmt.Errorf("storage: unknown export format %q", format)
	}
}
