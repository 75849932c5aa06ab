package storage

import "github.com/san-kum/servotrack/internal/loop"

// Recorder buffers samples for a later Save. It implements loop.Observer
// and must be used from the loop goroutine.
type Recorder struct {
	samples []loop.Sample
	limit   int
}

// NewRecorder keeps at most limit samples; zero means no limit.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) OnSample(s loop.Sample) {
	if r.limit > 0 && len(r.samples) >= r.limit {
		return
	}
	r.samples = append(r.samples, s)
}

func (r *Recorder) Samples() []loop.Sample { return r.samples }
