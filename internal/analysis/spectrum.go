package analysis

import (
	"errors"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

var ErrShortSignal = errors.New("analysis: signal too short")

// Spectrum returns amplitudes and their frequencies in Hz for a signal
// sampled at rate Hz. The mean is removed first.
func Spectrum(signal []float64, rate float64) (freqs, amps []float64, err error) {
	n := len(signal)
	if n < 4 {
		return nil, nil, ErrShortSignal
	}
	if !(rate > 0) {
		return nil, nil, errors.New("analysis: sample rate must be positive")
	}

	mean := stat.Mean(signal, nil)
	centred := make([]float64, n)
	for i, v := range signal {
		centred[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centred)

	freqs = make([]float64, len(coeff))
	amps = make([]float64, len(coeff))
	for i, c := range coeff {
		freqs[i] = fft.Freq(i) * rate
		amps[i] = 2 * cmplx.Abs(c) / float64(n)
	}
	return freqs, amps, nil
}

// Dominant returns the frequency and amplitude of the strongest component
// above DC.
func Dominant(signal []float64, rate float64) (hz, amp float64, err error) {
	freqs, amps, err := Spectrum(signal, rate)
	if err != nil {
		return 0, 0, err
	}
	best := 1
	for i := 2; i < len(amps); i++ {
		if amps[i] > amps[best] {
			best = i
		}
	}
	return freqs[best], amps[best], nil
}

// Rate estimates a sample rate from per-sample intervals in seconds.
func Rate(dts []float64) float64 {
	if len(dts) == 0 {
		return 0
	}
	m := stat.Mean(dts, nil)
	if m <= 0 {
		return 0
	}
	return 1 / m
}
