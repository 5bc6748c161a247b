// Package spectrum computes magnitude spectra of audio frames, locates
// spectral peaks and learns a noise floor for spectral subtraction.
package spectrum

import (
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Analyzer turns a frame of samples into a linear magnitude spectrum of
// len(frame)/2 bins. Bin k is centred on k * sampleRate / len(frame).
//
// The Hann window, FFT plan and working buffers are reused between calls, so
// Magnitude does not allocate for a fixed frame length. Sizes the plan cannot
// handle fall back to go-dsp's FFT, which allocates. The returned slice is
// owned by the Analyzer and overwritten by the next call.
type Analyzer struct {
	size   int
	window []float64
	frame  []float64
	mag    []float64

	plan *algofft.Plan[complex128]
	bins []complex128
}

// NewAnalyzer returns an Analyzer for frames of size samples.
func NewAnalyzer(size int) *Analyzer {
	a := &Analyzer{}
	a.resize(size)
	return a
}

// Size returns the frame length the Analyzer is configured for.
func (a *Analyzer) Size() int { return a.size }

// Magnitude windows samples and returns their magnitude spectrum scaled so a
// full-scale sine of amplitude A peaks near A/2.
func (a *Analyzer) Magnitude(samples []float32) []float64 {
	if len(samples) != a.size {
		a.resize(len(samples))
	}
	if a.size < 2 {
		return a.mag
	}

	scale := 2 / float64(a.size)

	if a.plan != nil {
		for i, s := range samples {
			a.bins[i] = complex(float64(s)*a.window[i], 0)
		}
		if err := a.plan.Forward(a.bins, a.bins); err == nil {
			for k := range a.mag {
				a.mag[k] = cmplx.Abs(a.bins[k]) * scale
			}
			return a.mag
		}
	}

	for i, s := range samples {
		a.frame[i] = float64(s) * a.window[i]
	}
	spectrum := fft.FFTReal(a.frame)
	for k := range a.mag {
		a.mag[k] = cmplx.Abs(spectrum[k]) * scale
	}
	return a.mag
}

func (a *Analyzer) resize(size int) {
	if size < 0 {
		size = 0
	}
	a.size = size
	a.window = window.Hann(size)
	a.frame = make([]float64, size)
	a.mag = make([]float64, size/2)

	a.plan, a.bins = nil, nil
	if size >= 2 {
		if plan, err := algofft.NewPlan64(size); err == nil {
			a.plan = plan
			a.bins = make([]complex128, size)
		}
	}
}

// BinWidth returns the width in Hz of one bin of a spectrum with bins
// magnitudes computed at sampleRate.
func BinWidth(sampleRate float64, bins int) float64 {
	if bins <= 0 {
		return 0
	}
	return sampleRate / float64(2*bins)
}
