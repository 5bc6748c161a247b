// Package filter provides the IIR building blocks of the pitch pipeline: a
// single biquad section whose coefficients glide toward a target, cascades of
// those sections, and the two-stage adaptive tracking band-pass.
package filter

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// BiquadFilter is one second-order IIR section.
//
// It keeps two coefficient sets: the ones currently filtering and a target.
// Interpolate moves the current set toward the target so that retuning does
// not produce coefficient discontinuities (zipper noise). The delay line is
// never cleared by a retune.
type BiquadFilter struct {
	section *biquad.Section
	target  biquad.Coefficients
}

// NewBiquadFilter returns a section that starts filtering with c.
func NewBiquadFilter(c biquad.Coefficients) *BiquadFilter {
	return &BiquadFilter{
		section: biquad.NewSection(c),
		target:  c,
	}
}

// ProcessSample filters one sample.
func (f *BiquadFilter) ProcessSample(x float64) float64 {
	return f.section.ProcessSample(x)
}

// ProcessBlock filters buf in place.
func (f *BiquadFilter) ProcessBlock(buf []float64) {
	for i, x := range buf {
		buf[i] = f.section.ProcessSample(x)
	}
}

// Coefficients returns the coefficients currently in use.
func (f *BiquadFilter) Coefficients() biquad.Coefficients {
	return f.section.Coefficients
}

// Target returns the coefficients the filter is gliding toward.
func (f *BiquadFilter) Target() biquad.Coefficients {
	return f.target
}

// SetTarget sets the coefficients Interpolate moves toward.
func (f *BiquadFilter) SetTarget(c biquad.Coefficients) {
	f.target = c
}

// Snap replaces both the current and target coefficients.
func (f *BiquadFilter) Snap(c biquad.Coefficients) {
	f.section.Coefficients = c
	f.target = c
}

// Interpolate moves the current coefficients a fraction alpha of the way
// toward the target. alpha is clamped to [0, 1].
func (f *BiquadFilter) Interpolate(alpha float64) {
	if alpha <= 0 {
		return
	}
	if alpha > 1 {
		alpha = 1
	}

	c := &f.section.Coefficients
	c.B0 += alpha * (f.target.B0 - c.B0)
	c.B1 += alpha * (f.target.B1 - c.B1)
	c.B2 += alpha * (f.target.B2 - c.B2)
	c.A1 += alpha * (f.target.A1 - c.A1)
	c.A2 += alpha * (f.target.A2 - c.A2)
}

// Reset clears the delay line.
func (f *BiquadFilter) Reset() {
	f.section.Reset()
}
