package filter

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// FilterCascade is an ordered chain of biquad sections processed in series.
type FilterCascade struct {
	sections []*BiquadFilter
}

// NewFilterCascade builds a cascade with one section per coefficient set.
func NewFilterCascade(coeffs []biquad.Coefficients) *FilterCascade {
	c := &FilterCascade{sections: make([]*BiquadFilter, len(coeffs))}
	for i := range coeffs {
		c.sections[i] = NewBiquadFilter(coeffs[i])
	}
	return c
}

// ProcessSample runs x through every section in order.
func (c *FilterCascade) ProcessSample(x float64) float64 {
	for _, s := range c.sections {
		x = s.ProcessSample(x)
	}
	return x
}

// ProcessBlock filters buf in place through the whole cascade.
func (c *FilterCascade) ProcessBlock(buf []float64) {
	for _, s := range c.sections {
		s.ProcessBlock(buf)
	}
}

// ProcessBlockTo filters src into dst without touching src.
// dst must be at least as long as src.
func (c *FilterCascade) ProcessBlockTo(dst, src []float64) {
	copy(dst, src)
	c.ProcessBlock(dst[:len(src)])
}

// SetTargets retargets each section. If the section count changes the cascade
// is rebuilt with the new coefficients and a cleared delay line.
func (c *FilterCascade) SetTargets(coeffs []biquad.Coefficients) {
	if len(coeffs) != len(c.sections) {
		c.rebuild(coeffs)
		return
	}
	for i, s := range c.sections {
		s.SetTarget(coeffs[i])
	}
}

// Snap replaces current and target coefficients of every section, keeping
// the delay-line state.
func (c *FilterCascade) Snap(coeffs []biquad.Coefficients) {
	if len(coeffs) != len(c.sections) {
		c.rebuild(coeffs)
		return
	}
	for i, s := range c.sections {
		s.Snap(coeffs[i])
	}
}

// Interpolate glides every section toward its target by alpha.
func (c *FilterCascade) Interpolate(alpha float64) {
	for _, s := range c.sections {
		s.Interpolate(alpha)
	}
}

// Reset clears the delay line of every section.
func (c *FilterCascade) Reset() {
	for _, s := range c.sections {
		s.Reset()
	}
}

// NumSections returns the number of biquad sections.
func (c *FilterCascade) NumSections() int {
	return len(c.sections)
}

// Section returns the i-th section.
func (c *FilterCascade) Section(i int) *BiquadFilter {
	return c.sections[i]
}

func (c *FilterCascade) rebuild(coeffs []biquad.Coefficients) {
	c.sections = make([]*BiquadFilter, len(coeffs))
	for i := range coeffs {
		c.sections[i] = NewBiquadFilter(coeffs[i])
	}
}
