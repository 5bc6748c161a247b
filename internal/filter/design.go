package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// ButterworthQ is the quality factor of a second-order Butterworth section.
const ButterworthQ = 1 / math.Sqrt2

// maxCutoffRatio keeps cutoffs safely below Nyquist.
const maxCutoffRatio = 0.45

// ErrInvalidBand is returned when a band-pass cannot be designed.
var ErrInvalidBand = errors.New("invalid filter band")

// BandPassSections is the section layout BandPass designs: a highpass
// followed by a lowpass.
type BandPassSections [2]biquad.Coefficients

// BandPass designs a 4th-order band-pass into dst as a highpass section at
// low followed by a lowpass section at high. q is the Q of both sections;
// q <= 0 means plain Butterworth. dst is left untouched on error.
func BandPass(dst *BandPassSections, low, high, q, sampleRate float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: sample rate %v", ErrInvalidBand, sampleRate)
	}
	if !(low > 0) || !(high > low) {
		return fmt.Errorf("%w: %.2f-%.2f Hz", ErrInvalidBand, low, high)
	}
	if q <= 0 {
		q = ButterworthQ
	}

	limit := sampleRate * maxCutoffRatio
	if low >= limit {
		return fmt.Errorf("%w: low edge %.2f Hz above %.2f Hz", ErrInvalidBand, low, limit)
	}
	if high > limit {
		high = limit
	}

	dst[0] = design.Highpass(low, q, sampleRate)
	dst[1] = design.Lowpass(high, q, sampleRate)
	return nil
}
