package filter

import (
	"fmt"
	"math"
)

// TrackingConfig controls the adaptive tracking filter.
type TrackingConfig struct {
	MinFreq float64 // Fixed stage lower edge (Hz)
	MaxFreq float64 // Fixed stage upper edge (Hz)
	QScale  float64 // Multiplier on the Butterworth Q of the tracking stage

	EMAAlpha       float64 // Smoothing of the tracked fundamental
	FastFactor     float64 // EMA speed-up when confidence is high
	FastConfidence float64 // Confidence above which FastFactor applies
	CoeffAlpha     float64 // Per-update glide of coefficients toward target
	MinConfidence  float64 // Below this an update engages bypass

	LowSemitones float64 // Tracking band extends this far below f0
	HighRatio    float64 // Tracking band extends up to f0 * HighRatio

	CoarseWindow int // Samples of the stage 1 output used for the coarse estimate
	CoarseStride int // Decimation of the coarse estimate
}

// DefaultTrackingConfig returns the tracking configuration for a
// chromatic 50-2000 Hz range in solo mode.
func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		MinFreq:        50,
		MaxFreq:        2000,
		QScale:         1.0,
		EMAAlpha:       0.2,
		FastFactor:     1.5,
		FastConfidence: 0.8,
		CoeffAlpha:     0.15,
		MinConfidence:  0.3,
		LowSemitones:   5,
		HighRatio:      2.5,
		CoarseWindow:   2048,
		CoarseStride:   2,
	}
}

// coarse NSDF acceptance
const (
	coarsePeakRatio = 0.9
	coarseMinPeak   = 0.5
)

// AdaptiveTrackingFilter is a two-stage band-pass tracker.
//
// Stage 1 is fixed to the instrument range and always runs; it feeds a cheap
// stride-decimated NSDF for a coarse pitch. Stage 2 is centred on an EMA of
// the confirmed fundamental and spans [f0 - LowSemitones, f0 * HighRatio].
// Both stages filter every frame so their delay lines stay continuous.
type AdaptiveTrackingFilter struct {
	cfg        TrackingConfig
	sampleRate float64

	stage1 *FilterCascade
	stage2 *FilterCascade
	design BandPassSections

	tracking bool // stage2 holds a designed tracking band
	ema      float64
	bypassed bool

	stage1Out []float64
	stage2Out []float64
	decimated []float64
	nsdf      []float64
}

// NewAdaptiveTrackingFilter builds the fixed stage for sampleRate and
// allocates working buffers for frames of up to frameSize samples.
func NewAdaptiveTrackingFilter(cfg TrackingConfig, sampleRate float64, frameSize int) (*AdaptiveTrackingFilter, error) {
	if cfg.CoarseStride < 1 {
		cfg.CoarseStride = 1
	}
	if cfg.CoarseWindow <= 0 {
		cfg.CoarseWindow = frameSize
	}

	f := &AdaptiveTrackingFilter{cfg: cfg, bypassed: true}
	if err := f.Configure(sampleRate, frameSize); err != nil {
		return nil, err
	}
	return f, nil
}

// Configure rebuilds the fixed stage for a new sample rate or frame size and
// drops the tracking stage.
func (f *AdaptiveTrackingFilter) Configure(sampleRate float64, frameSize int) error {
	var coeffs BandPassSections
	if err := BandPass(&coeffs, f.cfg.MinFreq, f.cfg.MaxFreq, 0, sampleRate); err != nil {
		return fmt.Errorf("fixed stage: %w", err)
	}

	f.sampleRate = sampleRate
	f.stage1 = NewFilterCascade(coeffs[:])
	f.stage2 = NewFilterCascade(coeffs[:])
	f.tracking = false
	f.ema = 0
	f.bypassed = true
	f.resize(frameSize)
	return nil
}

// SetBand changes the fixed stage range, e.g. on an instrument change.
func (f *AdaptiveTrackingFilter) SetBand(minFreq, maxFreq float64) error {
	prevMin, prevMax := f.cfg.MinFreq, f.cfg.MaxFreq
	f.cfg.MinFreq, f.cfg.MaxFreq = minFreq, maxFreq

	if err := f.Configure(f.sampleRate, len(f.stage1Out)); err != nil {
		f.cfg.MinFreq, f.cfg.MaxFreq = prevMin, prevMax
		return err
	}
	return nil
}

// SetQScale changes the tracking stage Q multiplier. It takes effect on the
// next confident update.
func (f *AdaptiveTrackingFilter) SetQScale(q float64) {
	if q <= 0 {
		q = 1
	}
	f.cfg.QScale = q
}

// Reset clears filter state and the tracked frequency.
func (f *AdaptiveTrackingFilter) Reset() {
	f.stage1.Reset()
	f.stage2.Reset()
	f.tracking = false
	f.ema = 0
	f.bypassed = true
}

// Bypassed reports whether the tracking stage is currently disengaged.
func (f *AdaptiveTrackingFilter) Bypassed() bool { return f.bypassed }

// TrackedFrequency returns the smoothed fundamental the tracking stage is
// centred on, or 0 before the first confident update.
func (f *AdaptiveTrackingFilter) TrackedFrequency() float64 { return f.ema }

// UpdateCoefficients feeds a confirmed pitch into the tracker. Updates with
// confidence below MinConfidence or an invalid frequency engage bypass and
// leave the coefficients alone. It reports whether the tracking stage is
// engaged afterwards.
func (f *AdaptiveTrackingFilter) UpdateCoefficients(targetFreq, sampleRate, confidence float64) bool {
	if confidence < f.cfg.MinConfidence || !(targetFreq > 0) || math.IsInf(targetFreq, 0) {
		f.bypassed = true
		return false
	}

	if sampleRate != f.sampleRate {
		if err := f.Configure(sampleRate, len(f.stage1Out)); err != nil {
			f.bypassed = true
			return false
		}
	}

	reacquire := f.ema <= 0 || !f.inBand(targetFreq)
	if reacquire {
		f.ema = targetFreq
	} else {
		alpha := f.cfg.EMAAlpha
		if confidence > f.cfg.FastConfidence {
			alpha *= f.cfg.FastFactor
		}
		f.ema += alpha * (targetFreq - f.ema)
	}

	low, high := f.band(f.ema)
	if err := BandPass(&f.design, low, high, ButterworthQ*f.cfg.QScale, f.sampleRate); err != nil {
		f.bypassed = true
		return false
	}

	switch {
	case !f.tracking:
		f.stage2.Snap(f.design[:])
		f.stage2.Reset()
		f.tracking = true
	case reacquire:
		f.stage2.Snap(f.design[:])
	default:
		f.stage2.SetTargets(f.design[:])
		f.stage2.Interpolate(f.cfg.CoeffAlpha)
	}

	f.bypassed = false
	return true
}

// ProcessStage1 filters in through the fixed stage into out.
func (f *AdaptiveTrackingFilter) ProcessStage1(in, out []float64) {
	f.stage1.ProcessBlockTo(out, in)
}

// ProcessStage2 filters in through the tracking stage into out. Before the
// first confident update there is no tracking stage; in is copied and false
// is returned.
func (f *AdaptiveTrackingFilter) ProcessStage2(in, out []float64) bool {
	if !f.tracking {
		copy(out, in)
		return false
	}
	f.stage2.ProcessBlockTo(out, in)
	return true
}

// ProcessFullPipeline runs both stages over in and writes the selected output
// to out (which may alias in). The stage 2 output is selected when the
// tracker is engaged and the coarse estimate is valid. It returns the coarse
// frequency and its confidence (0, 0 when none was found).
func (f *AdaptiveTrackingFilter) ProcessFullPipeline(in, out []float64) (float64, float64) {
	if len(in) > len(f.stage1Out) {
		f.resize(len(in))
	}
	s1 := f.stage1Out[:len(in)]
	s2 := f.stage2Out[:len(in)]

	f.ProcessStage1(in, s1)
	freq, conf := f.CoarseEstimate(s1)
	engaged := f.ProcessStage2(in, s2)

	if engaged && !f.bypassed && freq > 0 && conf >= f.cfg.MinConfidence {
		copy(out, s2)
	} else {
		copy(out, s1)
	}
	return freq, conf
}

// CoarseEstimate runs a stride-decimated NSDF over the head of buf and
// returns the first strong key maximum as a frequency.
func (f *AdaptiveTrackingFilter) CoarseEstimate(buf []float64) (float64, float64) {
	stride := f.cfg.CoarseStride
	window := min(f.cfg.CoarseWindow, len(buf))
	n := window / stride
	if n < 8 {
		return 0, 0
	}

	d := f.decimated[:n]
	for i := range d {
		d[i] = buf[i*stride]
	}

	rate := f.sampleRate / float64(stride)
	minLag := max(2, int(rate/f.cfg.MaxFreq))
	maxLag := min(int(math.Ceil(rate/f.cfg.MinFreq)), n/2-1)
	if maxLag <= minLag+1 {
		return 0, 0
	}

	ns := f.nsdf[:maxLag+2]
	for tau := range ns {
		var acf, m float64
		for j := 0; j+tau < n; j++ {
			a, b := d[j], d[j+tau]
			acf += a * b
			m += a*a + b*b
		}
		if m > 0 {
			ns[tau] = 2 * acf / m
		} else {
			ns[tau] = 0
		}
	}

	best, value := firstKeyMaximum(ns, minLag, maxLag, coarsePeakRatio)
	if best < 0 || value < coarseMinPeak {
		return 0, 0
	}

	lag := parabolicPeak(ns, best)
	return rate / lag, value
}

func (f *AdaptiveTrackingFilter) band(f0 float64) (float64, float64) {
	return f0 * math.Pow(2, -f.cfg.LowSemitones/12), f0 * f.cfg.HighRatio
}

func (f *AdaptiveTrackingFilter) inBand(freq float64) bool {
	low, high := f.band(f.ema)
	return freq >= low && freq <= high
}

func (f *AdaptiveTrackingFilter) resize(frameSize int) {
	if frameSize <= 0 {
		frameSize = f.cfg.CoarseWindow
	}
	f.stage1Out = make([]float64, frameSize)
	f.stage2Out = make([]float64, frameSize)

	n := max(f.cfg.CoarseWindow, frameSize) / f.cfg.CoarseStride
	f.decimated = make([]float64, n)
	f.nsdf = make([]float64, n/2+2)
}

// firstKeyMaximum returns the first key maximum (highest point of a positive
// region after the first negative-going zero crossing) whose value reaches
// ratio times the largest key maximum in [minLag, maxLag].
func firstKeyMaximum(ns []float64, minLag, maxLag int, ratio float64) (int, float64) {
	tau := 1
	for tau <= maxLag && ns[tau] > 0 {
		tau++
	}

	var peaks [64]int
	count := 0
	globalMax := 0.0

	for tau <= maxLag {
		for tau <= maxLag && ns[tau] <= 0 {
			tau++
		}
		bestIdx, bestVal := -1, 0.0
		for tau <= maxLag && ns[tau] > 0 {
			if ns[tau] > bestVal {
				bestIdx, bestVal = tau, ns[tau]
			}
			tau++
		}
		if bestIdx >= minLag && count < len(peaks) {
			peaks[count] = bestIdx
			count++
			globalMax = max(globalMax, bestVal)
		}
	}

	for _, p := range peaks[:count] {
		if ns[p] >= ratio*globalMax {
			return p, ns[p]
		}
	}
	return -1, 0
}

// parabolicPeak refines an integer extremum position using its neighbours.
func parabolicPeak(data []float64, i int) float64 {
	if i <= 0 || i >= len(data)-1 {
		return float64(i)
	}
	a, b, c := data[i-1], data[i], data[i+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(i)
	}
	return float64(i) + 0.5*(a-c)/den
}
