package pitch

import (
	"math"

	"github.com/0xlemi/tunesuite/internal/spectrum"
)

// AlgorithmHarmonic names candidates produced by the harmonic matcher.
const AlgorithmHarmonic = "harmonic"

// HarmonicConfig controls the spectral harmonic-series matcher.
type HarmonicConfig struct {
	RelativeThreshold float64 // Peaks must exceed this fraction of the strongest bin
	MedianFactor      float64 // and this multiple of the median magnitude
	MaxPeaks          int     // Strongest peaks considered
	MaxDivisor        int     // Hypotheses f0 = strongest/n for n = 1..MaxDivisor
	MaxHarmonics      int     // Highest harmonic expected when counting gaps
	Tolerance         float64 // Relative distance to an integer harmonic that counts as a match
	MismatchPenalty   float64 // Score weight of peaks that are no harmonic of f0
	MissingPenalty    float64 // Score cost per expected harmonic with no peak, times the strongest magnitude
	MinConfidence     float64 // Candidates below this are dropped
	Weight            float64 // Fusion weight
}

// DefaultHarmonicConfig returns the standard matcher settings.
func DefaultHarmonicConfig() HarmonicConfig {
	return HarmonicConfig{
		RelativeThreshold: 0.1,
		MedianFactor:      6,
		MaxPeaks:          8,
		MaxDivisor:        5,
		MaxHarmonics:      8,
		Tolerance:         0.06,
		MismatchPenalty:   0.5,
		MissingPenalty:    0.2,
		MinConfidence:     0.3,
		Weight:            0.8,
	}
}

// mainLobeBins is the half width of a Hann main lobe counted as peak energy.
const mainLobeBins = 2

// Harmonic infers the fundamental from the spacing of spectral peaks. It
// recovers a weak or missing fundamental when its harmonics are present.
type Harmonic struct {
	cfg HarmonicConfig

	minFreq float64
	maxFreq float64

	peaks   []spectrum.Peak
	scratch []float64
}

// NewHarmonic returns a harmonic matcher.
func NewHarmonic(cfg HarmonicConfig) *Harmonic {
	def := DefaultHarmonicConfig()
	if cfg.MaxPeaks <= 0 || cfg.MaxPeaks > 64 {
		cfg.MaxPeaks = def.MaxPeaks
	}
	if cfg.MaxDivisor <= 0 {
		cfg.MaxDivisor = def.MaxDivisor
	}
	if cfg.MaxHarmonics <= 0 || cfg.MaxHarmonics > 63 {
		cfg.MaxHarmonics = def.MaxHarmonics
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.Weight <= 0 {
		cfg.Weight = def.Weight
	}
	return &Harmonic{cfg: cfg, minFreq: 50, maxFreq: 2000}
}

func (h *Harmonic) Name() string { return AlgorithmHarmonic }

func (h *Harmonic) Configure(frameSize int, sampleRate, minFreq, maxFreq float64) {
	h.minFreq = minFreq
	h.maxFreq = maxFreq

	bins := frameSize / 2
	h.peaks = make([]spectrum.Peak, 0, bins/2+1)
	h.scratch = make([]float64, bins)
}

// Analyze needs in.Spectrum; without one it finds nothing.
func (h *Harmonic) Analyze(in Input) Candidate {
	c := Candidate{Algorithm: AlgorithmHarmonic, Weight: h.cfg.Weight}

	mag := in.Spectrum
	if len(mag) < 4 || in.SampleRate <= 0 {
		return c
	}

	binHz := spectrum.BinWidth(in.SampleRate, len(mag))
	upper := h.maxFreq * float64(h.cfg.MaxHarmonics)
	lo := max(1, int(h.minFreq/binHz))
	hi := min(len(mag)-2, int(upper/binHz)+1)
	if hi <= lo {
		return c
	}

	band := mag[lo : hi+1]
	strongest, energy := 0.0, 0.0
	for _, m := range band {
		strongest = max(strongest, m)
		energy += m * m
	}
	if strongest <= 0 {
		return c
	}

	var med float64
	med, h.scratch = median(band, h.scratch)
	threshold := max(h.cfg.RelativeThreshold*strongest, h.cfg.MedianFactor*med)

	peaks := spectrum.FindPeaks(h.peaks[:0], mag, binHz, h.minFreq, upper, threshold)
	h.peaks = peaks
	if len(peaks) == 0 {
		return c
	}
	spectrum.SortByMagnitude(peaks)
	if len(peaks) > h.cfg.MaxPeaks {
		peaks = peaks[:h.cfg.MaxPeaks]
	}

	top := 0.0
	for _, p := range peaks {
		top = max(top, p.Frequency)
	}

	lead := peaks[0]
	bestScore := math.Inf(-1)
	bestFreq := 0.0
	var bestMatched uint64

	for n := 1; n <= h.cfg.MaxDivisor; n++ {
		f0 := lead.Frequency / float64(n)
		if f0 < h.minFreq || f0 > h.maxFreq {
			continue
		}

		var (
			score, weightSum, freqSum float64
			matched                   uint64
			harmonics                 uint64
			count                     int
		)
		for i, p := range peaks {
			k := math.Round(p.Frequency / f0)
			if k >= 1 && math.Abs(p.Frequency-k*f0) <= h.cfg.Tolerance*k*f0 {
				score += p.Magnitude
				weightSum += p.Magnitude
				freqSum += p.Magnitude * p.Frequency / k
				matched |= 1 << uint(i)
				if k < 64 {
					harmonics |= 1 << uint(k)
				}
				count++
			} else {
				score -= h.cfg.MismatchPenalty * p.Magnitude
			}
		}

		expected := min(h.cfg.MaxHarmonics, int(top/f0*1.03))
		missing := 0
		for k := 1; k <= expected; k++ {
			if harmonics&(1<<uint(k)) == 0 {
				missing++
			}
		}
		score -= h.cfg.MissingPenalty * float64(missing) * lead.Magnitude

		// A lone peak may only stand for itself.
		need := 2
		if n == 1 {
			need = 1
		}
		if count < need || weightSum <= 0 {
			continue
		}

		if score > bestScore {
			bestScore = score
			bestFreq = freqSum / weightSum
			bestMatched = matched
		}
	}

	if bestFreq <= 0 || energy <= 0 {
		return c
	}

	var lobe float64
	for i, p := range peaks {
		if bestMatched&(1<<uint(i)) == 0 {
			continue
		}
		for b := max(lo, p.Bin-mainLobeBins); b <= min(hi, p.Bin+mainLobeBins); b++ {
			lobe += mag[b] * mag[b]
		}
	}

	confidence := clamp01(lobe / energy)
	if confidence < h.cfg.MinConfidence {
		return c
	}

	c.Frequency = bestFreq
	c.Confidence = confidence
	return c
}
