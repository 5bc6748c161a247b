package smoothing

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// VibratoState describes periodic pitch modulation.
type VibratoState struct {
	Detected   bool
	RateHz     float64
	DepthCents float64
}

// VibratoConfig controls vibrato detection.
type VibratoConfig struct {
	Window        time.Duration // Newest history span analyzed
	MinSamples    int           // Samples required inside Window
	MinDepthCents float64       // Half peak-to-trough needed to report vibrato
	MinRateHz     float64
	MaxRateHz     float64
	Capacity      int // Samples retained
}

// DefaultVibratoConfig returns the standard vibrato settings.
func DefaultVibratoConfig() VibratoConfig {
	return VibratoConfig{
		Window:        500 * time.Millisecond,
		MinSamples:    10,
		MinDepthCents: 6,
		MinRateHz:     3,
		MaxRateHz:     10,
		Capacity:      128,
	}
}

// VibratoDetector measures rate and depth of pitch modulation over the most
// recent Window of samples.
type VibratoDetector struct {
	cfg VibratoConfig

	freqs []float64
	times []time.Duration
	head  int
	size  int

	window []float64
	dev    []float64
	state  VibratoState
}

// NewVibratoDetector returns an empty detector.
func NewVibratoDetector(cfg VibratoConfig) *VibratoDetector {
	def := DefaultVibratoConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinSamples < 3 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.MinDepthCents <= 0 {
		cfg.MinDepthCents = def.MinDepthCents
	}
	if cfg.MinRateHz <= 0 {
		cfg.MinRateHz = def.MinRateHz
	}
	if cfg.MaxRateHz <= cfg.MinRateHz {
		cfg.MaxRateHz = max(def.MaxRateHz, cfg.MinRateHz*2)
	}
	if cfg.Capacity < cfg.MinSamples {
		cfg.Capacity = max(def.Capacity, cfg.MinSamples)
	}
	return &VibratoDetector{
		cfg:    cfg,
		freqs:  make([]float64, cfg.Capacity),
		times:  make([]time.Duration, cfg.Capacity),
		window: make([]float64, cfg.Capacity),
		dev:    make([]float64, cfg.Capacity),
	}
}

// Push appends a pitch sample and re-evaluates the vibrato state.
func (v *VibratoDetector) Push(freq float64, ts time.Duration) VibratoState {
	if !(freq > 0) {
		v.Reset()
		return v.state
	}

	v.freqs[v.head] = freq
	v.times[v.head] = ts
	v.head = (v.head + 1) % len(v.freqs)
	v.size = min(v.size+1, len(v.freqs))

	v.state = v.analyze()
	return v.state
}

// State returns the last evaluated state.
func (v *VibratoDetector) State() VibratoState { return v.state }

// Reset clears the samples and reports no vibrato.
func (v *VibratoDetector) Reset() {
	v.head = 0
	v.size = 0
	v.state = VibratoState{}
}

func (v *VibratoDetector) at(i int) (float64, time.Duration) {
	idx := (v.head - v.size + i + len(v.freqs)) % len(v.freqs)
	return v.freqs[idx], v.times[idx]
}

func (v *VibratoDetector) analyze() VibratoState {
	if v.size < v.cfg.MinSamples {
		return VibratoState{}
	}

	_, newest := v.at(v.size - 1)
	_, oldest := v.at(0)
	if newest-oldest < v.cfg.Window {
		return VibratoState{}
	}

	// Newest samples back to the first one at least Window old.
	first := v.size - 1
	for first > 0 {
		_, t := v.at(first)
		if newest-t >= v.cfg.Window {
			break
		}
		first--
	}

	n := v.size - first
	if n < v.cfg.MinSamples {
		return VibratoState{}
	}

	window := v.window[:n]
	for i := range window {
		window[i], _ = v.at(first + i)
	}
	_, start := v.at(first)
	duration := (newest - start).Seconds()
	if duration <= 0 {
		return VibratoState{}
	}

	mean := stat.Mean(window, nil)
	dev := v.dev[:n]
	for i, f := range window {
		dev[i] = 1200 * math.Log2(f/mean)
	}

	depth := (floats.Max(dev) - floats.Min(dev)) / 2

	crossings := 0
	for i := 1; i < n; i++ {
		if (dev[i-1] < 0) != (dev[i] < 0) {
			crossings++
		}
	}
	rate := float64(crossings) / (2 * duration)

	return VibratoState{
		Detected:   depth >= v.cfg.MinDepthCents && rate >= v.cfg.MinRateHz && rate <= v.cfg.MaxRateHz,
		RateHz:     rate,
		DepthCents: depth,
	}
}
