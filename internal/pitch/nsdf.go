package pitch

// AlgorithmNSDF names candidates produced by the NSDF estimator.
const AlgorithmNSDF = "nsdf"

// NSDFConfig controls the NSDF (McLeod pitch method) estimator.
type NSDFConfig struct {
	PeakRatio float64 // First key maximum at or above PeakRatio * highest wins
	MinPeak   float64 // Selected maximum must reach this value
	Weight    float64 // Fusion weight
}

// DefaultNSDFConfig returns the standard NSDF settings.
func DefaultNSDFConfig() NSDFConfig {
	return NSDFConfig{
		PeakRatio: 0.9,
		MinPeak:   0.5,
		Weight:    1.0,
	}
}

// NSDF estimates pitch from the normalized square difference function,
// preferring the earliest strong key maximum over the global one.
type NSDF struct {
	cfg NSDFConfig

	frameSize  int
	sampleRate float64
	minFreq    float64
	maxFreq    float64

	nsdf  []float64
	peaks []int
}

// NewNSDF returns an NSDF estimator.
func NewNSDF(cfg NSDFConfig) *NSDF {
	def := DefaultNSDFConfig()
	if cfg.PeakRatio <= 0 || cfg.PeakRatio > 1 {
		cfg.PeakRatio = def.PeakRatio
	}
	if cfg.MinPeak <= 0 {
		cfg.MinPeak = def.MinPeak
	}
	if cfg.Weight <= 0 {
		cfg.Weight = def.Weight
	}
	return &NSDF{cfg: cfg, minFreq: 50, maxFreq: 2000}
}

func (a *NSDF) Name() string { return AlgorithmNSDF }

func (a *NSDF) Configure(frameSize int, sampleRate, minFreq, maxFreq float64) {
	a.frameSize = frameSize
	a.sampleRate = sampleRate
	a.minFreq = minFreq
	a.maxFreq = maxFreq

	_, maxLag := lagRange(frameSize, sampleRate, minFreq, maxFreq)
	size := max(maxLag+2, 0)
	a.nsdf = make([]float64, size)
	a.peaks = make([]int, 0, size/2+1)
}

func (a *NSDF) Analyze(in Input) Candidate {
	c := Candidate{Algorithm: AlgorithmNSDF, Weight: a.cfg.Weight}

	x := in.Samples
	n := len(x)
	if n != a.frameSize || in.SampleRate != a.sampleRate {
		a.Configure(n, in.SampleRate, a.minFreq, a.maxFreq)
	}

	minLag, maxLag := lagRange(n, in.SampleRate, a.minFreq, a.maxFreq)
	if maxLag <= minLag {
		return c
	}

	ns := a.nsdf[:maxLag+2]
	for tau := range ns {
		var acf, m float64
		for j := 0; j+tau < n; j++ {
			p, q := x[j], x[j+tau]
			acf += p * q
			m += p*p + q*q
		}
		if m > 0 {
			ns[tau] = 2 * acf / m
		} else {
			ns[tau] = 0
		}
	}

	// Key maxima: the highest point of each positive region after the
	// first negative-going zero crossing.
	peaks := a.peaks[:0]
	tau := 1
	for tau <= maxLag && ns[tau] > 0 {
		tau++
	}
	highest := 0.0
	for tau <= maxLag {
		for tau <= maxLag && ns[tau] <= 0 {
			tau++
		}
		idx, val := -1, 0.0
		for tau <= maxLag && ns[tau] > 0 {
			if ns[tau] > val {
				idx, val = tau, ns[tau]
			}
			tau++
		}
		if idx >= minLag {
			peaks = append(peaks, idx)
			highest = max(highest, val)
		}
	}
	a.peaks = peaks

	best := -1
	for _, p := range peaks {
		if ns[p] >= a.cfg.PeakRatio*highest {
			best = p
			break
		}
	}
	if best < 0 || ns[best] < a.cfg.MinPeak {
		return c
	}

	lag := parabolicPeak(ns, best)
	if lag <= 0 {
		return c
	}

	c.Frequency = in.SampleRate / lag
	c.Confidence = clamp01(ns[best])
	return c
}
