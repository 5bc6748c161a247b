package pitch

// AlgorithmYIN names candidates produced by YIN.
const AlgorithmYIN = "yin"

// YINConfig controls the YIN estimator.
type YINConfig struct {
	Threshold       float64 // CMNDF level accepted as periodic
	MaxAperiodicity float64 // Global-minimum fallback is rejected above this
	Weight          float64 // Fusion weight
}

// DefaultYINConfig returns the solo-mode YIN settings.
func DefaultYINConfig() YINConfig {
	return YINConfig{
		Threshold:       0.15,
		MaxAperiodicity: 0.45,
		Weight:          1.0,
	}
}

// YIN estimates pitch from the cumulative mean normalized difference
// function of the frame.
type YIN struct {
	cfg YINConfig

	frameSize  int
	sampleRate float64
	minFreq    float64
	maxFreq    float64

	diff  []float64
	cmndf []float64
}

// NewYIN returns a YIN estimator. Configure must be called before Analyze
// unless the first frame is allowed to size the buffers.
func NewYIN(cfg YINConfig) *YIN {
	def := DefaultYINConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MaxAperiodicity <= 0 {
		cfg.MaxAperiodicity = def.MaxAperiodicity
	}
	if cfg.Weight <= 0 {
		cfg.Weight = def.Weight
	}
	return &YIN{cfg: cfg, minFreq: 50, maxFreq: 2000}
}

func (y *YIN) Name() string { return AlgorithmYIN }

// SetThreshold changes the CMNDF acceptance threshold.
func (y *YIN) SetThreshold(threshold float64) {
	if threshold > 0 {
		y.cfg.Threshold = threshold
	}
}

// Threshold returns the CMNDF acceptance threshold.
func (y *YIN) Threshold() float64 { return y.cfg.Threshold }

func (y *YIN) Configure(frameSize int, sampleRate, minFreq, maxFreq float64) {
	y.frameSize = frameSize
	y.sampleRate = sampleRate
	y.minFreq = minFreq
	y.maxFreq = maxFreq

	_, maxLag := lagRange(frameSize, sampleRate, minFreq, maxFreq)
	size := max(maxLag+2, 0)
	y.diff = make([]float64, size)
	y.cmndf = make([]float64, size)
}

func (y *YIN) Analyze(in Input) Candidate {
	c := Candidate{Algorithm: AlgorithmYIN, Weight: y.cfg.Weight}

	x := in.Samples
	n := len(x)
	if n != y.frameSize || in.SampleRate != y.sampleRate {
		y.Configure(n, in.SampleRate, y.minFreq, y.maxFreq)
	}

	minLag, maxLag := lagRange(n, in.SampleRate, y.minFreq, y.maxFreq)
	if maxLag <= minLag {
		return c
	}

	window := n / 2
	diff := y.diff[:maxLag+2]
	cmndf := y.cmndf[:maxLag+2]

	diff[0] = 0
	for tau := 1; tau < len(diff); tau++ {
		var sum float64
		for j := range window {
			d := x[j] - x[j+tau]
			sum += d * d
		}
		diff[tau] = sum
	}

	cmndf[0] = 1
	running := 0.0
	for tau := 1; tau < len(cmndf); tau++ {
		running += diff[tau]
		if running > 0 {
			cmndf[tau] = diff[tau] * float64(tau) / running
		} else {
			cmndf[tau] = 1
		}
	}

	best := -1
	for tau := minLag; tau <= maxLag; tau++ {
		if cmndf[tau] < y.cfg.Threshold {
			for tau+1 <= maxLag && cmndf[tau+1] < cmndf[tau] {
				tau++
			}
			best = tau
			break
		}
	}

	if best < 0 {
		best = minLag
		for tau := minLag + 1; tau <= maxLag; tau++ {
			if cmndf[tau] < cmndf[best] {
				best = tau
			}
		}
		if cmndf[best] > y.cfg.MaxAperiodicity {
			return c
		}
	}

	lag := parabolicPeak(cmndf, best)
	if lag <= 0 {
		return c
	}

	c.Frequency = in.SampleRate / lag
	c.Confidence = clamp01(1 - cmndf[best])
	return c
}
