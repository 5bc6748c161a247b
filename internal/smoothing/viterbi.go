package smoothing

import (
	"errors"
	"math"
)

// ViterbiConfig controls the online trajectory decoder.
type ViterbiConfig struct {
	States          int     // Grid size spanning [MinFreq, MaxFreq] in cents
	MinFreq         float64 // Lowest grid frequency (Hz)
	MaxFreq         float64 // Highest grid frequency (Hz)
	SelfTransition  float64 // Probability of staying in the same state
	DistancePenalty float64 // Extra cost per state of movement
	Window          int     // Search radius around the previous best state
	SigmaCents      float64 // Emission width at full confidence
	MinSigmaConf    float64 // Confidence floor used when widening sigma
	Floor           float64 // Emission probability of an unrelated observation
	OutlierCents    float64 // Observations further than this from the chosen state are outliers
	ReacquireFrames int     // Consecutive outliers that force re-acquisition
}

// DefaultViterbiConfig returns the decoder settings for a 50-2000 Hz range.
func DefaultViterbiConfig() ViterbiConfig {
	return ViterbiConfig{
		States:          360,
		MinFreq:         50,
		MaxFreq:         2000,
		SelfTransition:  0.99,
		DistancePenalty: 0.15,
		Window:          50,
		SigmaCents:      12,
		MinSigmaConf:    0.2,
		Floor:           0.01,
		OutlierCents:    50,
		ReacquireFrames: 3,
	}
}

// ErrInvalidGrid is returned for a decoder range that cannot hold a grid.
var ErrInvalidGrid = errors.New("invalid viterbi grid")

// emissionEpsilon keeps the emission cost finite.
const emissionEpsilon = 1e-6

// ViterbiDecoder is a greedy one-step-lookback Viterbi decoder over a grid of
// pitch states spaced evenly in cents.
//
// Each frame only the states within Window of the previous best state are
// scored; the cheapest one becomes the new best state. An observation that
// stays away from the chosen path for ReacquireFrames frames moves the path
// to it directly.
type ViterbiDecoder struct {
	cfg ViterbiConfig

	stepCents float64
	jumpCost  float64
	selfCost  float64

	best     int
	misses   int
	accepted float64
	ready    bool
}

// NewViterbiDecoder returns a decoder for cfg's frequency range.
func NewViterbiDecoder(cfg ViterbiConfig) (*ViterbiDecoder, error) {
	d := &ViterbiDecoder{}
	if err := d.Configure(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Configure replaces the decoder settings and resets its state.
func (d *ViterbiDecoder) Configure(cfg ViterbiConfig) error {
	def := DefaultViterbiConfig()
	if cfg.States < 2 {
		cfg.States = def.States
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.SelfTransition <= 0 || cfg.SelfTransition >= 1 {
		cfg.SelfTransition = def.SelfTransition
	}
	if cfg.SigmaCents <= 0 {
		cfg.SigmaCents = def.SigmaCents
	}
	if cfg.MinSigmaConf <= 0 {
		cfg.MinSigmaConf = def.MinSigmaConf
	}
	if cfg.Floor <= 0 {
		cfg.Floor = def.Floor
	}
	if cfg.OutlierCents <= 0 {
		cfg.OutlierCents = def.OutlierCents
	}
	if cfg.ReacquireFrames <= 0 {
		cfg.ReacquireFrames = def.ReacquireFrames
	}
	if !(cfg.MinFreq > 0) || !(cfg.MaxFreq > cfg.MinFreq) {
		return ErrInvalidGrid
	}

	d.cfg = cfg
	d.stepCents = 1200 * math.Log2(cfg.MaxFreq/cfg.MinFreq) / float64(cfg.States-1)
	d.selfCost = -math.Log(cfg.SelfTransition)
	d.jumpCost = -math.Log((1 - cfg.SelfTransition) / float64(2*cfg.Window))
	d.Reset()
	return nil
}

// SetRange re-spans the grid over a new frequency range.
func (d *ViterbiDecoder) SetRange(minFreq, maxFreq float64) error {
	cfg := d.cfg
	cfg.MinFreq, cfg.MaxFreq = minFreq, maxFreq
	return d.Configure(cfg)
}

// Reset forgets the decoded path.
func (d *ViterbiDecoder) Reset() {
	d.best = 0
	d.misses = 0
	d.accepted = 0
	d.ready = false
}

// State returns the index of the current best state.
func (d *ViterbiDecoder) State() int { return d.best }

// StateFrequency returns the centre frequency of state i.
func (d *ViterbiDecoder) StateFrequency(i int) float64 {
	return d.cfg.MinFreq * math.Pow(2, d.stateCents(i)/1200)
}

func (d *ViterbiDecoder) stateCents(i int) float64 {
	return float64(i) * d.stepCents
}

func (d *ViterbiDecoder) nearestState(cents float64) int {
	i := int(math.Round(cents / d.stepCents))
	return max(0, min(d.cfg.States-1, i))
}

// Step decodes one observation and returns the smoothed frequency: the
// observation itself when it lies on the decoded path, otherwise the last
// observation that did.
func (d *ViterbiDecoder) Step(freq, confidence float64) float64 {
	if !(freq > 0) {
		return d.accepted
	}

	obs := 1200 * math.Log2(freq/d.cfg.MinFreq)
	obsState := d.nearestState(obs)

	if !d.ready {
		d.best = obsState
		d.accepted = freq
		d.ready = true
		return freq
	}

	c := max(0, min(1, confidence))
	sigma := d.cfg.SigmaCents / max(c, d.cfg.MinSigmaConf)

	lo := max(0, d.best-d.cfg.Window)
	hi := min(d.cfg.States-1, d.best+d.cfg.Window)

	chosen, bestCost := d.best, math.Inf(1)
	for s := lo; s <= hi; s++ {
		delta := obs - d.stateCents(s)
		g := math.Exp(-delta * delta / (2 * sigma * sigma))
		cost := -math.Log(c*g + (1-c)*d.cfg.Floor + emissionEpsilon)

		if s == d.best {
			cost += d.selfCost
		} else {
			cost += d.jumpCost + d.cfg.DistancePenalty*math.Abs(float64(s-d.best))
		}

		if cost < bestCost {
			chosen, bestCost = s, cost
		}
	}

	outside := obsState < lo || obsState > hi
	far := math.Abs(obs-d.stateCents(chosen)) > d.cfg.OutlierCents
	if outside || far {
		d.misses++
		if d.misses >= d.cfg.ReacquireFrames {
			chosen = obsState
			d.misses = 0
		}
	} else {
		d.misses = 0
	}
	d.best = chosen

	if math.Abs(obs-d.stateCents(chosen)) <= d.cfg.OutlierCents {
		d.accepted = freq
	}
	return d.accepted
}
