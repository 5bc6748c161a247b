package smoothing

import (
	"math"
	"slices"
	"time"
)

// TunerConfig controls the tuner display stabilizer.
type TunerConfig struct {
	JumpCents   float64       // Larger moves from the stable value are outliers
	AgreeCents  float64       // Spread within which consecutive outliers agree
	AgreeFrames int           // Agreeing outliers needed to move the stable value
	MaxOutliers int           // Consecutive outliers after which the input is forced through
	Timeout     time.Duration // Gap without input that forgets the stable value
}

// DefaultTunerConfig returns the standard tuner stabilizer settings.
func DefaultTunerConfig() TunerConfig {
	return TunerConfig{
		JumpCents:   80,
		AgreeCents:  20,
		AgreeFrames: 3,
		MaxOutliers: 10,
		Timeout:     200 * time.Millisecond,
	}
}

// TunerStabilizer holds a stable frequency and rejects single-frame jumps.
type TunerStabilizer struct {
	cfg TunerConfig

	stable   float64
	last     time.Duration
	outliers int
	pending  []float64
	sorted   []float64
}

// NewTunerStabilizer returns an empty stabilizer.
func NewTunerStabilizer(cfg TunerConfig) *TunerStabilizer {
	def := DefaultTunerConfig()
	if cfg.JumpCents <= 0 {
		cfg.JumpCents = def.JumpCents
	}
	if cfg.AgreeCents <= 0 {
		cfg.AgreeCents = def.AgreeCents
	}
	if cfg.AgreeFrames <= 0 {
		cfg.AgreeFrames = def.AgreeFrames
	}
	if cfg.MaxOutliers <= 0 {
		cfg.MaxOutliers = def.MaxOutliers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &TunerStabilizer{
		cfg:     cfg,
		pending: make([]float64, 0, cfg.AgreeFrames),
		sorted:  make([]float64, cfg.AgreeFrames),
	}
}

// Update feeds a valid frequency observed at ts and returns the stable value.
func (t *TunerStabilizer) Update(freq float64, ts time.Duration) float64 {
	if !(freq > 0) {
		return t.stable
	}
	if t.stable > 0 && ts-t.last > t.cfg.Timeout {
		t.Reset()
	}
	t.last = ts

	if t.stable <= 0 {
		t.accept(freq)
		return t.stable
	}

	if math.Abs(cents(freq, t.stable)) <= t.cfg.JumpCents {
		t.accept(freq)
		return t.stable
	}

	t.outliers++
	if len(t.pending) == t.cfg.AgreeFrames {
		copy(t.pending, t.pending[1:])
		t.pending = t.pending[:len(t.pending)-1]
	}
	t.pending = append(t.pending, freq)

	switch {
	case len(t.pending) == t.cfg.AgreeFrames && t.agree():
		t.accept(t.median())
	case t.outliers >= t.cfg.MaxOutliers:
		t.accept(freq)
	}
	return t.stable
}

// Stable returns the current stable frequency, 0 when none.
func (t *TunerStabilizer) Stable() float64 { return t.stable }

// Reset forgets the stable value.
func (t *TunerStabilizer) Reset() {
	t.stable = 0
	t.outliers = 0
	t.pending = t.pending[:0]
}

func (t *TunerStabilizer) accept(freq float64) {
	t.stable = freq
	t.outliers = 0
	t.pending = t.pending[:0]
}

func (t *TunerStabilizer) agree() bool {
	lo, hi := t.pending[0], t.pending[0]
	for _, f := range t.pending[1:] {
		lo = min(lo, f)
		hi = max(hi, f)
	}
	return cents(hi, lo) <= t.cfg.AgreeCents
}

func (t *TunerStabilizer) median() float64 {
	s := t.sorted[:len(t.pending)]
	copy(s, t.pending)
	slices.Sort(s)
	if len(s)%2 == 1 {
		return s[len(s)/2]
	}
	return (s[len(s)/2-1] + s[len(s)/2]) / 2
}

func cents(f, ref float64) float64 {
	return 1200 * math.Log2(f/ref)
}
