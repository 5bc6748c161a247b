package smoothing

import (
	"math"
	"time"
)

// GraphConfig controls the graph display stabilizer.
type GraphConfig struct {
	A4             float64       // Reference used to place note boundaries
	FastConfidence float64       // Above this the short run applies
	FastFrames     int           // Matching frames needed at high confidence
	FastDuration   time.Duration // Minimum run duration at high confidence
	SlowFrames     int           // Matching frames needed otherwise
	SlowDuration   time.Duration // Minimum run duration otherwise
	MaxDriftCents  float64       // Within-note movement allowed per frame
}

// DefaultGraphConfig returns the standard graph stabilizer settings.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		A4:             440,
		FastConfidence: 0.9,
		FastFrames:     3,
		FastDuration:   45 * time.Millisecond,
		SlowFrames:     6,
		SlowDuration:   95 * time.Millisecond,
		MaxDriftCents:  15,
	}
}

// GraphStabilizer commits to a new note only after a run of frames agrees on
// it and rate-limits drift within the current note.
type GraphStabilizer struct {
	cfg GraphConfig

	output float64
	note   int

	candidate int
	count     int
	start     time.Duration
}

// NewGraphStabilizer returns an empty stabilizer.
func NewGraphStabilizer(cfg GraphConfig) *GraphStabilizer {
	def := DefaultGraphConfig()
	if cfg.A4 <= 0 {
		cfg.A4 = def.A4
	}
	if cfg.FastFrames <= 0 {
		cfg.FastFrames = def.FastFrames
	}
	if cfg.SlowFrames <= 0 {
		cfg.SlowFrames = def.SlowFrames
	}
	if cfg.MaxDriftCents <= 0 {
		cfg.MaxDriftCents = def.MaxDriftCents
	}
	return &GraphStabilizer{cfg: cfg}
}

// SetReference moves the note boundaries to a new A4.
func (g *GraphStabilizer) SetReference(a4 float64) {
	if a4 > 0 {
		g.cfg.A4 = a4
		g.Reset()
	}
}

// Update feeds a valid frequency and returns the value to plot.
func (g *GraphStabilizer) Update(freq, confidence float64, ts time.Duration) float64 {
	if !(freq > 0) {
		return g.output
	}

	n := g.noteOf(freq)
	if g.output <= 0 {
		g.commit(n, freq)
		return g.output
	}

	if n == g.note {
		g.count = 0
		d := max(-g.cfg.MaxDriftCents, min(g.cfg.MaxDriftCents, cents(freq, g.output)))
		g.output *= math.Pow(2, d/1200)
		return g.output
	}

	if g.count == 0 || n != g.candidate {
		g.candidate = n
		g.count = 1
		g.start = ts
	} else {
		g.count++
	}

	frames, span := g.cfg.SlowFrames, g.cfg.SlowDuration
	if confidence > g.cfg.FastConfidence {
		frames, span = g.cfg.FastFrames, g.cfg.FastDuration
	}
	if g.count >= frames && ts-g.start >= span {
		g.commit(n, freq)
	}
	return g.output
}

// Output returns the last plotted value, 0 when none.
func (g *GraphStabilizer) Output() float64 { return g.output }

// Reset forgets the committed note.
func (g *GraphStabilizer) Reset() {
	g.output = 0
	g.note = 0
	g.count = 0
}

func (g *GraphStabilizer) commit(note int, freq float64) {
	g.note = note
	g.output = freq
	g.count = 0
}

func (g *GraphStabilizer) noteOf(freq float64) int {
	return int(math.Round(69 + 12*math.Log2(freq/g.cfg.A4)))
}
