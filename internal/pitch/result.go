package pitch

import (
	"time"

	"github.com/0xlemi/tunesuite/internal/smoothing"
)

// Layers exposes the frequency after each processing stage of a frame, in
// Hz; 0 when the stage produced nothing.
type Layers struct {
	Coarse  float64 // Tracking filter coarse estimate
	Fused   float64 // Consensus of the algorithms
	Kalman  float64
	Viterbi float64
	Median  float64 // Median of the recent history
	Tuner   float64 // Tuner stabilizer output
	Graph   float64 // Graph stabilizer output
}

// Result is the outcome of analyzing one frame. A zero Frequency means no
// pitch: silence, noise, or an estimate below the confidence gate.
type Result struct {
	Frequency  float64
	Note       string
	Octave     int
	Midi       int
	Cents      float64
	Confidence float64
	RMS        float64
	Timestamp  time.Duration

	Vibrato          smoothing.VibratoState
	Consensus        ConsensusMethod
	AlgorithmResults []Candidate
	Layers           Layers
	Stability        float64
}

// HasPitch reports whether the frame produced a displayable pitch.
func (r *Result) HasPitch() bool { return r.Frequency > 0 }

// reset clears r for reuse, keeping the AlgorithmResults backing array.
func (r *Result) reset() {
	algs := r.AlgorithmResults[:0]
	*r = Result{AlgorithmResults: algs}
}
