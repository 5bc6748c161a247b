// Package smoothing holds the frame-to-frame post-processing stages applied
// to fused pitch estimates: a Kalman filter, an online Viterbi decoder,
// the tuner and graph display stabilizers and a vibrato detector.
package smoothing

import (
	"math"
	"time"
)

// KalmanConfig controls the position/velocity Kalman filter. Values are in Hz.
type KalmanConfig struct {
	ProcessNoise       float64 // Q, added to the error covariance every step
	MeasurementNoise   float64 // R0, measurement variance at full confidence
	MinConfidence      float64 // Floor applied before scaling R0
	VelocityAlpha      float64 // EMA weight of the newest velocity sample
	VelocityConfidence float64 // Velocity is learned only above this confidence
	ReseedConfidence   float64 // Confident jumps re-seed the filter above this
	ReseedCents        float64 // Jump size that re-seeds
}

// DefaultKalmanConfig returns the standard Kalman settings.
func DefaultKalmanConfig() KalmanConfig {
	return KalmanConfig{
		ProcessNoise:       1.0,
		MeasurementNoise:   0.5,
		MinConfidence:      0.05,
		VelocityAlpha:      0.2,
		VelocityConfidence: 0.5,
		ReseedConfidence:   0.7,
		ReseedCents:        100,
	}
}

// maxStep bounds the time step over which velocity is trusted.
const maxStep = time.Second

// KalmanFilter tracks frequency and its rate of change.
//
// Measurement noise scales inversely with confidence, so weak frames move
// the estimate less. Velocity is only learned from confident frames with a
// plausible time step.
type KalmanFilter struct {
	cfg KalmanConfig

	estimate float64
	velocity float64
	p        float64

	last     time.Duration
	dt       float64
	previous float64
	ready    bool
}

// NewKalmanFilter returns a filter that seeds itself on the first update.
func NewKalmanFilter(cfg KalmanConfig) *KalmanFilter {
	def := DefaultKalmanConfig()
	if cfg.ProcessNoise <= 0 {
		cfg.ProcessNoise = def.ProcessNoise
	}
	if cfg.MeasurementNoise <= 0 {
		cfg.MeasurementNoise = def.MeasurementNoise
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.VelocityAlpha <= 0 || cfg.VelocityAlpha > 1 {
		cfg.VelocityAlpha = def.VelocityAlpha
	}
	return &KalmanFilter{cfg: cfg}
}

// SetProcessNoise changes Q.
func (k *KalmanFilter) SetProcessNoise(q float64) {
	if q > 0 {
		k.cfg.ProcessNoise = q
	}
}

// Predict advances the state to ts.
func (k *KalmanFilter) Predict(ts time.Duration) {
	if !k.ready {
		k.last = ts
		k.dt = 0
		return
	}

	step := ts - k.last
	k.last = ts
	k.dt = step.Seconds()
	k.previous = k.estimate

	if step > 0 && step < maxStep {
		k.estimate += k.velocity * k.dt
	}
	k.p += k.cfg.ProcessNoise
}

// Update corrects the prediction with measurement z and returns the new
// estimate.
func (k *KalmanFilter) Update(z, confidence float64) float64 {
	if !(z > 0) {
		return k.estimate
	}
	c := max(confidence, k.cfg.MinConfidence)

	if !k.ready {
		k.seed(z)
		return k.estimate
	}

	if c > k.cfg.ReseedConfidence && math.Abs(1200*math.Log2(z/k.estimate)) > k.cfg.ReseedCents {
		k.seed(z)
		return k.estimate
	}

	r := k.cfg.MeasurementNoise / c
	gain := k.p / (k.p + r)
	k.estimate += gain * (z - k.estimate)
	k.p *= 1 - gain

	if c > k.cfg.VelocityConfidence && k.dt > 0 && k.dt < maxStep.Seconds() {
		a := k.cfg.VelocityAlpha
		k.velocity = (1-a)*k.velocity + a*(k.estimate-k.previous)/k.dt
	}
	return k.estimate
}

func (k *KalmanFilter) seed(z float64) {
	k.estimate = z
	k.previous = z
	k.velocity = 0
	k.p = k.cfg.MeasurementNoise
	k.ready = true
}

// Estimate returns the current frequency estimate, 0 before the first update.
func (k *KalmanFilter) Estimate() float64 { return k.estimate }

// Velocity returns the estimated drift in Hz per second.
func (k *KalmanFilter) Velocity() float64 { return k.velocity }

// Reset clears estimate, velocity and covariance.
func (k *KalmanFilter) Reset() {
	*k = KalmanFilter{cfg: k.cfg}
}
