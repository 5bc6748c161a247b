// Package testutil holds deterministic signal generators shared by tests.
package testutil

import (
	"math"
	"math/rand"
)

// Partial is one sinusoidal component of a synthetic tone.
type Partial struct {
	Freq      float64
	Amplitude float64
}

// Sine generates length samples of a sine starting at sample offset start.
func Sine(freqHz, sampleRate, amplitude float64, start, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(start+i))
	}
	return out
}

// SineF32 is Sine as float32 samples, the format audio buffers carry.
func SineF32(freqHz, sampleRate, amplitude float64, start, length int) []float32 {
	return ToF32(Sine(freqHz, sampleRate, amplitude, start, length))
}

// Tone sums the given partials.
func Tone(partials []Partial, sampleRate float64, start, length int) []float64 {
	out := make([]float64, length)
	for _, p := range partials {
		step := 2 * math.Pi * p.Freq / sampleRate
		for i := range out {
			out[i] += p.Amplitude * math.Sin(step*float64(start+i))
		}
	}
	return out
}

// Noise generates uniform white noise in [-amplitude, amplitude] with a fixed
// seed for reproducibility.
func Noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// ToF32 converts samples to float32.
func ToF32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// Cents returns the distance from ref to f in cents.
func Cents(f, ref float64) float64 {
	return 1200 * math.Log2(f/ref)
}
