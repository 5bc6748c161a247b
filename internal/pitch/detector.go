// Package pitch estimates the fundamental frequency of audio frames.
//
// Several independent estimators (YIN, NSDF and a spectral harmonic matcher)
// produce candidates that are fused into one estimate, smoothed and mapped
// to a musical note by the Engine.
package pitch

import (
	"errors"
	"math"
)

// Errors
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrUnknownMode       = errors.New("unknown mode")
	ErrInvalidA4         = errors.New("invalid A4 reference")
)

// Note represents a musical note
type Note struct {
	Name      string  // e.g., "A", "A#", "B"
	Octave    int     // e.g., 4 for middle C (C4)
	Midi      int     // MIDI note number, 69 for A4
	Frequency float64 // Frequency in Hz
	Cents     float64 // Cents deviation from perfect pitch (-50 to +50)
}

// All note names in chromatic order
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// FrequencyToNote maps frequency to the nearest equal-tempered note relative
// to the given A4 reference. A non-positive frequency yields the zero Note.
func FrequencyToNote(frequency, a4 float64) Note {
	if !(frequency > 0) || !(a4 > 0) {
		return Note{}
	}

	// Semitones from A4
	semitones := 12 * math.Log2(frequency/a4)
	rounded := math.Round(semitones)

	midi := 69 + int(rounded)
	noteIndex := midi % 12
	if noteIndex < 0 {
		noteIndex += 12
	}

	return Note{
		Name:      noteNames[noteIndex],
		Octave:    int(math.Floor(float64(midi)/12)) - 1,
		Midi:      midi,
		Frequency: frequency,
		Cents:     100 * (semitones - rounded),
	}
}

// CentsBetween returns the distance from ref to f in cents.
func CentsBetween(f, ref float64) float64 {
	return 1200 * math.Log2(f/ref)
}

// Input is one frame handed to an Algorithm.
type Input struct {
	Samples    []float64 // Filtered time-domain frame
	Spectrum   []float64 // Optional linear magnitude spectrum of the same frame
	SampleRate float64
}

// Candidate is the output of one Algorithm for one frame. A zero Frequency
// means the algorithm found no pitch.
type Candidate struct {
	Algorithm  string
	Frequency  float64
	Confidence float64
	Weight     float64
}

// Valid reports whether the candidate carries a frequency.
func (c Candidate) Valid() bool { return c.Frequency > 0 }

// Algorithm is a single-frame fundamental frequency estimator.
//
// Configure sizes the algorithm's working buffers; Analyze must not allocate
// once configured for the frame length it is given.
type Algorithm interface {
	Name() string
	Configure(frameSize int, sampleRate, minFreq, maxFreq float64)
	Analyze(in Input) Candidate
}

// lagRange returns the autocorrelation lag search range for a frame of n
// samples.
func lagRange(n int, sampleRate, minFreq, maxFreq float64) (int, int) {
	minLag := max(2, int(sampleRate/maxFreq))
	maxLag := min(int(math.Ceil(sampleRate/minFreq)), n/2-1)
	return minLag, maxLag
}

// parabolicPeak refines an integer extremum position using its neighbours.
func parabolicPeak(data []float64, i int) float64 {
	if i <= 0 || i >= len(data)-1 {
		return float64(i)
	}
	a, b, c := data[i-1], data[i], data[i+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(i)
	}
	return float64(i) + 0.5*(a-c)/den
}

func clamp01(x float64) float64 {
	return max(0, min(1, x))
}
