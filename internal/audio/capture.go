// Package audio acquires audio and slices it into fixed-size analysis frames.
package audio

import (
	"errors"
	"math"
	"time"
)

// Errors
var (
	ErrAlreadyCapturing = errors.New("audio capture already started")
	ErrNotCapturing     = errors.New("audio capture not started")
	ErrQueueClosed      = errors.New("frame queue closed")
	ErrUnsupportedWAV   = errors.New("unsupported wav format")
)

// AudioBuffer represents a buffer of audio samples
type AudioBuffer struct {
	Samples    []float32
	SampleRate int

	// Spectrum is an optional linear magnitude spectrum of Samples with
	// len(Samples)/2 bins.
	Spectrum []float64

	// Timestamp is the stream position of the first sample. Zero lets the
	// consumer derive it from the samples it has seen.
	Timestamp time.Duration
}

// Duration returns the time span covered by the samples.
func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Level returns the RMS level of the samples and the same level in dBFS,
// -100 for silence.
func (b *AudioBuffer) Level() (rms, db float64) {
	if b == nil || len(b.Samples) == 0 {
		return 0, -100
	}

	var sumSquares float64
	for _, s := range b.Samples {
		v := float64(s)
		sumSquares += v * v
	}
	rms = math.Sqrt(sumSquares / float64(len(b.Samples)))

	// Avoid log(0)
	if rms > 1e-7 {
		db = 20 * math.Log10(rms)
	} else {
		db = -100
	}
	return rms, db
}

// Capturer defines the interface for audio capture. Captured audio is cut
// into frames by a Framer.
type Capturer interface {
	// Start begins audio capture
	Start() error

	// Stop ends audio capture
	Stop() error

	// IsCapturing returns true if currently capturing audio
	IsCapturing() bool
}
