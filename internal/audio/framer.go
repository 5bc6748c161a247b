package audio

import (
	"fmt"
	"time"
)

// FramerConfig sizes a Framer.
type FramerConfig struct {
	FrameSize  int // Samples per frame
	Hop        int // Samples between frame starts; FrameSize means no overlap
	SampleRate int
	Pool       int // Frame buffers in rotation
}

// Framer cuts an arbitrary stream of sample blocks into fixed, possibly
// overlapping frames and hands each one to an emit function.
//
// Frames are written into a fixed pool of buffers used in rotation, so Write
// never allocates. A pool slot is only reused after emit accepted the frame
// it held and Pool-1 newer frames were accepted, which makes a pool of
// queue capacity + 2 safe for a consumer holding one frame at a time.
type Framer struct {
	cfg  FramerConfig
	emit func(AudioBuffer) bool

	acc      []float32
	fill     int
	pool     [][]float32
	next     int
	position int64
}

// NewFramer returns a Framer calling emit for every complete frame. emit
// reports whether it kept the frame.
func NewFramer(cfg FramerConfig, emit func(AudioBuffer) bool) (*Framer, error) {
	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("framer: frame size %d", cfg.FrameSize)
	}
	if cfg.Hop <= 0 || cfg.Hop > cfg.FrameSize {
		cfg.Hop = cfg.FrameSize
	}
	if cfg.Pool < 2 {
		cfg.Pool = 2
	}

	f := &Framer{
		cfg:  cfg,
		emit: emit,
		acc:  make([]float32, cfg.FrameSize),
		pool: make([][]float32, cfg.Pool),
	}
	for i := range f.pool {
		f.pool[i] = make([]float32, cfg.FrameSize)
	}
	return f, nil
}

// SetSampleRate changes the rate stamped on emitted frames.
func (f *Framer) SetSampleRate(rate int) { f.cfg.SampleRate = rate }

// SampleRate returns the rate stamped on emitted frames.
func (f *Framer) SampleRate() int { return f.cfg.SampleRate }

// Write appends samples and emits every frame they complete.
func (f *Framer) Write(samples []float32) {
	for len(samples) > 0 {
		n := copy(f.acc[f.fill:], samples)
		f.fill += n
		samples = samples[n:]

		if f.fill < len(f.acc) {
			return
		}

		f.flush()

		keep := len(f.acc) - f.cfg.Hop
		copy(f.acc, f.acc[f.cfg.Hop:])
		f.fill = keep
		f.position += int64(f.cfg.Hop)
	}
}

// Reset drops buffered samples and restarts timestamps at zero.
func (f *Framer) Reset() {
	f.fill = 0
	f.position = 0
}

func (f *Framer) flush() {
	buf := f.pool[f.next]
	copy(buf, f.acc)

	var ts time.Duration
	if f.cfg.SampleRate > 0 {
		ts = time.Duration(f.position) * time.Second / time.Duration(f.cfg.SampleRate)
	}

	if f.emit(AudioBuffer{Samples: buf, SampleRate: f.cfg.SampleRate, Timestamp: ts}) {
		f.next = (f.next + 1) % len(f.pool)
	}
}
