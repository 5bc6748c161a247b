// Package portaudio captures live input through PortAudio. It is the only
// package in the module that needs cgo and libportaudio.
package portaudio

import (
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/0xlemi/tunesuite/internal/audio"
)

// Config configures live input.
type Config struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int     // Callback block size
	Gain            float32 // Input amplification
}

// DefaultConfig returns mono 48 kHz input with small callback blocks.
func DefaultConfig() Config {
	return Config{
		SampleRate:      48000,
		Channels:        1,
		FramesPerBuffer: 256,
		Gain:            1.0,
	}
}

var _ audio.Capturer = (*Capturer)(nil)

// Capturer implements audio capture using PortAudio. The stream callback
// downmixes to mono and feeds a Framer without allocating.
type Capturer struct {
	cfg    Config
	framer *audio.Framer

	isCapturing bool
	stream      *pa.Stream
	mono        []float32
	bufferMutex sync.Mutex
}

// New creates a new audio capturer using PortAudio
func New(cfg Config, framer *audio.Framer) (*Capturer, error) {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = def.FramesPerBuffer
	}
	if cfg.Gain <= 0 {
		cfg.Gain = def.Gain
	}

	// Initialize PortAudio
	if err := pa.Initialize(); err != nil {
		return nil, err
	}

	framer.SetSampleRate(cfg.SampleRate)
	return &Capturer{
		cfg:    cfg,
		framer: framer,
		mono:   make([]float32, cfg.FramesPerBuffer),
	}, nil
}

// Start begins audio capture
func (c *Capturer) Start() error {
	if c.isCapturing {
		return audio.ErrAlreadyCapturing
	}

	// Open default input stream
	var err error
	c.stream, err = pa.OpenDefaultStream(
		c.cfg.Channels, // input channels
		0,              // no output
		float64(c.cfg.SampleRate),
		c.cfg.FramesPerBuffer,
		c.processAudio,
	)
	if err != nil {
		return err
	}

	if err := c.stream.Start(); err != nil {
		c.stream.Close()
		return err
	}

	c.isCapturing = true
	return nil
}

// Stop ends audio capture and releases PortAudio.
func (c *Capturer) Stop() error {
	if !c.isCapturing {
		return audio.ErrNotCapturing
	}

	if err := c.stream.Stop(); err != nil {
		return err
	}
	if err := c.stream.Close(); err != nil {
		return err
	}
	if err := pa.Terminate(); err != nil {
		return err
	}

	c.isCapturing = false
	return nil
}

// processAudio is the stream callback.
func (c *Capturer) processAudio(in, _ []float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	channels := c.cfg.Channels
	frames := len(in) / channels
	if frames > len(c.mono) {
		frames = len(c.mono)
	}
	mono := c.mono[:frames]

	gain := c.cfg.Gain / float32(channels)
	for i := range mono {
		var sum float32
		for ch := range channels {
			sum += in[i*channels+ch]
		}
		mono[i] = sum * gain
	}

	c.framer.Write(mono)
}

// IsCapturing returns true if currently capturing audio
func (c *Capturer) IsCapturing() bool {
	return c.isCapturing
}

// SetAmplification sets the audio amplification factor
func (c *Capturer) SetAmplification(factor float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	// Ensure amplification is positive
	if factor < 0.1 {
		factor = 0.1
	}
	c.cfg.Gain = factor
}
