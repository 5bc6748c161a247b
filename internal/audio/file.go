package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/wav"
)

// readChunk is the number of sample frames decoded per read.
const readChunk = 1024

var _ Capturer = (*FileCapturer)(nil)

// FileCapturer decodes a WAV stream, downmixes it to mono in [-1, 1] and
// feeds a Framer. Run decodes synchronously; Start and Stop run it in the
// background to satisfy Capturer.
type FileCapturer struct {
	decoder *wav.Wav
	closer  io.Closer
	framer  *Framer
	mono    []float32
	remain  int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// OpenFile opens the WAV file at path.
func OpenFile(path string, framer *Framer) (*FileCapturer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	c, err := NewFileCapturer(f, framer)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.closer = f
	return c, nil
}

// NewFileCapturer reads the WAV header from r. The framer's sample rate is
// set from the file.
func NewFileCapturer(r io.Reader, framer *Framer) (*FileCapturer, error) {
	d, err := wav.New(r)
	if err != nil {
		return nil, err
	}
	if d.NumChannels == 0 || d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, d.NumChannels, d.SampleRate)
	}
	if d.AudioFormat == 1 && d.BitsPerSample != 8 && d.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedWAV, d.BitsPerSample)
	}

	framer.SetSampleRate(int(d.SampleRate))
	return &FileCapturer{
		decoder: d,
		framer:  framer,
		mono:    make([]float32, readChunk),
		remain:  d.Samples,
	}, nil
}

// SampleRate returns the file's sample rate.
func (c *FileCapturer) SampleRate() int { return int(c.decoder.SampleRate) }

// Channels returns the file's channel count.
func (c *FileCapturer) Channels() int { return int(c.decoder.NumChannels) }

// Duration returns the length of the audio.
func (c *FileCapturer) Duration() time.Duration { return c.decoder.Duration }

// Run decodes until the end of the data or until ctx is done.
func (c *FileCapturer) Run(ctx context.Context) error {
	channels := int(c.decoder.NumChannels)
	pcm := c.decoder.AudioFormat == 1

	for c.remain > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := min(readChunk*channels, c.remain)
		n -= n % channels
		if n == 0 {
			return nil
		}

		raw, err := c.decoder.ReadFloats(n)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		c.remain -= len(raw)

		frames := len(raw) / channels
		mono := c.mono[:frames]
		for i := range mono {
			var sum float32
			for ch := range channels {
				v := raw[i*channels+ch]
				if pcm {
					// PCM decodes to [0, 1].
					v = v*2 - 1
				}
				sum += v
			}
			mono[i] = sum / float32(channels)
		}
		c.framer.Write(mono)
	}
	return nil
}

// Start runs the decoder in the background.
func (c *FileCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return ErrAlreadyCapturing
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		err := c.Run(ctx)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	}()
	return nil
}

// Stop cancels a background decode, waits for it and closes the file.
func (c *FileCapturer) Stop() error {
	c.mu.Lock()
	done, cancel := c.done, c.cancel
	c.mu.Unlock()

	if done == nil {
		return ErrNotCapturing
	}
	cancel()
	<-done

	c.mu.Lock()
	err := c.err
	c.done = nil
	c.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, c.Close())
}

// Done is closed when a background decode finishes.
func (c *FileCapturer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// IsCapturing reports whether a background decode is running.
func (c *FileCapturer) IsCapturing() bool {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Close releases the underlying file, if any.
func (c *FileCapturer) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
