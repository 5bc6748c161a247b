package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// pcm16 builds a 16-bit PCM WAV stream from interleaved samples in [-1, 1].
func pcm16(t *testing.T, sampleRate, channels int, samples []float64) []byte {
	t.Helper()

	var data bytes.Buffer
	for _, s := range samples {
		v := int16(math.Round(s * math.MaxInt16))
		binary.Write(&data, binary.LittleEndian, v)
	}

	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+data.Len()))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(data.Len()))
	b.Write(data.Bytes())
	return b.Bytes()
}

func collect(t *testing.T, size int) (*Framer, *[]AudioBuffer) {
	t.Helper()

	frames := &[]AudioBuffer{}
	f, err := NewFramer(FramerConfig{FrameSize: size}, func(b AudioBuffer) bool {
		cp := b
		cp.Samples = append([]float32(nil), b.Samples...)
		*frames = append(*frames, cp)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	return f, frames
}

func TestFileCapturer_MonoPCM(t *testing.T) {
	samples := make([]float64, 3000)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/8000)
	}

	framer, frames := collect(t, 1000)
	c, err := NewFileCapturer(bytes.NewReader(pcm16(t, 8000, 1, samples)), framer)
	if err != nil {
		t.Fatalf("NewFileCapturer: %v", err)
	}
	if c.SampleRate() != 8000 || c.Channels() != 1 {
		t.Fatalf("header: %d Hz, %d channels", c.SampleRate(), c.Channels())
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(*frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(*frames))
	}
	for fi, fr := range *frames {
		if fr.SampleRate != 8000 {
			t.Fatalf("frame %d sample rate %d", fi, fr.SampleRate)
		}
		for i, v := range fr.Samples {
			want := samples[fi*1000+i]
			if math.Abs(float64(v)-want) > 1e-3 {
				t.Fatalf("frame %d sample %d: got %v, want %v", fi, i, v, want)
			}
		}
	}
}

func TestFileCapturer_StereoDownmix(t *testing.T) {
	interleaved := make([]float64, 0, 200)
	for range 100 {
		interleaved = append(interleaved, 0.5, -0.1)
	}

	framer, frames := collect(t, 100)
	c, err := NewFileCapturer(bytes.NewReader(pcm16(t, 44100, 2, interleaved)), framer)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(*frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(*frames))
	}
	for i, v := range (*frames)[0].Samples {
		if math.Abs(float64(v)-0.2) > 1e-3 {
			t.Fatalf("sample %d: got %v, want 0.2", i, v)
		}
	}
}

func TestFileCapturer_StartStop(t *testing.T) {
	framer, frames := collect(t, 100)
	c, err := NewFileCapturer(bytes.NewReader(pcm16(t, 8000, 1, make([]float64, 400))), framer)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyCapturing) {
		t.Fatalf("second Start: got %v", err)
	}
	<-c.Done()
	if c.IsCapturing() {
		t.Fatal("still capturing after Done")
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(*frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(*frames))
	}
	if err := c.Stop(); !errors.Is(err, ErrNotCapturing) {
		t.Fatalf("second Stop: got %v", err)
	}
}

func TestFileCapturer_BadHeader(t *testing.T) {
	framer, _ := collect(t, 16)
	if _, err := NewFileCapturer(bytes.NewReader([]byte("not a wav file")), framer); err == nil {
		t.Fatal("expected error")
	}
}

func TestAudioBuffer_Level(t *testing.T) {
	b := &AudioBuffer{Samples: []float32{0.5, -0.5, 0.5, -0.5}, SampleRate: 4}
	rms, db := b.Level()
	if math.Abs(rms-0.5) > 1e-9 {
		t.Fatalf("rms: got %v", rms)
	}
	if math.Abs(db-20*math.Log10(0.5)) > 1e-9 {
		t.Fatalf("db: got %v", db)
	}
	if b.Duration().Seconds() != 1 {
		t.Fatalf("duration: got %v", b.Duration())
	}

	silent := &AudioBuffer{Samples: make([]float32, 8)}
	if _, db := silent.Level(); db != -100 {
		t.Fatalf("silent db: got %v", db)
	}
}
