package spectrum

import (
	"math"
	"testing"

	"github.com/0xlemi/tunesuite/internal/testutil"
)

const sampleRate = 48000.0

func TestAnalyzer_Length(t *testing.T) {
	a := NewAnalyzer(4096)
	mag := a.Magnitude(testutil.SineF32(440, sampleRate, 0.5, 0, 4096))
	if len(mag) != 2048 {
		t.Fatalf("len: got %d, want 2048", len(mag))
	}

	mag = a.Magnitude(make([]float32, 1024))
	if len(mag) != 512 || a.Size() != 1024 {
		t.Fatalf("resize: got len %d size %d", len(mag), a.Size())
	}
}

func TestAnalyzer_SinePeak(t *testing.T) {
	const n = 4096
	a := NewAnalyzer(n)
	mag := a.Magnitude(testutil.SineF32(440, sampleRate, 0.8, 0, n))

	binHz := BinWidth(sampleRate, len(mag))
	if math.Abs(binHz-sampleRate/n) > 1e-9 {
		t.Fatalf("bin width: got %v, want %v", binHz, sampleRate/n)
	}

	peaks := FindPeaks(nil, mag, binHz, 50, 4000, 0.05)
	if len(peaks) == 0 {
		t.Fatal("no peaks found")
	}
	SortByMagnitude(peaks)

	if got := peaks[0].Frequency; math.Abs(got-440) > 1 {
		t.Fatalf("peak frequency: got %.2f, want 440", got)
	}
	// Hann coherent gain with scalloping keeps the peak between A/4 and A/2.
	if m := peaks[0].Magnitude; m < 0.2 || m > 0.41 {
		t.Fatalf("peak magnitude: got %.3f", m)
	}
}

func TestAnalyzer_Silence(t *testing.T) {
	a := NewAnalyzer(1024)
	for i, m := range a.Magnitude(make([]float32, 1024)) {
		if m != 0 {
			t.Fatalf("bin %d: got %v, want 0", i, m)
		}
	}
}

func TestFindPeaks_RangeAndThreshold(t *testing.T) {
	const n = 4096
	x := testutil.Tone([]testutil.Partial{
		{Freq: 200, Amplitude: 0.5},
		{Freq: 1000, Amplitude: 0.5},
		{Freq: 3000, Amplitude: 0.02},
	}, sampleRate, 0, n)

	a := NewAnalyzer(n)
	mag := a.Magnitude(testutil.ToF32(x))
	binHz := BinWidth(sampleRate, len(mag))

	peaks := FindPeaks(nil, mag, binHz, 500, 5000, 0.05)
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want only the 1 kHz partial: %+v", len(peaks), peaks)
	}
	if math.Abs(peaks[0].Frequency-1000) > 1 {
		t.Fatalf("peak at %.2f Hz, want 1000", peaks[0].Frequency)
	}
}

func TestAnalyzer_DoesNotAllocate(t *testing.T) {
	a := NewAnalyzer(2048)
	frame := testutil.SineF32(440, sampleRate, 0.5, 0, 2048)
	a.Magnitude(frame)

	if allocs := testing.AllocsPerRun(20, func() { a.Magnitude(frame) }); allocs != 0 {
		t.Fatalf("allocs per call: got %v, want 0", allocs)
	}
}

func TestAnalyzer_NonPowerOfTwoSize(t *testing.T) {
	// 1000 is not a power of two; the magnitude must still peak at the tone.
	a := NewAnalyzer(1000)
	mag := a.Magnitude(testutil.SineF32(960, sampleRate, 0.5, 0, 1000))

	best := 0
	for k := range mag {
		if mag[k] > mag[best] {
			best = k
		}
	}
	if got := float64(best) * BinWidth(sampleRate, len(mag)); math.Abs(got-960) > 1 {
		t.Fatalf("peak at %.1f Hz, want 960", got)
	}
}
