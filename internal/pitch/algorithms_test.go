package pitch

import (
	"math"
	"testing"

	"github.com/0xlemi/tunesuite/internal/spectrum"
	"github.com/0xlemi/tunesuite/internal/testutil"
)

const (
	testRate  = 48000.0
	testFrame = 2048
)

func configured(a Algorithm, frame int) Algorithm {
	a.Configure(frame, testRate, 50, 2000)
	return a
}

func TestTimeDomainAlgorithms_Sine440(t *testing.T) {
	in := Input{Samples: testutil.Sine(440, testRate, 0.5, 0, testFrame), SampleRate: testRate}

	for _, a := range []Algorithm{
		configured(NewYIN(DefaultYINConfig()), testFrame),
		configured(NewNSDF(DefaultNSDFConfig()), testFrame),
	} {
		t.Run(a.Name(), func(t *testing.T) {
			c := a.Analyze(in)
			if c.Algorithm != a.Name() {
				t.Errorf("candidate algorithm %q, want %q", c.Algorithm, a.Name())
			}
			if math.Abs(c.Frequency-440) > 0.5 {
				t.Errorf("frequency %.3f Hz, want 440 ± 0.5", c.Frequency)
			}
			if c.Confidence < 0.8 || c.Confidence > 1 {
				t.Errorf("confidence %.3f outside [0.8, 1]", c.Confidence)
			}
			if c.Weight != 1 {
				t.Errorf("weight %.2f, want 1", c.Weight)
			}
		})
	}
}

func TestTimeDomainAlgorithms_RejectNoise(t *testing.T) {
	in := Input{Samples: testutil.Noise(7, 0.5, testFrame), SampleRate: testRate}

	for _, a := range []Algorithm{
		configured(NewYIN(DefaultYINConfig()), testFrame),
		configured(NewNSDF(DefaultNSDFConfig()), testFrame),
	} {
		if c := a.Analyze(in); c.Valid() {
			t.Errorf("%s found %.1f Hz (confidence %.2f) in white noise", a.Name(), c.Frequency, c.Confidence)
		}
	}
}

func TestTimeDomainAlgorithms_Silence(t *testing.T) {
	in := Input{Samples: make([]float64, testFrame), SampleRate: testRate}

	for _, a := range []Algorithm{
		configured(NewYIN(DefaultYINConfig()), testFrame),
		configured(NewNSDF(DefaultNSDFConfig()), testFrame),
	} {
		if c := a.Analyze(in); c.Valid() {
			t.Errorf("%s found %.1f Hz in silence", a.Name(), c.Frequency)
		}
	}
}

func TestYIN_ResizesToFrame(t *testing.T) {
	y := NewYIN(DefaultYINConfig())
	y.Configure(testFrame, testRate, 50, 2000)

	c := y.Analyze(Input{Samples: testutil.Sine(330, testRate, 0.5, 0, 1024), SampleRate: testRate})
	if math.Abs(c.Frequency-330) > 1 {
		t.Fatalf("1024-sample frame: got %.2f Hz, want 330", c.Frequency)
	}
}

func TestYIN_SetThreshold(t *testing.T) {
	y := NewYIN(DefaultYINConfig())
	y.SetThreshold(0.1)
	if y.Threshold() != 0.1 {
		t.Fatalf("threshold %v, want 0.1", y.Threshold())
	}
	y.SetThreshold(-1)
	if y.Threshold() != 0.1 {
		t.Fatalf("non-positive threshold was accepted: %v", y.Threshold())
	}
}

func harmonicInput(samples []float64) Input {
	a := spectrum.NewAnalyzer(len(samples))
	mag := a.Magnitude(testutil.ToF32(samples))
	return Input{Samples: samples, Spectrum: mag, SampleRate: testRate}
}

func TestHarmonic_PureTone(t *testing.T) {
	h := configured(NewHarmonic(DefaultHarmonicConfig()), 4096)

	c := h.Analyze(harmonicInput(testutil.Sine(440, testRate, 0.5, 0, 4096)))
	if math.Abs(c.Frequency-440) > 1 {
		t.Fatalf("frequency %.2f Hz, want 440 ± 1", c.Frequency)
	}
	if c.Confidence < 0.9 {
		t.Fatalf("confidence %.3f, want > 0.9", c.Confidence)
	}
	if c.Weight != 0.8 {
		t.Fatalf("weight %.2f, want 0.8", c.Weight)
	}
}

func TestHarmonic_MissingFundamental(t *testing.T) {
	h := configured(NewHarmonic(DefaultHarmonicConfig()), 4096)

	tone := testutil.Tone([]testutil.Partial{
		{Freq: 440, Amplitude: 0.3},
		{Freq: 660, Amplitude: 0.3},
		{Freq: 880, Amplitude: 0.3},
	}, testRate, 0, 4096)

	c := h.Analyze(harmonicInput(tone))
	if math.Abs(c.Frequency-220) > 1 {
		t.Fatalf("frequency %.2f Hz, want the implied 220 Hz fundamental", c.Frequency)
	}
}

func TestHarmonic_WeakFundamental(t *testing.T) {
	h := configured(NewHarmonic(DefaultHarmonicConfig()), 4096)

	tone := testutil.Tone([]testutil.Partial{
		{Freq: 220, Amplitude: 0.1},
		{Freq: 440, Amplitude: 0.5},
		{Freq: 660, Amplitude: 0.2},
	}, testRate, 0, 4096)

	c := h.Analyze(harmonicInput(tone))
	if math.Abs(c.Frequency-220) > 1 {
		t.Fatalf("frequency %.2f Hz, want 220 rather than the dominant second harmonic", c.Frequency)
	}
}

func TestHarmonic_NeedsSpectrum(t *testing.T) {
	h := configured(NewHarmonic(DefaultHarmonicConfig()), testFrame)

	c := h.Analyze(Input{Samples: testutil.Sine(440, testRate, 0.5, 0, testFrame), SampleRate: testRate})
	if c.Valid() {
		t.Fatalf("found %.1f Hz without a spectrum", c.Frequency)
	}
}

func TestHarmonic_RejectsNoise(t *testing.T) {
	h := configured(NewHarmonic(DefaultHarmonicConfig()), 4096)

	if c := h.Analyze(harmonicInput(testutil.Noise(11, 0.5, 4096))); c.Valid() {
		t.Fatalf("found %.1f Hz (confidence %.2f) in white noise", c.Frequency, c.Confidence)
	}
}

func TestFrequencyToNote(t *testing.T) {
	tests := []struct {
		freq   float64
		a4     float64
		name   string
		octave int
		midi   int
		cents  float64
	}{
		{440, 440, "A", 4, 69, 0},
		{261.63, 440, "C", 4, 60, 0},
		{329.63, 440, "E", 4, 64, 0},
		{41.2, 440, "E", 1, 28, 0},
		{466.16, 440, "A#", 4, 70, 0},
		{442, 442, "A", 4, 69, 0},
		{440, 442, "A", 4, 69, -7.85},
	}

	for _, tt := range tests {
		n := FrequencyToNote(tt.freq, tt.a4)
		if n.Name != tt.name || n.Octave != tt.octave || n.Midi != tt.midi {
			t.Errorf("%.2f Hz @ %.0f: got %s%d (midi %d), want %s%d (midi %d)",
				tt.freq, tt.a4, n.Name, n.Octave, n.Midi, tt.name, tt.octave, tt.midi)
		}
		if math.Abs(n.Cents-tt.cents) > 0.5 {
			t.Errorf("%.2f Hz @ %.0f: cents %.2f, want %.2f", tt.freq, tt.a4, n.Cents, tt.cents)
		}
	}

	if n := FrequencyToNote(0, 440); n != (Note{}) {
		t.Errorf("zero frequency: got %+v, want zero Note", n)
	}
}
