package smoothing

import (
	"math"
	"testing"
	"time"
)

func feedVibrato(v *VibratoDetector, rate, depth float64, samples int, step time.Duration) VibratoState {
	var s VibratoState
	for i := range samples {
		ts := time.Duration(i) * step
		c := depth * math.Sin(2*math.Pi*rate*ts.Seconds())
		s = v.Push(shift(440, c), ts)
	}
	return s
}

func TestVibratoDetector_Detects(t *testing.T) {
	v := NewVibratoDetector(DefaultVibratoConfig())
	s := feedVibrato(v, 5.5, 30, 100, 10*time.Millisecond)

	if !s.Detected {
		t.Fatalf("vibrato not detected: %+v", s)
	}
	if math.Abs(s.DepthCents-30) > 3 {
		t.Fatalf("depth: got %.2f, want ~30", s.DepthCents)
	}
	if s.RateHz < 4.5 || s.RateHz > 6.5 {
		t.Fatalf("rate: got %.2f, want ~5.5", s.RateHz)
	}
}

func TestVibratoDetector_SteadyPitch(t *testing.T) {
	v := NewVibratoDetector(DefaultVibratoConfig())
	s := feedVibrato(v, 5.5, 0, 100, 10*time.Millisecond)
	if s.Detected {
		t.Fatalf("steady pitch reported as vibrato: %+v", s)
	}
}

func TestVibratoDetector_ShallowOrSlow(t *testing.T) {
	tests := []struct {
		name        string
		rate, depth float64
	}{
		{"shallow", 5.5, 3},
		{"slow", 1, 30},
		{"fast", 14, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVibratoDetector(DefaultVibratoConfig())
			if s := feedVibrato(v, tt.rate, tt.depth, 100, 10*time.Millisecond); s.Detected {
				t.Fatalf("unexpected detection: %+v", s)
			}
		})
	}
}

func TestVibratoDetector_ShortHistory(t *testing.T) {
	v := NewVibratoDetector(DefaultVibratoConfig())
	if s := feedVibrato(v, 5.5, 30, 30, 10*time.Millisecond); s.Detected {
		t.Fatalf("detected on %d ms of history", 300)
	}
}

func TestVibratoDetector_SilenceResets(t *testing.T) {
	v := NewVibratoDetector(DefaultVibratoConfig())
	feedVibrato(v, 5.5, 30, 100, 10*time.Millisecond)

	if s := v.Push(0, time.Second); s.Detected {
		t.Fatal("silence did not reset vibrato")
	}
	if v.State().Detected {
		t.Fatal("state kept after reset")
	}
}
