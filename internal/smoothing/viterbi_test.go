package smoothing

import (
	"math"
	"testing"
)

func newDecoder(t *testing.T) *ViterbiDecoder {
	t.Helper()
	d, err := NewViterbiDecoder(DefaultViterbiConfig())
	if err != nil {
		t.Fatalf("NewViterbiDecoder: %v", err)
	}
	return d
}

func shift(f, c float64) float64 { return f * math.Pow(2, c/1200) }

func TestViterbiDecoder_InvalidGrid(t *testing.T) {
	cfg := DefaultViterbiConfig()
	cfg.MinFreq, cfg.MaxFreq = 500, 100
	if _, err := NewViterbiDecoder(cfg); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestViterbiDecoder_FollowsSteadyInput(t *testing.T) {
	d := newDecoder(t)
	for i := range 10 {
		f := 440 + 0.5*float64(i%3)
		if got := d.Step(f, 0.9); got != f {
			t.Fatalf("frame %d: got %v, want %v", i, got, f)
		}
	}
	if c := math.Abs(cents(d.StateFrequency(d.State()), 440)); c > 10 {
		t.Fatalf("decoded state %.1f cents from 440 Hz", c)
	}
}

func TestViterbiDecoder_RejectsSpike(t *testing.T) {
	d := newDecoder(t)
	for range 10 {
		d.Step(440, 0.9)
	}

	if got := d.Step(shift(440, 200), 0.9); got != 440 {
		t.Fatalf("spike passed through: got %v", got)
	}
	if got := d.Step(440, 0.9); got != 440 {
		t.Fatalf("after spike: got %v, want 440", got)
	}
}

func TestViterbiDecoder_ReacquiresSustainedChange(t *testing.T) {
	d := newDecoder(t)
	for range 10 {
		d.Step(440, 0.9)
	}

	target := shift(440, 300)
	var got float64
	for i := range 3 {
		got = d.Step(target, 0.9)
		if i < 2 && got != 440 {
			t.Fatalf("frame %d: moved before re-acquire: %v", i, got)
		}
	}
	if got != target {
		t.Fatalf("after 3 frames: got %v, want %v", got, target)
	}
	if got := d.Step(target, 0.9); got != target {
		t.Fatalf("after re-acquire: got %v, want %v", got, target)
	}
}

func TestViterbiDecoder_ReacquiresOutsideWindow(t *testing.T) {
	d := newDecoder(t)
	d.Step(60, 0.9)

	for range 3 {
		d.Step(1800, 0.9)
	}
	if got := d.Step(1800, 0.9); got != 1800 {
		t.Fatalf("got %v, want 1800", got)
	}
}

func TestViterbiDecoder_InvalidObservation(t *testing.T) {
	d := newDecoder(t)
	d.Step(440, 0.9)
	if got := d.Step(0, 0.9); got != 440 {
		t.Fatalf("got %v, want last accepted 440", got)
	}
}

func TestViterbiDecoder_SetRange(t *testing.T) {
	d := newDecoder(t)
	if err := d.SetRange(40, 400); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	if f := d.StateFrequency(0); f != 40 {
		t.Fatalf("state 0: got %v, want 40", f)
	}
	if f := d.StateFrequency(359); math.Abs(f-400) > 1e-9 {
		t.Fatalf("state 359: got %v, want 400", f)
	}
}
