package smoothing

import (
	"math"
	"testing"
	"time"
)

func TestGraphStabilizer_ClampsDrift(t *testing.T) {
	g := NewGraphStabilizer(DefaultGraphConfig())
	g.Update(440, 0.95, 0)

	got := g.Update(shift(440, 40), 0.95, 20*time.Millisecond)
	if c := cents(got, 440); math.Abs(c-15) > 1e-6 {
		t.Fatalf("drift: got %.3f cents, want 15", c)
	}
}

func TestGraphStabilizer_FastCommit(t *testing.T) {
	g := NewGraphStabilizer(DefaultGraphConfig())
	g.Update(440, 0.95, 0)

	b := shift(440, 200)
	step := 25 * time.Millisecond
	for i := 1; i <= 3; i++ {
		got := g.Update(b, 0.95, time.Duration(i)*step)
		if i < 3 && got != 440 {
			t.Fatalf("frame %d: committed early to %v", i, got)
		}
		if i == 3 && got != b {
			t.Fatalf("frame %d: got %v, want %v", i, got, b)
		}
	}
}

func TestGraphStabilizer_SlowCommitAtLowConfidence(t *testing.T) {
	g := NewGraphStabilizer(DefaultGraphConfig())
	g.Update(440, 0.8, 0)

	b := shift(440, 200)
	step := 20 * time.Millisecond
	committed := 0
	for i := 1; i <= 8; i++ {
		if g.Update(b, 0.8, time.Duration(i)*step) == b {
			committed = i
			break
		}
	}
	// Six frames span 100 ms from the first, which covers 95 ms.
	if committed != 6 {
		t.Fatalf("committed at frame %d, want 6", committed)
	}
}

func TestGraphStabilizer_InterruptedRunRestarts(t *testing.T) {
	g := NewGraphStabilizer(DefaultGraphConfig())
	g.Update(440, 0.95, 0)

	b := shift(440, 200)
	step := 25 * time.Millisecond
	g.Update(b, 0.95, step)
	g.Update(b, 0.95, 2*step)
	g.Update(440, 0.95, 3*step)
	if got := g.Update(b, 0.95, 4*step); got == b {
		t.Fatal("interrupted run committed")
	}
}

func TestGraphStabilizer_Reference(t *testing.T) {
	g := NewGraphStabilizer(DefaultGraphConfig())
	g.Update(440, 0.95, 0)
	g.SetReference(432)
	if g.Output() != 0 {
		t.Fatal("reference change should reset the stabilizer")
	}
}
