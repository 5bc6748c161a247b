package pitch

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(" " + string(m) + " ")
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %q, %v", m, got, err)
		}
		if _, err := m.Settings(); err != nil {
			t.Errorf("%q has no settings: %v", m, err)
		}
	}

	if _, err := ParseMode("ROBUST"); err != nil {
		t.Errorf("mode names should be case-insensitive: %v", err)
	}
	if _, err := ParseMode("studio"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(studio): got %v, want ErrUnknownMode", err)
	}
}

func TestModeSettings(t *testing.T) {
	solo, _ := ModeSolo.Settings()
	robust, _ := ModeRobust.Settings()
	precision, _ := ModePrecision.Settings()

	if solo.Viterbi || !robust.Viterbi {
		t.Error("only the noisy-input modes should decode with Viterbi")
	}
	if !(robust.YINThreshold < solo.YINThreshold) {
		t.Error("robust mode should use a stricter YIN threshold")
	}
	if !(precision.ConfidenceGate > solo.ConfidenceGate) {
		t.Error("precision mode should gate harder than solo")
	}
}

func TestLookupInstrument(t *testing.T) {
	in, err := LookupInstrument("")
	if err != nil || in.Name != DefaultInstrument {
		t.Fatalf("empty name: got %+v, %v", in, err)
	}

	in, err = LookupInstrument("BASS")
	if err != nil || in.Name != "bass" {
		t.Fatalf("BASS: got %+v, %v", in, err)
	}

	if _, err := LookupInstrument("banjolele"); !errors.Is(err, ErrUnknownInstrument) {
		t.Fatalf("got %v, want ErrUnknownInstrument", err)
	}

	for _, in := range Instruments() {
		if !(in.MinFreq > 0 && in.MaxFreq > in.MinFreq) {
			t.Errorf("%s: bad range %.0f-%.0f", in.Name, in.MinFreq, in.MaxFreq)
		}
	}
}

func TestInstruments_ReturnsCopy(t *testing.T) {
	list := Instruments()
	list[0].MinFreq = 1

	if in, _ := LookupInstrument(list[0].Name); in.MinFreq == 1 {
		t.Fatal("Instruments exposed the preset table")
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(4)

	if h.Median(3) != 0 || h.Stability(3, 25) != 0 {
		t.Fatal("empty history should report zero median and stability")
	}
	if _, ok := h.Last(); ok {
		t.Fatal("empty history has a last entry")
	}

	for i, f := range []float64{100, 200, 300, 400, 500} {
		h.Push(HistoryEntry{Frequency: f, Timestamp: time.Duration(i) * time.Millisecond})
	}

	if h.Len() != 4 || h.Cap() != 4 {
		t.Fatalf("len=%d cap=%d, want 4 and 4", h.Len(), h.Cap())
	}
	if got := h.At(0).Frequency; got != 200 {
		t.Fatalf("oldest %v, want 200 after eviction", got)
	}
	if last, _ := h.Last(); last.Frequency != 500 {
		t.Fatalf("last %v, want 500", last.Frequency)
	}
	if got := h.Median(3); got != 400 {
		t.Fatalf("median of 3: got %v, want 400", got)
	}
	if got := h.Median(10); got != 350 {
		t.Fatalf("median of all: got %v, want 350", got)
	}
	if got := h.At(0).Frequency; got != 200 {
		t.Fatal("Median reordered the ring")
	}

	h.Reset()
	if h.Len() != 0 {
		t.Fatal("Reset kept entries")
	}
}

func TestHistory_Stability(t *testing.T) {
	steady := NewHistory(8)
	shaky := NewHistory(8)
	for i := range 8 {
		steady.Push(HistoryEntry{Frequency: 440})
		shaky.Push(HistoryEntry{Frequency: 440 * math.Pow(2, float64(i%2*60-30)/1200)})
	}

	if got := steady.Stability(8, 25); got != 1 {
		t.Errorf("steady stability %v, want 1", got)
	}
	if got := shaky.Stability(8, 25); got != 0 {
		t.Errorf("±30 cent jitter stability %v, want 0", got)
	}
}
