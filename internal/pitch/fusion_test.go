package pitch

import (
	"math"
	"testing"
)

func TestFuse(t *testing.T) {
	cfg := DefaultFusionConfig()

	tests := []struct {
		name       string
		candidates []Candidate
		freq       float64
		method     ConsensusMethod
	}{
		{
			name: "none",
			candidates: []Candidate{
				{Algorithm: AlgorithmYIN, Weight: 1},
				{Algorithm: AlgorithmNSDF, Weight: 1},
			},
			freq:   0,
			method: MethodNone,
		},
		{
			name: "single",
			candidates: []Candidate{
				{Algorithm: AlgorithmYIN, Weight: 1},
				{Algorithm: AlgorithmNSDF, Frequency: 220, Confidence: 0.3, Weight: 1},
			},
			freq:   220,
			method: MethodSingle,
		},
		{
			name: "yin and nsdf agree",
			candidates: []Candidate{
				{Algorithm: AlgorithmYIN, Frequency: 440, Confidence: 0.9, Weight: 1},
				{Algorithm: AlgorithmNSDF, Frequency: 442, Confidence: 0.9, Weight: 1},
				{Algorithm: AlgorithmHarmonic, Frequency: 880, Confidence: 0.9, Weight: 0.8},
			},
			freq:   441,
			method: MethodYINNSDF,
		},
		{
			name: "confident yin wins a disagreement",
			candidates: []Candidate{
				{Algorithm: AlgorithmYIN, Frequency: 440, Confidence: 0.8, Weight: 1},
				{Algorithm: AlgorithmNSDF, Frequency: 523.25, Confidence: 0.9, Weight: 1},
			},
			freq:   440,
			method: MethodYINOnly,
		},
		{
			name: "confident nsdf when yin is weak",
			candidates: []Candidate{
				{Algorithm: AlgorithmYIN, Frequency: 440, Confidence: 0.4, Weight: 1},
				{Algorithm: AlgorithmNSDF, Frequency: 523.25, Confidence: 0.7, Weight: 1},
			},
			freq:   523.25,
			method: MethodNSDFOnly,
		},
		{
			name: "weighted around the strongest",
			candidates: []Candidate{
				{Algorithm: AlgorithmYIN, Frequency: 300, Confidence: 0.4, Weight: 1},
				{Algorithm: AlgorithmNSDF, Frequency: 500, Confidence: 0.3, Weight: 1},
				{Algorithm: AlgorithmHarmonic, Frequency: 301, Confidence: 0.4, Weight: 0.8},
			},
			freq:   (300*0.4 + 301*0.32) / 0.72,
			method: MethodWeighted,
		},
		{
			name: "fallback without weights",
			candidates: []Candidate{
				{Algorithm: "a", Frequency: 300, Confidence: 0.4},
				{Algorithm: "b", Frequency: 500, Confidence: 0.45},
			},
			freq:   500,
			method: MethodFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Fuse(tt.candidates, cfg)
			if e.Method != tt.method {
				t.Errorf("method %q, want %q", e.Method, tt.method)
			}
			if math.Abs(e.Frequency-tt.freq) > 1e-9 {
				t.Errorf("frequency %.4f, want %.4f", e.Frequency, tt.freq)
			}
		})
	}
}

func TestFuse_NeverAveragesDisagreement(t *testing.T) {
	// Three semitones apart with no confident detector.
	e := Fuse([]Candidate{
		{Algorithm: AlgorithmYIN, Frequency: 440, Confidence: 0.45, Weight: 1},
		{Algorithm: AlgorithmNSDF, Frequency: 523.25, Confidence: 0.4, Weight: 1},
	}, DefaultFusionConfig())

	if math.Abs(e.Frequency-440) > 1e-9 {
		t.Fatalf("got %.2f Hz via %q, want the stronger 440 Hz", e.Frequency, e.Method)
	}
	if e.Method != MethodWeighted {
		t.Fatalf("method %q, want %q", e.Method, MethodWeighted)
	}
}

func TestFuse_ConfidenceIsWeighted(t *testing.T) {
	e := Fuse([]Candidate{
		{Algorithm: AlgorithmYIN, Frequency: 440, Confidence: 1.0, Weight: 1},
		{Algorithm: AlgorithmNSDF, Frequency: 440, Confidence: 0.5, Weight: 1},
	}, DefaultFusionConfig())

	want := (1.0*1.0 + 0.5*0.5) / 1.5
	if math.Abs(e.Confidence-want) > 1e-9 {
		t.Fatalf("confidence %.4f, want %.4f", e.Confidence, want)
	}
}
