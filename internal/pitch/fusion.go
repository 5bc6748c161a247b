package pitch

import "math"

// ConsensusMethod records which fusion rule produced an estimate.
type ConsensusMethod string

const (
	MethodNone     ConsensusMethod = ""
	MethodSingle   ConsensusMethod = "single"
	MethodYINNSDF  ConsensusMethod = "yin_nsdf"
	MethodYINOnly  ConsensusMethod = "yin_only"
	MethodNSDFOnly ConsensusMethod = "nsdf_only"
	MethodWeighted ConsensusMethod = "weighted"
	MethodFallback ConsensusMethod = "fallback"
)

// FusionConfig holds the tunable thresholds of the fusion policy.
type FusionConfig struct {
	AgreementCents float64 // Candidates closer than this agree
	SoloConfidence float64 // A lone YIN or NSDF result is trusted above this
}

// DefaultFusionConfig returns the standard fusion thresholds.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		AgreementCents: 50,
		SoloConfidence: 0.5,
	}
}

// Estimate is the single frequency chosen for a frame.
type Estimate struct {
	Frequency  float64
	Confidence float64
	Method     ConsensusMethod
}

// Valid reports whether the estimate carries a frequency.
func (e Estimate) Valid() bool { return e.Frequency > 0 }

// Fuse combines candidates into one estimate. Candidates without a frequency
// are ignored. The rules are tried in order:
//
//  1. no candidate gives the zero Estimate, one candidate is returned as is;
//  2. YIN and NSDF within AgreementCents give their weighted mean;
//  3. YIN alone above SoloConfidence, then NSDF alone above it;
//  4. the weighted mean of all candidates agreeing with the strongest one,
//     or the most confident candidate when no candidate carries weight.
//
// Disagreeing candidates are never averaged together.
func Fuse(candidates []Candidate, cfg FusionConfig) Estimate {
	var (
		count     int
		only      Candidate
		yin, nsdf Candidate
	)
	for _, c := range candidates {
		if !c.Valid() {
			continue
		}
		count++
		only = c
		switch c.Algorithm {
		case AlgorithmYIN:
			yin = c
		case AlgorithmNSDF:
			nsdf = c
		}
	}

	switch count {
	case 0:
		return Estimate{}
	case 1:
		return Estimate{Frequency: only.Frequency, Confidence: only.Confidence, Method: MethodSingle}
	}

	if yin.Valid() && nsdf.Valid() &&
		math.Abs(CentsBetween(yin.Frequency, nsdf.Frequency)) <= cfg.AgreementCents {
		if e, ok := weightedMean([]Candidate{yin, nsdf}, MethodYINNSDF); ok {
			return e
		}
	}

	if yin.Valid() && yin.Confidence > cfg.SoloConfidence {
		return Estimate{Frequency: yin.Frequency, Confidence: yin.Confidence, Method: MethodYINOnly}
	}
	if nsdf.Valid() && nsdf.Confidence > cfg.SoloConfidence {
		return Estimate{Frequency: nsdf.Frequency, Confidence: nsdf.Confidence, Method: MethodNSDFOnly}
	}

	var anchor Candidate
	for _, c := range candidates {
		if c.Valid() && c.Weight*c.Confidence > anchor.Weight*anchor.Confidence {
			anchor = c
		}
	}

	if anchor.Valid() {
		var wSum, fSum, cSum float64
		for _, c := range candidates {
			if !c.Valid() || math.Abs(CentsBetween(c.Frequency, anchor.Frequency)) > cfg.AgreementCents {
				continue
			}
			w := c.Weight * c.Confidence
			wSum += w
			fSum += w * c.Frequency
			cSum += w * c.Confidence
		}
		if wSum > 0 {
			return Estimate{Frequency: fSum / wSum, Confidence: cSum / wSum, Method: MethodWeighted}
		}
	}

	var best Candidate
	for _, c := range candidates {
		if c.Valid() && (!best.Valid() || c.Confidence > best.Confidence) {
			best = c
		}
	}
	return Estimate{Frequency: best.Frequency, Confidence: best.Confidence, Method: MethodFallback}
}

func weightedMean(cs []Candidate, method ConsensusMethod) (Estimate, bool) {
	var wSum, fSum, cSum float64
	for _, c := range cs {
		w := c.Weight * c.Confidence
		wSum += w
		fSum += w * c.Frequency
		cSum += w * c.Confidence
	}
	if wSum <= 0 {
		return Estimate{}, false
	}
	return Estimate{Frequency: fSum / wSum, Confidence: cSum / wSum, Method: method}, true
}
