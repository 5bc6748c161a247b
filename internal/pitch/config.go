package pitch

import (
	"fmt"
	"strings"

	"github.com/0xlemi/tunesuite/internal/filter"
	"github.com/0xlemi/tunesuite/internal/smoothing"
	"github.com/0xlemi/tunesuite/internal/spectrum"
)

// Mode selects a trade-off between responsiveness and robustness.
type Mode string

const (
	ModeSolo      Mode = "solo"
	ModeEnsemble  Mode = "ensemble"
	ModeRobust    Mode = "robust"
	ModePrecision Mode = "precision"
)

// Modes lists the supported modes.
var Modes = []Mode{ModeSolo, ModeEnsemble, ModeRobust, ModePrecision}

// ModeSettings are the engine parameters a mode selects.
type ModeSettings struct {
	ConfidenceGate float64 // Fused estimates below this are not displayed
	YINThreshold   float64
	Kalman         bool
	Viterbi        bool
	QScale         float64 // Tracking filter Q multiplier
	ProcessNoise   float64 // Kalman Q
}

var modeSettings = map[Mode]ModeSettings{
	ModeSolo:      {ConfidenceGate: 0.5, YINThreshold: 0.15, Kalman: true, QScale: 1.0, ProcessNoise: 1.0},
	ModeEnsemble:  {ConfidenceGate: 0.6, YINThreshold: 0.12, Kalman: true, Viterbi: true, QScale: 1.5, ProcessNoise: 1.0},
	ModeRobust:    {ConfidenceGate: 0.6, YINThreshold: 0.10, Kalman: true, Viterbi: true, QScale: 1.0, ProcessNoise: 1.0},
	ModePrecision: {ConfidenceGate: 0.7, YINThreshold: 0.15, Kalman: true, QScale: 1.0, ProcessNoise: 0.25},
}

// ParseMode converts a name to a Mode.
func ParseMode(name string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := modeSettings[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return m, nil
}

// Settings returns the parameters of m.
func (m Mode) Settings() (ModeSettings, error) {
	s, ok := modeSettings[m]
	if !ok {
		return ModeSettings{}, fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
	}
	return s, nil
}

// DisplayMode selects which stabilized layer becomes Result.Frequency.
type DisplayMode string

const (
	DisplayTuner DisplayMode = "tuner"
	DisplayGraph DisplayMode = "graph"
)

// ParseDisplay converts a name to a DisplayMode.
func ParseDisplay(name string) (DisplayMode, error) {
	switch d := DisplayMode(strings.ToLower(strings.TrimSpace(name))); d {
	case DisplayTuner, DisplayGraph:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown display %q", ErrInvalidConfig, name)
	}
}

// A4 limits accepted by SetA4.
const (
	MinA4 = 400.0
	MaxA4 = 480.0
)

// Config holds everything needed to build an Engine.
type Config struct {
	SampleRate int
	FrameSize  int
	A4         float64
	Instrument string
	Mode       Mode
	Display    DisplayMode

	RMSThreshold    float64 // Frames quieter than this are silence
	HistorySize     int     // Accepted estimates kept for median and stability
	MedianFrames    int     // History entries in the median layer
	ComputeSpectrum bool    // Compute a spectrum when the frame carries none
	Harmonic        bool    // Run the spectral harmonic matcher
	SanityHarmonics int     // Harmonics inspected by the spectral sanity check
	SanityPenalty   float64 // Confidence factor for candidates the spectrum does not support

	YIN         YINConfig
	NSDF        NSDFConfig
	HarmonicCfg HarmonicConfig
	Fusion      FusionConfig
	Tracking    filter.TrackingConfig
	Calibration spectrum.CalibrationConfig
	Kalman      smoothing.KalmanConfig
	Viterbi     smoothing.ViterbiConfig
	Tuner       smoothing.TunerConfig
	Graph       smoothing.GraphConfig
	Vibrato     smoothing.VibratoConfig
}

// DefaultConfig returns a chromatic, solo-mode configuration for 48 kHz
// frames of 2048 samples.
func DefaultConfig() Config {
	return Config{
		SampleRate:      48000,
		FrameSize:       2048,
		A4:              440,
		Instrument:      DefaultInstrument,
		Mode:            ModeSolo,
		Display:         DisplayTuner,
		RMSThreshold:    0.005,
		HistorySize:     32,
		MedianFrames:    5,
		Harmonic:        true,
		SanityHarmonics: 4,
		SanityPenalty:   0.5,
		YIN:             DefaultYINConfig(),
		NSDF:            DefaultNSDFConfig(),
		HarmonicCfg:     DefaultHarmonicConfig(),
		Fusion:          DefaultFusionConfig(),
		Tracking:        filter.DefaultTrackingConfig(),
		Calibration:     spectrum.DefaultCalibrationConfig(),
		Kalman:          smoothing.DefaultKalmanConfig(),
		Viterbi:         smoothing.DefaultViterbiConfig(),
		Tuner:           smoothing.DefaultTunerConfig(),
		Graph:           smoothing.DefaultGraphConfig(),
		Vibrato:         smoothing.DefaultVibratoConfig(),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.FrameSize < 64 {
		return fmt.Errorf("%w: frame size %d below 64", ErrInvalidConfig, c.FrameSize)
	}
	if c.A4 < MinA4 || c.A4 > MaxA4 {
		return fmt.Errorf("%w: %.2f Hz outside %.0f-%.0f", ErrInvalidA4, c.A4, MinA4, MaxA4)
	}
	if _, err := LookupInstrument(c.Instrument); err != nil {
		return err
	}
	if _, err := c.Mode.Settings(); err != nil {
		return err
	}
	if _, err := ParseDisplay(string(c.Display)); err != nil {
		return err
	}
	if c.RMSThreshold < 0 {
		return fmt.Errorf("%w: negative RMS threshold", ErrInvalidConfig)
	}
	if c.HistorySize < 20 || c.HistorySize > 50 {
		return fmt.Errorf("%w: history size %d outside 20-50", ErrInvalidConfig, c.HistorySize)
	}
	if c.MedianFrames < 1 || c.MedianFrames > c.HistorySize {
		return fmt.Errorf("%w: median frames %d", ErrInvalidConfig, c.MedianFrames)
	}
	if c.Fusion.AgreementCents <= 0 {
		return fmt.Errorf("%w: agreement threshold must be positive", ErrInvalidConfig)
	}
	if c.SanityPenalty < 0 || c.SanityPenalty > 1 {
		return fmt.Errorf("%w: sanity penalty %.2f outside 0-1", ErrInvalidConfig, c.SanityPenalty)
	}
	return nil
}
