package spectrum

// CalibrationState is the phase of a NoiseCalibrator.
type CalibrationState int

const (
	Calibrating CalibrationState = iota
	Calibrated
)

func (s CalibrationState) String() string {
	switch s {
	case Calibrating:
		return "calibrating"
	case Calibrated:
		return "calibrated"
	default:
		return "unknown"
	}
}

// CalibrationConfig controls noise profile learning and subtraction.
type CalibrationConfig struct {
	Frames          int     // Frames averaged before the profile freezes
	LearnRate       float64 // EMA rate of the profile update
	OverSubtraction float64 // Multiplier on the profile when subtracting
	SpectralFloor   float64 // Fraction of the input magnitude always kept
}

// DefaultCalibrationConfig returns the standard calibration settings.
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		Frames:          50,
		LearnRate:       0.05,
		OverSubtraction: 2.0,
		SpectralFloor:   0.05,
	}
}

// NoiseCalibrator learns a per-bin noise magnitude profile from a fixed
// number of frames and then subtracts it from incoming spectra.
//
// Calibrating moves to Calibrated when the frame counter reaches
// cfg.Frames. The profile is frozen from then on; only Start or Reset
// return to Calibrating, clearing the profile.
type NoiseCalibrator struct {
	cfg     CalibrationConfig
	state   CalibrationState
	frames  int
	profile []float64
}

// NewNoiseCalibrator returns a calibrator in the Calibrating state.
func NewNoiseCalibrator(cfg CalibrationConfig) *NoiseCalibrator {
	def := DefaultCalibrationConfig()
	if cfg.Frames <= 0 {
		cfg.Frames = def.Frames
	}
	if cfg.LearnRate <= 0 || cfg.LearnRate > 1 {
		cfg.LearnRate = def.LearnRate
	}
	if cfg.OverSubtraction < 0 {
		cfg.OverSubtraction = def.OverSubtraction
	}
	if cfg.SpectralFloor < 0 || cfg.SpectralFloor > 1 {
		cfg.SpectralFloor = def.SpectralFloor
	}
	return &NoiseCalibrator{cfg: cfg}
}

// Start begins a new calibration, discarding any learned profile.
func (c *NoiseCalibrator) Start() {
	c.state = Calibrating
	c.frames = 0
	c.profile = c.profile[:0]
}

// Reset is Start; it exists for symmetry with the other stateful stages.
func (c *NoiseCalibrator) Reset() { c.Start() }

// State returns the current phase.
func (c *NoiseCalibrator) State() CalibrationState { return c.state }

// IsCalibrated reports whether the profile is frozen and denoising is active.
func (c *NoiseCalibrator) IsCalibrated() bool { return c.state == Calibrated }

// Progress returns the fraction of calibration frames seen, 1 once calibrated.
func (c *NoiseCalibrator) Progress() float64 {
	if c.state == Calibrated {
		return 1
	}
	return float64(c.frames) / float64(c.cfg.Frames)
}

// Frames returns how many frames the profile was learned from so far.
func (c *NoiseCalibrator) Frames() int { return c.frames }

// Profile returns the learned noise magnitudes. The slice is owned by the
// calibrator.
func (c *NoiseCalibrator) Profile() []float64 { return c.profile }

// Feed averages one magnitude spectrum into the profile and reports whether
// the calibrator is calibrated afterwards. Frames fed after calibration are
// ignored. A spectrum of a different length than the profile restarts the
// calibration with that frame.
func (c *NoiseCalibrator) Feed(mag []float64) bool {
	if c.state == Calibrated {
		return true
	}
	if len(mag) == 0 {
		return false
	}

	if c.frames == 0 || len(mag) != len(c.profile) {
		if cap(c.profile) < len(mag) {
			c.profile = make([]float64, len(mag))
		}
		c.profile = c.profile[:len(mag)]
		copy(c.profile, mag)
		c.frames = 1
	} else {
		rate := c.cfg.LearnRate
		for i, m := range mag {
			c.profile[i] += rate * (m - c.profile[i])
		}
		c.frames++
	}

	if c.frames >= c.cfg.Frames {
		c.state = Calibrated
	}
	return c.state == Calibrated
}

// Denoise subtracts the scaled noise profile from mag in place, keeping at
// least SpectralFloor of each bin. It does nothing until calibrated or when
// mag does not match the profile length.
func (c *NoiseCalibrator) Denoise(mag []float64) bool {
	if c.state != Calibrated || len(mag) != len(c.profile) {
		return false
	}

	over, floor := c.cfg.OverSubtraction, c.cfg.SpectralFloor
	for i, m := range mag {
		mag[i] = max(m-over*c.profile[i], floor*m)
	}
	return true
}
