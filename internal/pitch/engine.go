package pitch

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/0xlemi/tunesuite/internal/audio"
	"github.com/0xlemi/tunesuite/internal/filter"
	"github.com/0xlemi/tunesuite/internal/smoothing"
	"github.com/0xlemi/tunesuite/internal/spectrum"
)

// Stability is measured over this many recent estimates; a standard
// deviation of stabilitySpread cents maps to zero.
const (
	stabilityFrames = 8
	stabilitySpread = 25.0
)

// sanityLevel is the fraction of the strongest bin a harmonic must reach to
// support a time-domain candidate.
const sanityLevel = 0.1

// A time-domain candidate is moved down to a sub-harmonic only when the
// spectral matcher reports it with at least octaveConfidence and the bin
// there reaches subharmonicLevel of the strongest bin.
const (
	octaveConfidence = 0.7
	subharmonicLevel = 0.02
	maxSubharmonic   = 5
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for state transitions.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithAlgorithms replaces the default estimator set.
func WithAlgorithms(algs ...Algorithm) Option {
	return func(e *Engine) {
		if len(algs) > 0 {
			e.algorithms = algs
			e.yin = nil
			for _, a := range algs {
				if y, ok := a.(*YIN); ok {
					e.yin = y
				}
			}
		}
	}
}

// Engine turns audio frames into pitch results.
//
// The engine owns every piece of cross-frame state: the tracking filter,
// noise profile, smoothing stages and history. Working buffers are sized to
// the frame length and only reallocated when the frame length or sample
// rate changes. All methods are safe for concurrent use; Analyze calls are
// serialized with the mutators.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	settings   ModeSettings
	instrument Instrument
	logger     *log.Logger

	algorithms []Algorithm
	yin        *YIN

	tracker    *filter.AdaptiveTrackingFilter
	analyzer   *spectrum.Analyzer
	calibrator *spectrum.NoiseCalibrator
	kalman     *smoothing.KalmanFilter
	viterbi    *smoothing.ViterbiDecoder
	tuner      *smoothing.TunerStabilizer
	graph      *smoothing.GraphStabilizer
	vibrato    *smoothing.VibratoDetector
	history    *History

	sampleRate int
	frameSize  int
	seen       int64

	raw        []float64
	filtered   []float64
	mag        []float64
	candidates []Candidate
}

// New builds an Engine from cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inst, err := LookupInstrument(cfg.Instrument)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Mode.Settings()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		settings:   settings,
		instrument: inst,
		logger:     log.New(io.Discard),
	}

	e.yin = NewYIN(cfg.YIN)
	e.yin.SetThreshold(settings.YINThreshold)
	e.algorithms = []Algorithm{e.yin, NewNSDF(cfg.NSDF)}
	if cfg.Harmonic {
		e.algorithms = append(e.algorithms, NewHarmonic(cfg.HarmonicCfg))
	}

	for _, opt := range opts {
		opt(e)
	}

	tc := cfg.Tracking
	tc.MinFreq, tc.MaxFreq = inst.MinFreq, inst.MaxFreq
	tc.QScale = settings.QScale
	e.tracker, err = filter.NewAdaptiveTrackingFilter(tc, float64(cfg.SampleRate), cfg.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	vc := cfg.Viterbi
	vc.MinFreq, vc.MaxFreq = inst.MinFreq, inst.MaxFreq
	e.viterbi, err = smoothing.NewViterbiDecoder(vc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	gc := cfg.Graph
	gc.A4 = cfg.A4
	e.graph = smoothing.NewGraphStabilizer(gc)

	e.kalman = smoothing.NewKalmanFilter(cfg.Kalman)
	e.kalman.SetProcessNoise(settings.ProcessNoise)
	e.tuner = smoothing.NewTunerStabilizer(cfg.Tuner)
	e.vibrato = smoothing.NewVibratoDetector(cfg.Vibrato)
	e.history = NewHistory(cfg.HistorySize)
	e.calibrator = spectrum.NewNoiseCalibrator(cfg.Calibration)
	e.analyzer = spectrum.NewAnalyzer(cfg.FrameSize)
	e.candidates = make([]Candidate, 0, len(e.algorithms))

	e.resize(cfg.SampleRate, cfg.FrameSize)
	return e, nil
}

// Analyze estimates the pitch of one frame.
func (e *Engine) Analyze(buf *audio.AudioBuffer) Result {
	var r Result
	e.AnalyzeInto(buf, &r)
	return r
}

// AnalyzeInto is Analyze writing into r, reusing r.AlgorithmResults.
func (e *Engine) AnalyzeInto(buf *audio.AudioBuffer, r *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r.reset()
	if buf == nil || len(buf.Samples) == 0 || buf.SampleRate <= 0 {
		return
	}

	n, rate := len(buf.Samples), buf.SampleRate
	if rate != e.sampleRate || n != e.frameSize {
		e.logger.Info("reconfiguring engine",
			"sample_rate", rate, "frame_size", n,
			"previous_rate", e.sampleRate, "previous_size", e.frameSize)
		e.reconfigure(rate, n)
	}

	ts := buf.Timestamp
	if ts == 0 {
		ts = time.Duration(e.seen) * time.Second / time.Duration(rate)
	}
	e.seen += int64(n)
	r.Timestamp = ts

	// A non-finite sample makes the level non-finite; such frames never reach
	// the filter delay lines.
	rms, _ := buf.Level()
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		rms = 0
	}
	r.RMS = rms
	if rms < e.cfg.RMSThreshold {
		e.vibrato.Reset()
		e.tracker.UpdateCoefficients(0, float64(rate), 0)
		return
	}

	for i, s := range buf.Samples {
		e.raw[i] = float64(s)
	}
	coarse, _ := e.tracker.ProcessFullPipeline(e.raw, e.filtered)
	r.Layers.Coarse = coarse

	in := Input{
		Samples:    e.filtered,
		Spectrum:   e.spectrum(buf),
		SampleRate: float64(rate),
	}

	e.candidates = e.candidates[:0]
	for _, a := range e.algorithms {
		e.candidates = append(e.candidates, a.Analyze(in))
	}
	if in.Spectrum != nil {
		e.checkHarmonics(in.Spectrum, in.SampleRate)
		e.correctOctave(in.Spectrum, in.SampleRate)
	}
	r.AlgorithmResults = append(r.AlgorithmResults, e.candidates...)

	est := Fuse(e.candidates, e.cfg.Fusion)
	if est.Valid() && (est.Frequency < e.instrument.MinFreq || est.Frequency > e.instrument.MaxFreq) {
		est = Estimate{}
	}
	r.Consensus = est.Method
	r.Layers.Fused = est.Frequency

	e.tracker.UpdateCoefficients(est.Frequency, float64(rate), est.Confidence)

	if !est.Valid() || est.Confidence < e.settings.ConfidenceGate {
		return
	}

	f := est.Frequency
	if e.settings.Kalman {
		e.kalman.Predict(ts)
		f = e.kalman.Update(f, est.Confidence)
		r.Layers.Kalman = f
	}
	if e.settings.Viterbi {
		f = e.viterbi.Step(f, est.Confidence)
		r.Layers.Viterbi = f
	}

	e.history.Push(HistoryEntry{Frequency: f, Timestamp: ts, Confidence: est.Confidence, RMS: rms})
	r.Vibrato = e.vibrato.Push(f, ts)
	r.Layers.Median = e.history.Median(e.cfg.MedianFrames)
	r.Layers.Tuner = e.tuner.Update(f, ts)
	r.Layers.Graph = e.graph.Update(f, est.Confidence, ts)
	r.Stability = e.history.Stability(stabilityFrames, stabilitySpread)

	out := r.Layers.Tuner
	if e.cfg.Display == DisplayGraph {
		out = r.Layers.Graph
	}
	note := FrequencyToNote(out, e.cfg.A4)

	r.Frequency = out
	r.Note = note.Name
	r.Octave = note.Octave
	r.Midi = note.Midi
	r.Cents = note.Cents
	r.Confidence = est.Confidence
}

// spectrum returns the frame's magnitude spectrum, denoised when a noise
// profile is available, or nil when there is none.
func (e *Engine) spectrum(buf *audio.AudioBuffer) []float64 {
	var mag []float64
	switch {
	case len(buf.Spectrum) > 0:
		mag = buf.Spectrum
	case e.cfg.ComputeSpectrum:
		mag = e.analyzer.Magnitude(buf.Samples)
	default:
		return nil
	}

	if cap(e.mag) < len(mag) {
		e.mag = make([]float64, len(mag))
	}
	e.mag = e.mag[:len(mag)]
	copy(e.mag, mag)

	e.calibrator.Denoise(e.mag)
	return e.mag
}

// checkHarmonics lowers the confidence of time-domain candidates whose
// first harmonics carry no energy in the spectrum.
func (e *Engine) checkHarmonics(mag []float64, sampleRate float64) {
	binHz := spectrum.BinWidth(sampleRate, len(mag))
	if binHz <= 0 {
		return
	}

	lo := max(1, int(e.instrument.MinFreq/binHz))
	hi := min(len(mag)-2, int(e.instrument.MaxFreq*float64(e.cfg.SanityHarmonics)/binHz)+1)
	strongest := 0.0
	for i := lo; i <= hi; i++ {
		strongest = max(strongest, mag[i])
	}
	if strongest <= 0 {
		return
	}

	for i := range e.candidates {
		c := &e.candidates[i]
		if !c.Valid() || c.Algorithm == AlgorithmHarmonic {
			continue
		}

		supported := false
		for h := 1; h <= e.cfg.SanityHarmonics && !supported; h++ {
			b := int(math.Round(float64(h) * c.Frequency / binHz))
			if b < 1 || b > len(mag)-2 {
				break
			}
			level := max(mag[b-1], mag[b], mag[b+1])
			supported = level >= sanityLevel*strongest
		}
		if !supported {
			c.Confidence *= e.cfg.SanityPenalty
		}
	}
}

// correctOctave moves time-domain candidates that sit n times above a
// confident spectral estimate down to that sub-harmonic, provided the
// spectrum carries energy there.
func (e *Engine) correctOctave(mag []float64, sampleRate float64) {
	var ref Candidate
	for _, c := range e.candidates {
		if c.Algorithm == AlgorithmHarmonic && c.Valid() {
			ref = c
		}
	}
	if ref.Confidence < octaveConfidence {
		return
	}

	binHz := spectrum.BinWidth(sampleRate, len(mag))
	if binHz <= 0 {
		return
	}
	b := int(math.Round(ref.Frequency / binHz))
	if b < 1 || b > len(mag)-2 {
		return
	}
	strongest := 0.0
	for _, m := range mag[1:] {
		strongest = max(strongest, m)
	}
	if max(mag[b-1], mag[b], mag[b+1]) < subharmonicLevel*strongest {
		return
	}

	for i := range e.candidates {
		c := &e.candidates[i]
		if !c.Valid() || c.Algorithm == AlgorithmHarmonic {
			continue
		}
		for n := 2; n <= maxSubharmonic; n++ {
			sub := c.Frequency / float64(n)
			if math.Abs(CentsBetween(sub, ref.Frequency)) <= e.cfg.Fusion.AgreementCents {
				c.Frequency = sub
				break
			}
		}
	}
}

func (e *Engine) resize(sampleRate, frameSize int) {
	e.sampleRate = sampleRate
	e.frameSize = frameSize
	e.raw = make([]float64, frameSize)
	e.filtered = make([]float64, frameSize)
	for _, a := range e.algorithms {
		a.Configure(frameSize, float64(sampleRate), e.instrument.MinFreq, e.instrument.MaxFreq)
	}
}

// reconfigure adapts to a new frame geometry. The noise profile is bound to
// the old bin layout, so it is dropped as well.
func (e *Engine) reconfigure(sampleRate, frameSize int) {
	if e.calibrator.IsCalibrated() {
		e.logger.Warn("noise profile discarded", "sample_rate", sampleRate, "frame_size", frameSize)
	}
	e.calibrator.Reset()
	if err := e.tracker.Configure(float64(sampleRate), frameSize); err != nil {
		e.logger.Warn("tracking filter unchanged", "err", err)
	}
	e.resize(sampleRate, frameSize)
	e.resetState()
}

// resetState clears every frame-to-frame stage except the noise profile.
func (e *Engine) resetState() {
	e.tracker.Reset()
	e.kalman.Reset()
	e.viterbi.Reset()
	e.tuner.Reset()
	e.graph.Reset()
	e.vibrato.Reset()
	e.history.Reset()
	e.seen = 0
}

// SetA4 changes the tuning reference.
func (e *Engine) SetA4(a4 float64) error {
	if math.IsNaN(a4) || a4 < MinA4 || a4 > MaxA4 {
		return fmt.Errorf("%w: %.2f Hz outside %.0f-%.0f", ErrInvalidA4, a4, MinA4, MaxA4)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg.A4 = a4
	e.graph.SetReference(a4)
	e.logger.Info("reference changed", "a4", a4)
	return nil
}

// SetMode switches the operating mode. The noise profile and all smoothing
// state are discarded.
func (e *Engine) SetMode(m Mode) error {
	settings, err := m.Settings()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg.Mode = m
	e.settings = settings
	if e.yin != nil {
		e.yin.SetThreshold(settings.YINThreshold)
	}
	e.tracker.SetQScale(settings.QScale)
	e.kalman.SetProcessNoise(settings.ProcessNoise)
	e.calibrator.Reset()
	e.resetState()

	e.logger.Info("mode changed", "mode", m)
	return nil
}

// SetInstrument switches the detection range to a preset.
func (e *Engine) SetInstrument(name string) error {
	inst, err := LookupInstrument(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.tracker.SetBand(inst.MinFreq, inst.MaxFreq); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := e.viterbi.SetRange(inst.MinFreq, inst.MaxFreq); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e.instrument = inst
	e.cfg.Instrument = inst.Name
	e.resize(e.sampleRate, e.frameSize)
	e.calibrator.Reset()
	e.resetState()

	e.logger.Info("instrument changed", "instrument", inst.Name,
		"min_hz", inst.MinFreq, "max_hz", inst.MaxFreq)
	return nil
}

// SetDisplay selects which stabilizer drives Result.Frequency.
func (e *Engine) SetDisplay(d DisplayMode) error {
	d, err := ParseDisplay(string(d))
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg.Display = d
	return nil
}

// Reset clears all cross-frame state, including the noise profile.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calibrator.Reset()
	e.resetState()
	e.logger.Debug("engine reset")
}

// StartCalibration discards the noise profile and starts learning a new one.
func (e *Engine) StartCalibration() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calibrator.Start()
	e.logger.Info("noise calibration started")
}

// FeedCalibration learns from one frame of background noise and reports
// whether calibration is complete.
func (e *Engine) FeedCalibration(samples []float32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(samples) == 0 {
		return e.calibrator.IsCalibrated()
	}

	was := e.calibrator.IsCalibrated()
	done := e.calibrator.Feed(e.analyzer.Magnitude(samples))
	if done && !was {
		e.logger.Info("noise calibration complete", "frames", e.calibrator.Frames())
		if !e.cfg.ComputeSpectrum {
			e.logger.Warn("noise profile only applies to frames that carry a spectrum")
		}
	}
	return done
}

// IsCalibrated reports whether a noise profile is in use.
func (e *Engine) IsCalibrated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calibrator.IsCalibrated()
}

// CalibrationProgress returns calibration progress in [0, 1].
func (e *Engine) CalibrationProgress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calibrator.Progress()
}

// Config returns the current configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Instrument returns the active instrument preset.
func (e *Engine) Instrument() Instrument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instrument
}

// History returns a copy of the accepted estimates, oldest first.
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]HistoryEntry, e.history.Len())
	for i := range out {
		out[i] = e.history.At(i)
	}
	return out
}
