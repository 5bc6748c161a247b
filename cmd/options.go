package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/0xlemi/tunesuite/internal/pitch"
)

// options holds the command line flags shared by the commands.
type options struct {
	instrument string
	mode       string
	display    string
	a4         float64
	frameSize  int
	hop        int
	spectrum   bool

	sampleRate int
	gain       float64

	logFile string
	debug   bool
}

func defaultOptions() *options {
	def := pitch.DefaultConfig()
	return &options{
		instrument: def.Instrument,
		mode:       string(def.Mode),
		display:    string(def.Display),
		a4:         def.A4,
		frameSize:  def.FrameSize,
		spectrum:   true,
		sampleRate: def.SampleRate,
		gain:       1,
	}
}

func (o *options) addEngineFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.instrument, "instrument", "i", o.instrument, "instrument preset (see 'tunesuite instruments')")
	fs.StringVarP(&o.mode, "mode", "m", o.mode, "detection mode: solo, ensemble, robust or precision")
	fs.StringVar(&o.display, "display", o.display, "stabilizer shown as the pitch: tuner or graph")
	fs.Float64Var(&o.a4, "a4", o.a4, "tuning reference for A4 in Hz")
	fs.IntVar(&o.frameSize, "frame-size", o.frameSize, "samples per analysis frame")
	fs.IntVar(&o.hop, "hop", o.hop, "samples between frame starts (default half a frame)")
	fs.BoolVar(&o.spectrum, "spectrum", o.spectrum, "compute spectra for the harmonic matcher and noise profile")
	fs.StringVar(&o.logFile, "log-file", o.logFile, "append logs to this file")
	fs.BoolVar(&o.debug, "debug", o.debug, "log debug messages")
}

func (o *options) addCaptureFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.sampleRate, "sample-rate", o.sampleRate, "capture sample rate in Hz")
	fs.Float64Var(&o.gain, "gain", o.gain, "input amplification")
}

// config builds an engine configuration for audio at sampleRate.
func (o *options) config(sampleRate int) (pitch.Config, error) {
	cfg := pitch.DefaultConfig()

	mode, err := pitch.ParseMode(o.mode)
	if err != nil {
		return cfg, err
	}
	display, err := pitch.ParseDisplay(o.display)
	if err != nil {
		return cfg, err
	}
	inst, err := pitch.LookupInstrument(o.instrument)
	if err != nil {
		return cfg, err
	}

	cfg.SampleRate = sampleRate
	cfg.FrameSize = o.frameSize
	cfg.A4 = o.a4
	cfg.Instrument = inst.Name
	cfg.Mode = mode
	cfg.Display = display
	cfg.ComputeSpectrum = o.spectrum

	if o.hop < 0 || o.hop > o.frameSize {
		return cfg, fmt.Errorf("%w: hop %d outside 0-%d", pitch.ErrInvalidConfig, o.hop, o.frameSize)
	}
	return cfg, cfg.Validate()
}

func (o *options) hopSize() int {
	if o.hop <= 0 {
		return max(o.frameSize/2, 1)
	}
	return o.hop
}

// logger returns a logger writing to --log-file, or to fallback when no
// file is set, and a function closing the file.
func (o *options) logger(fallback io.Writer) (*log.Logger, func() error, error) {
	w, closeFn := fallback, func() error { return nil }
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closeFn = f, f.Close
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "tunesuite",
	})
	if o.debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger, closeFn, nil
}
