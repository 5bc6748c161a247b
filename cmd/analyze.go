package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/0xlemi/tunesuite/internal/audio"
	"github.com/0xlemi/tunesuite/internal/pitch"
)

func newAnalyzeCommand(o *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Print the pitch of every frame of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), o, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per frame")
	return cmd
}

type vibratoRecord struct {
	RateHz     float64 `json:"rate_hz"`
	DepthCents float64 `json:"depth_cents"`
}

// frameRecord is one line of JSON output.
type frameRecord struct {
	Time       float64        `json:"time"`
	Frequency  float64        `json:"frequency,omitempty"`
	Note       string         `json:"note,omitempty"`
	Octave     int            `json:"octave,omitempty"`
	Cents      float64        `json:"cents,omitempty"`
	Confidence float64        `json:"confidence"`
	RMS        float64        `json:"rms"`
	Consensus  string         `json:"consensus,omitempty"`
	Vibrato    *vibratoRecord `json:"vibrato,omitempty"`
}

func newFrameRecord(r *pitch.Result) frameRecord {
	rec := frameRecord{
		Time:       r.Timestamp.Seconds(),
		Confidence: r.Confidence,
		RMS:        r.RMS,
		Consensus:  string(r.Consensus),
	}
	if r.HasPitch() {
		rec.Frequency = r.Frequency
		rec.Note = r.Note
		rec.Octave = r.Octave
		rec.Cents = r.Cents
	}
	if r.Vibrato.Detected {
		rec.Vibrato = &vibratoRecord{RateHz: r.Vibrato.RateHz, DepthCents: r.Vibrato.DepthCents}
	}
	return rec
}

func writeText(w io.Writer, r *pitch.Result) error {
	if !r.HasPitch() {
		_, err := fmt.Fprintf(w, "%8.3fs  -\n", r.Timestamp.Seconds())
		return err
	}

	line := fmt.Sprintf("%8.3fs  %-4s %8.2f Hz  %+6.1f cents  conf %.2f  %s",
		r.Timestamp.Seconds(), fmt.Sprintf("%s%d", r.Note, r.Octave),
		r.Frequency, r.Cents, r.Confidence, r.Consensus)
	if r.Vibrato.Detected {
		line += fmt.Sprintf("  vibrato %.1f Hz ±%.0f cents", r.Vibrato.RateHz, r.Vibrato.DepthCents)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func runAnalyze(ctx context.Context, out, errOut io.Writer, o *options, path string, asJSON bool) error {
	logger, closeLog, err := o.logger(errOut)
	if err != nil {
		return err
	}
	defer closeLog()

	var (
		engine   *pitch.Engine
		result   pitch.Result
		writeErr error
	)
	enc := json.NewEncoder(out)

	framer, err := audio.NewFramer(audio.FramerConfig{
		FrameSize: o.frameSize,
		Hop:       o.hopSize(),
	}, func(buf audio.AudioBuffer) bool {
		engine.AnalyzeInto(&buf, &result)
		if writeErr != nil {
			return true
		}
		if asJSON {
			writeErr = enc.Encode(newFrameRecord(&result))
		} else {
			writeErr = writeText(out, &result)
		}
		return true
	})
	if err != nil {
		return err
	}

	capturer, err := audio.OpenFile(path, framer)
	if err != nil {
		return err
	}
	defer capturer.Close()

	cfg, err := o.config(capturer.SampleRate())
	if err != nil {
		return err
	}
	engine, err = pitch.New(cfg, pitch.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Debug("analyzing", "file", path,
		"sample_rate", capturer.SampleRate(), "channels", capturer.Channels(),
		"duration", capturer.Duration())

	if err := capturer.Run(ctx); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return writeErr
}
