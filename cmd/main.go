package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0xlemi/tunesuite/internal/audio"
	"github.com/0xlemi/tunesuite/internal/pipeline"
	"github.com/0xlemi/tunesuite/internal/pitch"
	"github.com/0xlemi/tunesuite/internal/ui"
)

// Frames waiting for the engine; older frames are dropped beyond this.
const queueCapacity = 8

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	o := defaultOptions()

	cmd := &cobra.Command{
		Use:   "tunesuite",
		Short: "Real-time instrument tuner",
		Long: `TuneSuite listens to the default input device and shows the note being
played, its offset in cents, the detection confidence and any vibrato.

Keys: q quit, c calibrate the noise floor, m cycle modes, i cycle
instruments, d toggle tuner/graph display, r reset.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLive(cmd.Context(), o)
		},
	}

	o.addEngineFlags(cmd.PersistentFlags())
	o.addCaptureFlags(cmd.Flags())

	cmd.AddCommand(newAnalyzeCommand(o), newInstrumentsCommand())
	return cmd
}

func runLive(ctx context.Context, o *options) error {
	cfg, err := o.config(o.sampleRate)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI; logs only go to --log-file.
	logger, closeLog, err := o.logger(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	engine, err := pitch.New(cfg, pitch.WithLogger(logger))
	if err != nil {
		return err
	}

	queue := audio.NewFrameQueue(queueCapacity)
	framer, err := audio.NewFramer(audio.FramerConfig{
		FrameSize:  cfg.FrameSize,
		Hop:        o.hopSize(),
		SampleRate: cfg.SampleRate,
		Pool:       queueCapacity + 2,
	}, queue.Push)
	if err != nil {
		return err
	}

	capturer, err := newMicrophone(cfg.SampleRate, float32(o.gain), framer)
	if err != nil {
		return fmt.Errorf("failed to create audio capturer: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := pipeline.New(engine, queue, pipeline.WithLogger(logger))
	p := tea.NewProgram(ui.NewModel(runner, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	runner.SetUpdates(func(u pipeline.Update) {
		p.Send(ui.UpdateMsg(u))
	})

	if err := capturer.Start(); err != nil {
		return fmt.Errorf("failed to start audio capture: %w", err)
	}
	logger.Info("capture started",
		"sample_rate", cfg.SampleRate, "frame_size", cfg.FrameSize, "hop", o.hopSize(),
		"instrument", cfg.Instrument, "mode", cfg.Mode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	err = g.Wait()

	if stopErr := capturer.Stop(); stopErr != nil {
		logger.Warn("stopping capture", "err", stopErr)
	}
	queue.Close()

	logger.Info("capture stopped", "dropped_frames", queue.Dropped())
	return err
}
