// Package pipeline drives a pitch engine from a frame queue.
package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/0xlemi/tunesuite/internal/audio"
	"github.com/0xlemi/tunesuite/internal/pitch"
)

// ErrStopped is returned by control requests once Run has returned.
var ErrStopped = errors.New("pipeline stopped")

// Update is emitted for every processed frame.
type Update struct {
	Result pitch.Result

	// Calibrating is set while frames feed the noise profile instead of
	// the estimators; Result is empty then.
	Calibrating         bool
	CalibrationProgress float64
	Calibrated          bool

	Dropped uint64 // Frames lost because the consumer fell behind
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

type request struct {
	fn   func(*Runner) error
	done chan error
}

// Runner owns an Engine and feeds it frames from a queue. Control requests
// are applied between frames on the Run goroutine, so the engine never sees
// a change in the middle of a frame.
type Runner struct {
	engine *pitch.Engine
	frames *audio.FrameQueue
	logger *log.Logger
	emit   func(Update)

	requests    chan request
	stopped     chan struct{}
	calibrating bool
}

// New returns a Runner reading frames from q.
func New(engine *pitch.Engine, q *audio.FrameQueue, opts ...Option) *Runner {
	r := &Runner{
		engine:   engine,
		frames:   q,
		logger:   log.New(io.Discard),
		emit:     func(Update) {},
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetUpdates sets the function receiving every Update. It must be called
// before Run. fn runs on the Run goroutine and may block; the frame queue
// absorbs the delay by dropping frames.
func (r *Runner) SetUpdates(fn func(Update)) {
	if fn != nil {
		r.emit = fn
	}
}

// Run processes frames until the queue is closed and drained or ctx is
// done. It may be called once.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)

	r.logger.Debug("pipeline started")
	defer r.logger.Debug("pipeline stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-r.requests:
			req.done <- req.fn(r)
		case buf, ok := <-r.frames.C():
			if !ok {
				return nil
			}
			r.process(&buf)
		}
	}
}

func (r *Runner) process(buf *audio.AudioBuffer) {
	u := Update{Dropped: r.frames.Dropped()}

	if r.calibrating {
		u.Calibrated = r.engine.FeedCalibration(buf.Samples)
		u.CalibrationProgress = r.engine.CalibrationProgress()
		u.Calibrating = !u.Calibrated
		if u.Calibrated {
			r.calibrating = false
		}
		r.emit(u)
		return
	}

	u.Result = r.engine.Analyze(buf)
	u.Calibrated = r.engine.IsCalibrated()
	r.emit(u)
}

// do runs fn on the Run goroutine and waits for its result.
func (r *Runner) do(ctx context.Context, fn func(*Runner) error) error {
	req := request{fn: fn, done: make(chan error, 1)}

	select {
	case r.requests <- req:
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetMode switches the engine mode.
func (r *Runner) SetMode(ctx context.Context, m pitch.Mode) error {
	return r.do(ctx, func(r *Runner) error { return r.engine.SetMode(m) })
}

// SetInstrument switches the engine's instrument preset.
func (r *Runner) SetInstrument(ctx context.Context, name string) error {
	return r.do(ctx, func(r *Runner) error { return r.engine.SetInstrument(name) })
}

// SetA4 changes the tuning reference.
func (r *Runner) SetA4(ctx context.Context, a4 float64) error {
	return r.do(ctx, func(r *Runner) error { return r.engine.SetA4(a4) })
}

// SetDisplay selects the stabilizer shown as the result frequency.
func (r *Runner) SetDisplay(ctx context.Context, d pitch.DisplayMode) error {
	return r.do(ctx, func(r *Runner) error { return r.engine.SetDisplay(d) })
}

// Reset clears all engine state and aborts a running calibration.
func (r *Runner) Reset(ctx context.Context) error {
	return r.do(ctx, func(r *Runner) error {
		r.calibrating = false
		r.engine.Reset()
		return nil
	})
}

// Calibrate routes the following frames into noise calibration until the
// profile is complete. The input should be silent meanwhile.
func (r *Runner) Calibrate(ctx context.Context) error {
	return r.do(ctx, func(r *Runner) error {
		r.calibrating = true
		r.engine.StartCalibration()
		r.logger.Info("routing frames to noise calibration")
		return nil
	})
}
