package smoothing

import (
	"math"
	"testing"
	"time"
)

const frame = 40 * time.Millisecond

func TestKalmanFilter_SeedsOnFirstUpdate(t *testing.T) {
	k := NewKalmanFilter(DefaultKalmanConfig())
	k.Predict(0)
	if got := k.Update(330, 0.9); got != 330 {
		t.Fatalf("first update: got %v, want 330", got)
	}
}

func TestKalmanFilter_ConvergesOnSteadyInput(t *testing.T) {
	k := NewKalmanFilter(DefaultKalmanConfig())

	var got float64
	for i := range 20 {
		k.Predict(time.Duration(i) * frame)
		got = k.Update(329.63+0.1*math.Sin(float64(i)), 0.95)
	}
	if math.Abs(cents(got, 329.63)) > 2 {
		t.Fatalf("estimate %.3f Hz too far from 329.63", got)
	}
	if math.Abs(k.Velocity()) > 5 {
		t.Fatalf("steady input produced velocity %.3f Hz/s", k.Velocity())
	}
}

func TestKalmanFilter_LowConfidenceMovesLess(t *testing.T) {
	run := func(conf float64) float64 {
		k := NewKalmanFilter(DefaultKalmanConfig())
		k.Predict(0)
		k.Update(440, 0.9)
		k.Predict(frame)
		return k.Update(445, conf)
	}

	strong, weak := run(0.9), run(0.1)
	if !(weak < strong) {
		t.Fatalf("low confidence moved further: weak=%.3f strong=%.3f", weak, strong)
	}
	if weak <= 440 || strong >= 445 {
		t.Fatalf("estimates outside measurement span: weak=%.3f strong=%.3f", weak, strong)
	}
}

func TestKalmanFilter_VelocityOnlyWhenConfident(t *testing.T) {
	k := NewKalmanFilter(DefaultKalmanConfig())
	k.Predict(0)
	k.Update(440, 0.9)

	for i := 1; i < 10; i++ {
		k.Predict(time.Duration(i) * frame)
		k.Update(440+float64(i), 0.4)
	}
	if k.Velocity() != 0 {
		t.Fatalf("velocity learned from low-confidence frames: %v", k.Velocity())
	}

	k.Predict(10 * frame)
	k.Update(450, 0.9)
	if k.Velocity() <= 0 {
		t.Fatalf("rising confident input should give positive velocity, got %v", k.Velocity())
	}
}

func TestKalmanFilter_ReseedOnConfidentJump(t *testing.T) {
	k := NewKalmanFilter(DefaultKalmanConfig())
	k.Predict(0)
	k.Update(220, 0.9)
	k.Predict(frame)

	if got := k.Update(440, 0.9); got != 440 {
		t.Fatalf("confident octave jump: got %v, want re-seed to 440", got)
	}
}

func TestKalmanFilter_Reset(t *testing.T) {
	k := NewKalmanFilter(DefaultKalmanConfig())
	k.Predict(0)
	k.Update(440, 0.9)
	k.Reset()

	if k.Estimate() != 0 || k.Velocity() != 0 {
		t.Fatal("reset did not clear the state")
	}
	k.Predict(frame)
	if got := k.Update(300, 0.2); got != 300 {
		t.Fatalf("update after reset should re-seed, got %v", got)
	}
}
