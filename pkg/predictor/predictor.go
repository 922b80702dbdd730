// Package predictor defines the learned policy used by the pilot and the
// data shapes it consumes.
//
// A Predictor is opaque to the control loop: it is fit on batches built from
// drained recorder windows and asked for a command on every model tick.
package predictor

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dagpilot/pkg/vehicle"
)

var (
	// ErrNotTrained is returned by Predict before any successful Fit or Load.
	ErrNotTrained = errors.New("predictor not trained")

	// ErrModelNotFound is returned by Load for an unknown model id.
	ErrModelNotFound = errors.New("model not found")

	// ErrEmptyBatch is returned when a window yields no training samples.
	ErrEmptyBatch = errors.New("empty training batch")
)

// Observation is the predictor input for one tick: the memory window ending
// at the current tick, oldest first.
type Observation struct {
	Frames    []*vehicle.Frame
	Telemetry []vehicle.Telemetry
}

// Current returns the newest telemetry of the window.
func (o Observation) Current() vehicle.Telemetry {
	if len(o.Telemetry) == 0 {
		return vehicle.Telemetry{}
	}
	return o.Telemetry[len(o.Telemetry)-1]
}

// Sample is one supervised example.
type Sample struct {
	Observation Observation

	// Label holds the target deltas: steering, throttle, braking.
	Label []float64
	Gear  int
}

// TrainingBatch is a shuffled train/test split.
type TrainingBatch struct {
	Train []Sample
	Test  []Sample
}

// Len returns the total number of samples.
func (b TrainingBatch) Len() int {
	return len(b.Train) + len(b.Test)
}

// Predictor is a trainable driving policy.
type Predictor interface {
	// Name identifies the implementation in logs and metrics.
	Name() string

	// Predict returns a command for obs. Failures are *PredictionError.
	Predict(ctx context.Context, obs Observation) (vehicle.ControlCommand, error)

	// Fit trains on batch. It may block for a long time and must return
	// ctx.Err() promptly once ctx is done, leaving the previous model usable.
	Fit(ctx context.Context, batch TrainingBatch) error

	// Save persists the current model under id.
	Save(ctx context.Context, id string) error

	// Load replaces the current model with the one stored under id.
	Load(ctx context.Context, id string) error
}

// PredictionError is returned by Predict instead of a malformed command.
type PredictionError struct {
	Predictor string
	Err       error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("%s: prediction failed: %v", e.Predictor, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}
