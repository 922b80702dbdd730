package pilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/internal/telemetry"
	"github.com/marmos91/dagpilot/pkg/metrics"
	"github.com/marmos91/dagpilot/pkg/mixer"
)

// RetrainError describes a retraining phase that left the model unchanged.
type RetrainError struct {
	Tick      int64
	Iteration int64
	Samples   int
	Err       error
}

func (e *RetrainError) Error() string {
	return fmt.Sprintf("retrain at tick %d (iteration %d, %d samples): %v", e.Tick, e.Iteration, e.Samples, e.Err)
}

func (e *RetrainError) Unwrap() error {
	return e.Err
}

// RetrainResult is the outcome of the most recent retraining phase.
type RetrainResult struct {
	Tick      int64         `json:"tick"`
	Iteration int64         `json:"iteration"`
	Samples   int           `json:"samples"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
	Error     string        `json:"error,omitempty"`
}

// retrain drains the fresh window and fits the predictor on it. The iteration
// advances only when Fit succeeds; any failure, including cancellation or the
// retrain timeout, discards the batch.
func (l *Loop) retrain(ctx context.Context, tick int64) {
	l.state.store(StateRetraining)
	defer l.state.store(StateRunning)

	iteration := l.iteration.Load()
	ctx, span := telemetry.StartRetrainSpan(ctx, tick, iteration, telemetry.Predictor(l.predictor.Name()))
	defer span.End()

	logger.InfoCtx(ctx, "Retraining", logger.KeyWindow, l.recorder.WindowLen())

	start := time.Now()
	samples, err := l.fit(ctx, tick, iteration)
	elapsed := time.Since(start)

	result := &RetrainResult{
		Tick:      tick,
		Iteration: iteration,
		Samples:   samples,
		Duration:  elapsed,
		At:        l.cfg.Now(),
	}

	if err != nil {
		result.Error = err.Error()
		l.setLastRetrain(result)
		telemetry.RecordError(ctx, err)
		l.metrics.ObserveRetrain(retrainOutcome(err), elapsed)
		logger.WarnCtx(ctx, "Retrain failed, keeping previous model",
			logger.KeySamples, samples,
			logger.KeyDurationMs, float64(elapsed.Microseconds())/1000,
			logger.KeyError, err)
		return
	}

	next := l.iteration.Add(1)
	result.Iteration = next
	l.setLastRetrain(result)
	l.metrics.ObserveRetrain(metrics.OutcomeSuccess, elapsed)
	l.metrics.SetIteration(next, mixer.ExpertProbability(next))
	telemetry.SetAttributes(ctx, telemetry.Samples(samples))
	logger.InfoCtx(ctx, "Retrain complete",
		logger.KeySamples, samples,
		logger.KeyProbability, mixer.ExpertProbability(next),
		logger.KeyDurationMs, float64(elapsed.Microseconds())/1000,
		"next_iteration", next)
}

func (l *Loop) fit(ctx context.Context, tick, iteration int64) (int, error) {
	window := l.recorder.Extract()

	batch, err := l.transformer.Transform(window)
	if err != nil {
		return 0, &RetrainError{Tick: tick, Iteration: iteration, Samples: window.Len(), Err: err}
	}

	if l.cfg.RetrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.RetrainTimeout)
		defer cancel()
	}

	fctx, span := telemetry.StartFitSpan(ctx, batch.Len())
	err = l.predictor.Fit(fctx, batch)
	telemetry.Finish(span, err)
	if err != nil {
		return batch.Len(), &RetrainError{Tick: tick, Iteration: iteration, Samples: batch.Len(), Err: err}
	}
	return batch.Len(), nil
}

func retrainOutcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeFailure
	}
}

func (l *Loop) setLastRetrain(r *RetrainResult) {
	l.mu.Lock()
	l.lastRetrain = r
	l.mu.Unlock()
}
