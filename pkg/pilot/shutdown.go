package pilot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/internal/telemetry"
	"github.com/marmos91/dagpilot/pkg/predictor"
	"github.com/marmos91/dagpilot/pkg/recorder"
)

// Summary describes a finished session.
type Summary struct {
	SessionID  string
	Mode       Mode
	Predictor  string
	StartedAt  time.Time
	EndedAt    time.Time
	Ticks      int64
	Iterations int64
	Artifact   recorder.Artifact
	Model      string
	ExitError  string
}

// shutdown flushes the session, saves the model and closes the transport, in
// that order. It runs on a context detached from ctx's cancellation.
func (l *Loop) shutdown(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	ctx, span := telemetry.StartShutdownSpan(ctx, l.recorder.Len())
	defer span.End()

	logger.InfoCtx(ctx, "Shutting down", logger.KeyFrames, l.recorder.Len())

	var errs []error

	art, err := l.saveSession(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	model, err := l.saveModel(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Model save failed", logger.KeyError, err)
	}

	if err := l.transport.Close(); err != nil {
		logger.WarnCtx(ctx, "Transport close failed", logger.KeyError, err)
	}

	if l.sink != nil && art != nil {
		s := l.summary(*art, model, cause)
		if err := l.sink.SessionFinished(ctx, s); err != nil {
			logger.WarnCtx(ctx, "Session archive failed", logger.KeyError, err)
		}
	}

	return errors.Join(errs...)
}

func (l *Loop) saveSession(ctx context.Context) (*recorder.Artifact, error) {
	ctx, span := telemetry.StartSaveSessionSpan(ctx)
	defer span.End()

	art, err := l.recorder.SaveSession(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Session flush failed", logger.KeyError, err)
		return nil, fmt.Errorf("save session: %w", err)
	}
	span.SetAttributes(telemetry.Artifact(art.Name), telemetry.Frames(art.Frames))
	l.metrics.ObserveSave(art.Frames)

	l.mu.Lock()
	l.artifact = &art
	l.mu.Unlock()
	return &art, nil
}

// saveModel persists the predictor under the next dated name, when enabled
// and the model learned something this session.
func (l *Loop) saveModel(ctx context.Context) (string, error) {
	if !l.cfg.SaveModel || l.iteration.Load() == 0 {
		return "", nil
	}

	id, err := predictor.NextModelName(l.cfg.ModelsDir, l.cfg.Now())
	if err != nil {
		return "", err
	}

	ctx, span := telemetry.StartModelSaveSpan(ctx, id)
	err = l.predictor.Save(ctx, id)
	telemetry.Finish(span, err)
	if err != nil {
		return "", fmt.Errorf("save model %s: %w", id, err)
	}
	logger.InfoCtx(ctx, "Model saved", logger.KeyModel, id, logger.KeyPath, filepath.Join(l.cfg.ModelsDir, id))

	l.mu.Lock()
	l.modelSaved = id
	l.mu.Unlock()
	return id, nil
}

func (l *Loop) summary(art recorder.Artifact, model string, cause error) Summary {
	l.mu.RLock()
	started := l.startedAt
	l.mu.RUnlock()

	s := Summary{
		SessionID:  l.cfg.SessionID,
		Mode:       l.cfg.Mode,
		Predictor:  l.predictor.Name(),
		StartedAt:  started,
		EndedAt:    l.cfg.Now(),
		Ticks:      l.ticks.Load(),
		Iterations: l.iteration.Load(),
		Artifact:   art,
		Model:      model,
	}
	if cause != nil {
		s.ExitError = cause.Error()
	}
	return s
}
