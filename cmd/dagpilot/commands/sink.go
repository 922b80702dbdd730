package commands

import (
	"context"
	"errors"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/catalog"
	"github.com/marmos91/dagpilot/pkg/pilot"
)

type sessionPutter interface {
	Put(ctx context.Context, sess *catalog.Session) error
}

type artifactUploader interface {
	Upload(ctx context.Context, name, videoPath, telemetryPath string) (*catalog.Upload, error)
}

// archiveSink uploads a finished session's artifacts and indexes it in the
// catalog. Either side may be nil.
type archiveSink struct {
	catalog  sessionPutter
	uploader artifactUploader
}

var _ pilot.SessionSink = (*archiveSink)(nil)

// SessionFinished implements pilot.SessionSink. An upload failure is logged
// and the session is still indexed without an upload location.
func (s *archiveSink) SessionFinished(ctx context.Context, sum pilot.Summary) error {
	rec := sessionRecord(sum)

	var errs []error
	if s.uploader != nil && sum.Artifact.Frames > 0 {
		up, err := s.uploader.Upload(ctx, sum.Artifact.Name, sum.Artifact.VideoPath, sum.Artifact.TelemetryPath)
		if err != nil {
			logger.WarnCtx(ctx, "Session upload failed", logger.KeyName, sum.Artifact.Name, logger.KeyError, err)
			errs = append(errs, err)
		} else {
			rec.Upload = up
		}
	}

	if s.catalog != nil {
		if err := s.catalog.Put(ctx, rec); err != nil {
			errs = append(errs, err)
		} else {
			logger.InfoCtx(ctx, "Session indexed", logger.KeySessionID, rec.ID, logger.KeyName, rec.ArtifactName)
		}
	}
	return errors.Join(errs...)
}

func sessionRecord(sum pilot.Summary) *catalog.Session {
	return &catalog.Session{
		ID:            sum.SessionID,
		Mode:          string(sum.Mode),
		Predictor:     sum.Predictor,
		StartedAt:     sum.StartedAt,
		EndedAt:       sum.EndedAt,
		Ticks:         sum.Ticks,
		Iterations:    sum.Iterations,
		ArtifactName:  sum.Artifact.Name,
		VideoPath:     sum.Artifact.VideoPath,
		TelemetryPath: sum.Artifact.TelemetryPath,
		Frames:        sum.Artifact.Frames,
		Model:         sum.Model,
		ExitError:     sum.ExitError,
	}
}
