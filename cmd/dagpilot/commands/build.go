package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/api"
	"github.com/marmos91/dagpilot/pkg/catalog"
	"github.com/marmos91/dagpilot/pkg/catalog/upload"
	"github.com/marmos91/dagpilot/pkg/config"
	"github.com/marmos91/dagpilot/pkg/metrics"
	"github.com/marmos91/dagpilot/pkg/mixer"
	"github.com/marmos91/dagpilot/pkg/pilot"
	"github.com/marmos91/dagpilot/pkg/predictor"
	"github.com/marmos91/dagpilot/pkg/predictor/linear"
	"github.com/marmos91/dagpilot/pkg/predictor/remote"
	"github.com/marmos91/dagpilot/pkg/recorder"
	"github.com/marmos91/dagpilot/pkg/transport"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// session bundles a ready-to-run loop with the resources it owns.
type session struct {
	loop     *pilot.Loop
	registry *prometheus.Registry
	catalog  *catalog.Store
}

// apiDeps exposes the session to the status API. Nil resources stay nil
// interfaces so their routes are not registered.
func (s *session) apiDeps() api.Deps {
	deps := api.Deps{Pilot: s.loop}
	if s.catalog != nil {
		deps.Sessions = s.catalog
	}
	if s.registry != nil {
		deps.Gatherer = s.registry
	}
	return deps
}

// Close releases the catalog.
func (s *session) Close() error {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Close()
}

// buildSession wires every collaborator of the control loop from cfg around
// the given transport.
func buildSession(ctx context.Context, cfg *config.Config, tr transport.Transport) (*session, error) {
	mapping, err := vehicle.NewMapping(cfg.Transport.Mapping)
	if err != nil {
		return nil, fmt.Errorf("transport.mapping: %w", err)
	}

	model, err := newPredictor(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		s.registry = metrics.NewRegistry()
		m = metrics.NewMetrics(s.registry)
	}

	sink, err := newSink(ctx, cfg, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	rec := recorder.New(recorder.Config{
		Dir:         cfg.Recorder.SessionsPath,
		Width:       cfg.Frame.Width,
		Height:      cfg.Frame.Height,
		FPS:         cfg.Frame.FPS,
		JPEGQuality: cfg.Recorder.JPEGQuality,
		Mapping:     mapping,
	})

	seed := cfg.Pilot.Seed
	mix := mixer.New(seed)
	if seed == 0 {
		mix = mixer.NewRandom()
		seed = uint64(time.Now().UnixNano())
	}

	pcfg := pilot.Config{
		Mode:           pilot.Mode(cfg.Pilot.Mode),
		DaggerEvery:    cfg.Pilot.DaggerEvery,
		PlainEvery:     cfg.Pilot.PlainEvery,
		RetrainTimeout: cfg.Pilot.RetrainTimeout,
		ExpertFallback: cfg.Pilot.ExpertFallback,
		FrameWidth:     cfg.Frame.Width,
		FrameHeight:    cfg.Frame.Height,
		SaveModel:      cfg.Pilot.SaveModel,
		ModelsDir:      cfg.Predictor.ModelsPath,
	}
	if cfg.Predictor.Pretrained {
		pcfg.PretrainedModel = predictor.PretrainedName(cfg.Memory.Length, cfg.Memory.Interval, cfg.Predictor.ModelNum)
	}

	deps := pilot.Deps{
		Transport:   tr,
		Recorder:    rec,
		Predictor:   model,
		Mixer:       mix,
		Transformer: predictor.NewTransformer(cfg.Memory.Length, cfg.Memory.Interval, seed),
		Memory:      predictor.NewMemory(cfg.Memory.Length, cfg.Memory.Interval),
		Metrics:     m,
	}
	if sink != nil {
		deps.Sink = sink
	}

	s.loop, err = pilot.New(pcfg, deps)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	logger.Info("Pilot configured",
		logger.KeySessionID, s.loop.SessionID(),
		logger.KeyMode, cfg.Pilot.Mode,
		logger.KeyPredictor, model.Name(),
		"cadence", pcfg.Cadence(),
		"memory_length", cfg.Memory.Length,
		"memory_interval", cfg.Memory.Interval)
	return s, nil
}

func newPredictor(cfg *config.Config) (predictor.Predictor, error) {
	mode, err := vehicle.ParsePredictionMode(cfg.Predictor.PredictionMode)
	if err != nil {
		return nil, err
	}

	switch cfg.Predictor.Type {
	case linear.Name:
		return linear.New(linear.Config{
			MemoryLength: cfg.Memory.Length,
			PoolWidth:    cfg.Predictor.Linear.PoolWidth,
			PoolHeight:   cfg.Predictor.Linear.PoolHeight,
			Lambda:       cfg.Predictor.Linear.Lambda,
			ModelsDir:    cfg.Predictor.ModelsPath,
			Mode:         mode,
		}), nil
	case remote.Name:
		if cfg.Predictor.Remote.URL == "" {
			return nil, errors.New("predictor.remote.url is required for the remote predictor")
		}
		return remote.New(remote.Config{
			BaseURL:        cfg.Predictor.Remote.URL,
			PredictTimeout: cfg.Predictor.Remote.PredictTimeout,
			Mode:           mode,
		}), nil
	default:
		return nil, fmt.Errorf("unknown predictor type %q", cfg.Predictor.Type)
	}
}

// newSink opens the catalog and the uploader when enabled. The catalog is
// attached to s so Close releases it.
func newSink(ctx context.Context, cfg *config.Config, s *session) (*archiveSink, error) {
	if !cfg.Catalog.Enabled && !cfg.Upload.Enabled {
		return nil, nil
	}

	sink := &archiveSink{}
	if cfg.Catalog.Enabled {
		store, err := catalog.Open(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		s.catalog = store
		sink.catalog = store
		logger.Info("Session catalog opened", logger.KeyPath, cfg.Catalog.Path)
	}

	if cfg.Upload.Enabled {
		up, err := upload.NewFromConfig(ctx, upload.Config{
			Bucket:          cfg.Upload.Bucket,
			Prefix:          cfg.Upload.Prefix,
			Region:          cfg.Upload.Region,
			Endpoint:        cfg.Upload.Endpoint,
			ForcePathStyle:  cfg.Upload.ForcePathStyle,
			AccessKeyID:     cfg.Upload.AccessKeyID,
			SecretAccessKey: cfg.Upload.SecretAccessKey,
			Timeout:         cfg.Upload.Timeout,
		})
		if err != nil {
			return nil, err
		}
		sink.uploader = up
		logger.Info("Session upload enabled", logger.KeyBucket, cfg.Upload.Bucket)
	}
	return sink, nil
}
