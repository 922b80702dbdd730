package pilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/internal/telemetry"
	"github.com/marmos91/dagpilot/pkg/metrics"
	"github.com/marmos91/dagpilot/pkg/mixer"
	"github.com/marmos91/dagpilot/pkg/predictor"
	"github.com/marmos91/dagpilot/pkg/recorder"
	"github.com/marmos91/dagpilot/pkg/transport"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// ErrAlreadyRun is returned by Run on a Loop that already ran.
var ErrAlreadyRun = errors.New("loop already ran")

// SessionSink receives the summary of a finished session after its artifact
// has been written.
type SessionSink interface {
	SessionFinished(ctx context.Context, s Summary) error
}

// Deps are the collaborators of a Loop. Metrics and Sink are optional.
type Deps struct {
	Transport   transport.Transport
	Recorder    *recorder.Recorder
	Predictor   predictor.Predictor
	Mixer       *mixer.Mixer
	Transformer *predictor.Transformer
	Memory      *predictor.Memory
	Metrics     *metrics.Metrics
	Sink        SessionSink
}

// Loop is a single driving session.
type Loop struct {
	cfg Config

	transport   transport.Transport
	recorder    *recorder.Recorder
	predictor   predictor.Predictor
	mixer       *mixer.Mixer
	transformer *predictor.Transformer
	memory      *predictor.Memory
	metrics     *metrics.Metrics
	sink        SessionSink

	state     stateBox
	ticks     atomic.Int64
	iteration atomic.Int64
	sent      atomic.Int64
	skipped   atomic.Int64

	mu          sync.RWMutex
	startedAt   time.Time
	lastRetrain *RetrainResult
	artifact    *recorder.Artifact
	modelSaved  string

	runOnce sync.Once
}

// New builds a loop. Transport, Recorder and Predictor are required; a missing
// Mixer, Transformer or Memory gets a default.
func New(cfg Config, deps Deps) (*Loop, error) {
	if deps.Transport == nil || deps.Recorder == nil || deps.Predictor == nil {
		return nil, errors.New("pilot: transport, recorder and predictor are required")
	}
	cfg.applyDefaults()
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	if deps.Mixer == nil {
		deps.Mixer = mixer.NewRandom()
	}
	if deps.Memory == nil {
		deps.Memory = predictor.NewMemory(1, 1)
	}
	if deps.Transformer == nil {
		deps.Transformer = predictor.NewTransformer(1, 1, uint64(cfg.Now().UnixNano()))
	}

	return &Loop{
		cfg:         cfg,
		transport:   deps.Transport,
		recorder:    deps.Recorder,
		predictor:   deps.Predictor,
		mixer:       deps.Mixer,
		transformer: deps.Transformer,
		memory:      deps.Memory,
		metrics:     deps.Metrics,
		sink:        deps.Sink,
	}, nil
}

// SessionID returns the identifier of the session driven by this loop.
func (l *Loop) SessionID() string {
	return l.cfg.SessionID
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return l.state.load()
}

// Run drives the session until ctx is cancelled, the vehicle ends the stream
// or the transport fails. It returns nil on a clean shutdown.
//
// Run may be called only once.
func (l *Loop) Run(ctx context.Context) error {
	err := ErrAlreadyRun
	l.runOnce.Do(func() {
		err = l.run(ctx)
	})
	return err
}

func (l *Loop) run(ctx context.Context) error {
	lc := logger.NewLogContext(l.cfg.SessionID, string(l.cfg.Mode))
	ctx = logger.WithContext(ctx, lc)

	ctx, span := telemetry.StartSessionSpan(ctx, l.cfg.SessionID, string(l.cfg.Mode), l.predictor.Name())
	defer span.End()

	l.state.store(StateHandshaking)
	if err := l.start(ctx); err != nil {
		logger.ErrorCtx(ctx, "Pilot failed to start", logger.KeyError, err)
		if cerr := l.transport.Close(); cerr != nil {
			logger.WarnCtx(ctx, "Transport close failed", logger.KeyError, cerr)
		}
		l.state.store(StateTerminated)
		telemetry.RecordError(ctx, err)
		return err
	}

	l.mu.Lock()
	l.startedAt = l.cfg.Now()
	l.mu.Unlock()
	l.metrics.SetIteration(0, mixer.ExpertProbability(0))
	l.state.store(StateRunning)
	logger.InfoCtx(ctx, "Pilot running",
		logger.KeyPredictor, l.predictor.Name(),
		"cadence", l.cfg.Cadence())

	runErr := l.drive(ctx)

	l.state.store(StateShuttingDown)
	shutdownErr := l.shutdown(ctx, runErr)
	l.state.store(StateTerminated)

	logger.InfoCtx(ctx, "Pilot stopped",
		logger.KeyTick, l.ticks.Load(),
		logger.KeyIteration, l.iteration.Load())
	err := errors.Join(runErr, shutdownErr)
	span.SetAttributes(telemetry.Tick(l.ticks.Load()), telemetry.Iteration(l.iteration.Load()))
	telemetry.RecordError(ctx, err)
	return err
}

// start loads the pretrained model, if any, and synchronizes the transport.
func (l *Loop) start(ctx context.Context) error {
	if l.cfg.PretrainedModel != "" {
		lctx, span := telemetry.StartModelLoadSpan(ctx, l.cfg.PretrainedModel)
		err := l.predictor.Load(lctx, l.cfg.PretrainedModel)
		telemetry.Finish(span, err)
		if err != nil {
			return fmt.Errorf("load pretrained model %s: %w", l.cfg.PretrainedModel, err)
		}
		logger.InfoCtx(ctx, "Pretrained model loaded", logger.KeyModel, l.cfg.PretrainedModel)
	}

	hctx, span := telemetry.StartHandshakeSpan(ctx)
	err := l.transport.Handshake(hctx)
	telemetry.Finish(span, err)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	logger.InfoCtx(ctx, "Transport synchronized")
	return nil
}

// drive processes messages until the session ends. Cancellation and end of
// stream are clean exits.
func (l *Loop) drive(ctx context.Context) error {
	for {
		msg, err := l.transport.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				logger.InfoCtx(ctx, "Shutdown requested", "reason", context.Cause(ctx))
				return nil
			case errors.Is(err, transport.ErrEndOfStream):
				logger.InfoCtx(ctx, "Vehicle ended the stream")
				return nil
			case errors.Is(err, transport.ErrMalformed):
				l.skipped.Add(1)
				l.metrics.ObserveSkip(metrics.ReasonMalformed)
				logger.WarnCtx(ctx, "Dropping malformed message", logger.KeyError, err)
				continue
			default:
				return fmt.Errorf("receive: %w", err)
			}
		}
		l.tick(ctx, msg)
	}
}

// tick handles one observation. The command for the tick is produced and sent
// even if ctx is cancelled meanwhile; only a retrain is interrupted.
func (l *Loop) tick(ctx context.Context, msg transport.Message) {
	frame := msg.Frame
	if frame != nil {
		frame = frame.Resize(l.cfg.FrameWidth, l.cfg.FrameHeight)
	}
	tel := msg.Telemetry

	l.memory.Push(frame, tel)
	if l.cfg.Mode == ModeDagger {
		l.recorder.RecordExpert(frame, &tel, msg.Expert)
	} else {
		l.recorder.Record(frame, &tel)
	}

	n := l.ticks.Add(1)
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithTick(n, l.iteration.Load()))
	l.metrics.ObserveTick(l.recorder.WindowLen())

	if cadence := l.cfg.Cadence(); n%int64(cadence) == 0 {
		l.retrain(ctx, n)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithTick(n, l.iteration.Load()))
	}

	cmd, source, ok := l.selectAction(context.WithoutCancel(ctx), msg)
	if !ok {
		return
	}
	if err := l.transport.Send(context.WithoutCancel(ctx), cmd); err != nil {
		l.skipped.Add(1)
		l.metrics.ObserveSkip(metrics.ReasonSend)
		logger.WarnCtx(ctx, "Command not sent", logger.KeySource, source, logger.KeyError, err)
		return
	}
	l.sent.Add(1)
	l.metrics.ObserveDecision(string(source))
}

// selectAction picks the command for the current tick. ok is false when the
// tick must be skipped.
func (l *Loop) selectAction(ctx context.Context, msg transport.Message) (vehicle.ControlCommand, mixer.Source, bool) {
	if l.cfg.Mode == ModeDagger {
		d := l.mixer.Decide(l.iteration.Load())
		logger.DebugCtx(ctx, "Policy drawn",
			logger.KeySource, d.Source,
			logger.KeyProbability, d.Probability,
			logger.KeyDraw, d.Draw)
		if d.Source == mixer.SourceExpert {
			if msg.Expert != nil {
				return msg.Expert.Command(), mixer.SourceExpert, true
			}
			logger.WarnCtx(ctx, "Expert selected but no expert action received, using predictor")
		}
	}

	obs, ok := l.memory.Observation()
	if !ok {
		return vehicle.ControlCommand{}, "", false
	}

	start := time.Now()
	cmd, err := l.predictor.Predict(ctx, obs)
	l.metrics.ObservePredict(time.Since(start))
	if err == nil {
		return cmd, mixer.SourceModel, true
	}

	if l.cfg.Mode == ModeDagger && l.cfg.ExpertFallback && msg.Expert != nil {
		logger.WarnCtx(ctx, "Prediction failed, falling back to expert", logger.KeyError, err)
		return msg.Expert.Command(), mixer.SourceExpert, true
	}
	l.skipped.Add(1)
	l.metrics.ObserveSkip(metrics.ReasonPredict)
	logger.WarnCtx(ctx, "Prediction failed, skipping tick", logger.KeyError, err)
	return vehicle.ControlCommand{}, "", false
}
