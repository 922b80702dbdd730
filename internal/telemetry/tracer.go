package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for control-loop spans.
const (
	// ========================================================================
	// Session & loop counters
	// ========================================================================
	AttrSessionID = "pilot.session_id"
	AttrMode      = "pilot.mode"
	AttrTick      = "pilot.tick"
	AttrIteration = "pilot.iteration"

	// ========================================================================
	// Training
	// ========================================================================
	AttrPredictor = "predictor.name"
	AttrSamples   = "predictor.samples"
	AttrModel     = "predictor.model"

	// ========================================================================
	// Persistence
	// ========================================================================
	AttrArtifact = "recorder.artifact"
	AttrFrames   = "recorder.frames"
	AttrBucket   = "storage.bucket"
	AttrKey      = "storage.key"
)

// Span names.
const (
	SpanSession     = "pilot.session"
	SpanHandshake   = "pilot.handshake"
	SpanRetrain     = "pilot.retrain"
	SpanShutdown    = "pilot.shutdown"
	SpanFit         = "predictor.fit"
	SpanModelSave   = "predictor.save"
	SpanModelLoad   = "predictor.load"
	SpanSaveSession = "recorder.save_session"
	SpanCatalogPut  = "catalog.put"
	SpanUpload      = "upload.put"
)

// SessionID returns an attribute for the driving session id
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// Mode returns an attribute for the prediction mode
func Mode(mode string) attribute.KeyValue {
	return attribute.String(AttrMode, mode)
}

// Tick returns an attribute for the tick counter
func Tick(n int64) attribute.KeyValue {
	return attribute.Int64(AttrTick, n)
}

// Iteration returns an attribute for the dagger iteration
func Iteration(n int64) attribute.KeyValue {
	return attribute.Int64(AttrIteration, n)
}

// Predictor returns an attribute for the predictor implementation
func Predictor(name string) attribute.KeyValue {
	return attribute.String(AttrPredictor, name)
}

// Samples returns an attribute for a training batch size
func Samples(n int) attribute.KeyValue {
	return attribute.Int(AttrSamples, n)
}

// Model returns an attribute for a model identifier
func Model(id string) attribute.KeyValue {
	return attribute.String(AttrModel, id)
}

// Artifact returns an attribute for a session artifact name
func Artifact(name string) attribute.KeyValue {
	return attribute.String(AttrArtifact, name)
}

// Frames returns an attribute for a frame count
func Frames(n int) attribute.KeyValue {
	return attribute.Int(AttrFrames, n)
}

// Bucket returns an attribute for S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartSessionSpan starts the root span of a driving session. Every other
// loop span is its descendant.
func StartSessionSpan(ctx context.Context, sessionID, mode, predictor string) (context.Context, trace.Span) {
	return start(ctx, SpanSession, SessionID(sessionID), Mode(mode), Predictor(predictor))
}

// StartHandshakeSpan starts the span covering transport synchronization.
func StartHandshakeSpan(ctx context.Context) (context.Context, trace.Span) {
	return start(ctx, SpanHandshake)
}

// StartRetrainSpan starts the span wrapping one retraining phase.
func StartRetrainSpan(ctx context.Context, tick, iteration int64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Tick(tick), Iteration(iteration)}, attrs...)
	return start(ctx, SpanRetrain, all...)
}

// StartFitSpan starts the span of a single Fit call on a batch.
func StartFitSpan(ctx context.Context, samples int) (context.Context, trace.Span) {
	return start(ctx, SpanFit, Samples(samples))
}

// StartModelLoadSpan starts the span loading the pretrained model id.
func StartModelLoadSpan(ctx context.Context, id string) (context.Context, trace.Span) {
	return start(ctx, SpanModelLoad, Model(id))
}

// StartModelSaveSpan starts the span saving the model as id.
func StartModelSaveSpan(ctx context.Context, id string) (context.Context, trace.Span) {
	return start(ctx, SpanModelSave, Model(id))
}

// StartShutdownSpan starts the span of the shutdown sequence. frames is the
// size of the session history about to be flushed.
func StartShutdownSpan(ctx context.Context, frames int) (context.Context, trace.Span) {
	return start(ctx, SpanShutdown, Frames(frames))
}

// StartSaveSessionSpan starts the span writing the session artifact.
func StartSaveSessionSpan(ctx context.Context) (context.Context, trace.Span) {
	return start(ctx, SpanSaveSession)
}

// StartCatalogPutSpan starts the span indexing a finished session.
func StartCatalogPutSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return start(ctx, SpanCatalogPut, SessionID(sessionID))
}

// StartUploadSpan starts the span uploading one artifact file.
func StartUploadSpan(ctx context.Context, bucket, key string) (context.Context, trace.Span) {
	return start(ctx, SpanUpload, Bucket(bucket), StorageKey(key))
}
