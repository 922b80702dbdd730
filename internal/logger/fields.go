package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently so log lines can be aggregated by session and tick.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Control Loop
	// ========================================================================
	KeySessionID    = "session_id"   // Driving session identifier (uuid)
	KeyMode         = "mode"         // dagger or plain
	KeyState        = "state"        // Loop state: HANDSHAKING, RUNNING, ...
	KeyTick         = "tick"         // Processed message counter
	KeyIteration    = "iteration"    // Successful retrain counter
	KeySource       = "source"       // Action source: expert or model
	KeyProbability  = "probability"  // Expert probability at the current iteration
	KeyDraw         = "draw"         // Uniform sample compared against probability
	KeyWindow       = "window"       // Samples in a drained training window
	KeyFrames       = "frames"       // Frames in a session or artifact
	KeyDifferential = "differential" // Command carries deltas instead of absolutes

	// ========================================================================
	// Transport
	// ========================================================================
	KeyEndpoint  = "endpoint"  // Socket endpoint, e.g. tcp://127.0.0.1:5555
	KeyDirection = "direction" // inbound or outbound
	KeyParts     = "parts"     // Frames in a multipart message

	// ========================================================================
	// Predictor
	// ========================================================================
	KeyPredictor = "predictor"  // Predictor implementation name
	KeyModel     = "model"      // Model identifier
	KeySamples   = "samples"    // Training samples in a batch
	KeyTrainLoss = "train_loss" // Mean squared error on the training split
	KeyTestLoss  = "test_loss"  // Mean squared error on the held-out split

	// ========================================================================
	// Persistence
	// ========================================================================
	KeyPath   = "path"   // Filesystem path
	KeyName   = "name"   // Artifact or record name
	KeyBucket = "bucket" // S3 bucket
	KeyKey    = "key"    // Object key in S3

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
	KeyAttempt    = "attempt"
)

// Err returns a slog.Attr for an error. A nil error yields an empty attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// SessionID returns a slog.Attr for the session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Tick returns a slog.Attr for the tick counter
func Tick(n int64) slog.Attr {
	return slog.Int64(KeyTick, n)
}

// Iteration returns a slog.Attr for the dagger iteration
func Iteration(n int64) slog.Attr {
	return slog.Int64(KeyIteration, n)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// DurationMs returns a slog.Attr for a duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
