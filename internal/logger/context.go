package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries the control-loop identity attached to every Ctx log line.
type LogContext struct {
	TraceID   string
	SpanID    string
	SessionID string
	Mode      string // dagger or plain
	Tick      int64
	Iteration int64
	HasTick   bool
	StartTime time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for one driving session.
func NewLogContext(sessionID, mode string) *LogContext {
	return &LogContext{
		SessionID: sessionID,
		Mode:      mode,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithTick returns a copy stamped with the loop counters.
func (lc *LogContext) WithTick(tick, iteration int64) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Tick = tick
		c.Iteration = iteration
		c.HasTick = true
	}
	return c
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
