package telemetry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "dagpilot", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestSpansAreNoopWithoutInit(t *testing.T) {
	install(nil)
	ctx := context.Background()

	newCtx, span := StartRetrainSpan(ctx, 200, 0, Samples(160), Predictor("linear"))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	assert.False(t, span.SpanContext().IsValid())

	require.NotPanics(t, func() {
		SetAttributes(newCtx, Model("2026_10_19_model_1"))
		RecordError(newCtx, errors.New("fit failed"))
		RecordError(newCtx, nil)
		Finish(span, errors.New("fit failed"))
	})

	h := http.Header{}
	InjectHeaders(newCtx, h)
	assert.Empty(t, h.Get("traceparent"))
}

func TestSessionSpanTree(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	install(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { install(nil) })
	require.True(t, IsEnabled())

	ctx, session := StartSessionSpan(context.Background(), "s-1", "dagger", "linear")
	rctx, retrain := StartRetrainSpan(ctx, 200, 0)
	_, fit := StartFitSpan(rctx, 160)
	Finish(fit, errors.New("diverged"))
	Finish(retrain, nil)

	h := http.Header{}
	InjectHeaders(ctx, h)
	assert.Contains(t, h.Get("traceparent"), session.SpanContext().TraceID().String())

	_, upload := StartUploadSpan(ctx, "sessions", "2026/10/19/s-1.avi")
	Finish(upload, nil)
	session.End()

	spans := sr.Ended()
	require.Len(t, spans, 4)
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}

	root := byName[SpanSession]
	require.NotNil(t, root)
	assert.Contains(t, root.Attributes(), SessionID("s-1"))
	assert.Contains(t, root.Attributes(), Mode("dagger"))

	fitSpan := byName[SpanFit]
	require.NotNil(t, fitSpan)
	assert.Equal(t, codes.Error, fitSpan.Status().Code)
	assert.Contains(t, fitSpan.Attributes(), Samples(160))
	assert.Equal(t, byName[SpanRetrain].SpanContext().SpanID(), fitSpan.Parent().SpanID())
	assert.Equal(t, codes.Unset, byName[SpanRetrain].Status().Code)

	up := byName[SpanUpload]
	require.NotNil(t, up)
	assert.Equal(t, root.SpanContext().SpanID(), up.Parent().SpanID())
	assert.Contains(t, up.Attributes(), StorageKey("2026/10/19/s-1.avi"))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1.0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}

func TestAttributeHelpers(t *testing.T) {
	cases := []struct {
		name string
		key  string
		got  string
		want string
	}{
		{"SessionID", AttrSessionID, SessionID("s").Value.AsString(), "s"},
		{"Mode", AttrMode, Mode("dagger").Value.AsString(), "dagger"},
		{"Artifact", AttrArtifact, Artifact("a").Value.AsString(), "a"},
		{"Bucket", AttrBucket, Bucket("b").Value.AsString(), "b"},
		{"StorageKey", AttrKey, StorageKey("k").Value.AsString(), "k"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}

	assert.Equal(t, int64(7), Tick(7).Value.AsInt64())
	assert.Equal(t, AttrTick, string(Tick(7).Key))
	assert.Equal(t, int64(2), Iteration(2).Value.AsInt64())
	assert.Equal(t, int64(12), Frames(12).Value.AsInt64())
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, stop())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileType(t *testing.T) {
	_, err := parseProfileType("cpu")
	assert.NoError(t, err)
	_, err = parseProfileType("gpu")
	assert.Error(t, err)
}
