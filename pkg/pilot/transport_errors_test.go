package pilot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dagpilot/pkg/mixer"
	"github.com/marmos91/dagpilot/pkg/predictor"
	"github.com/marmos91/dagpilot/pkg/recorder"
	"github.com/marmos91/dagpilot/pkg/transport"
	"github.com/marmos91/dagpilot/pkg/transport/memory"
)

// scriptedTransport returns queued errors from Receive before delegating.
type scriptedTransport struct {
	*memory.Transport
	errs []error
}

func (s *scriptedTransport) Receive(ctx context.Context) (transport.Message, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return transport.Message{}, err
		}
	}
	return s.Transport.Receive(ctx)
}

type recordingSink struct {
	summaries []Summary
	err       error
}

func (r *recordingSink) SessionFinished(_ context.Context, s Summary) error {
	r.summaries = append(r.summaries, s)
	return r.err
}

func newScripted(t *testing.T, errs []error, sink SessionSink) (*Loop, *scriptedTransport) {
	t.Helper()
	st := &scriptedTransport{Transport: memory.New(16), errs: errs}
	loop, err := New(Config{Mode: ModeDagger, FrameWidth: testWidth, FrameHeight: testHeight}, Deps{
		Transport: st,
		Recorder: recorder.New(recorder.Config{
			Dir: t.TempDir(), Width: testWidth, Height: testHeight, FPS: 20,
		}),
		Predictor:   &fakePredictor{},
		Mixer:       mixer.New(1),
		Transformer: predictor.NewTransformer(1, 1, 1),
		Memory:      predictor.NewMemory(1, 1),
		Sink:        sink,
	})
	require.NoError(t, err)
	return loop, st
}

func TestMalformedMessagesAreSkipped(t *testing.T) {
	bad := fmt.Errorf("%w: short multipart", transport.ErrMalformed)
	loop, st := newScripted(t, []error{bad, nil, bad}, nil)
	for i := range 3 {
		require.NoError(t, st.Publish(context.Background(), message(i, true)))
	}
	st.EndStream()

	require.NoError(t, loop.Run(context.Background()))

	s := loop.Status()
	assert.Equal(t, int64(3), s.Ticks)
	assert.Equal(t, int64(2), s.Skipped)
	assert.Len(t, st.Sent(), 3)
}

func TestFatalTransportErrorStillFlushes(t *testing.T) {
	sink := &recordingSink{}
	loop, st := newScripted(t, []error{nil, nil, transport.ErrClosed}, sink)
	for i := range 2 {
		require.NoError(t, st.Publish(context.Background(), message(i, true)))
	}

	err := loop.Run(context.Background())
	require.ErrorIs(t, err, transport.ErrClosed)

	assert.Equal(t, StateTerminated, loop.State())
	require.Len(t, sink.summaries, 1)
	s := sink.summaries[0]
	assert.Equal(t, int64(2), s.Ticks)
	assert.Equal(t, 2, s.Artifact.Frames)
	assert.Contains(t, s.ExitError, "transport closed")
	assert.Equal(t, loop.SessionID(), s.SessionID)
}

func TestSinkFailureDoesNotFailShutdown(t *testing.T) {
	sink := &recordingSink{err: errors.New("catalog offline")}
	loop, st := newScripted(t, nil, sink)
	require.NoError(t, st.Publish(context.Background(), message(0, true)))
	st.EndStream()

	require.NoError(t, loop.Run(context.Background()))
	require.Len(t, sink.summaries, 1)
	assert.Empty(t, sink.summaries[0].ExitError)
	assert.Equal(t, ModeDagger, sink.summaries[0].Mode)
	assert.Equal(t, "fake", sink.summaries[0].Predictor)
}
