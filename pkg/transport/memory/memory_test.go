package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dagpilot/pkg/transport"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

func TestOrderedLosslessDelivery(t *testing.T) {
	ctx := context.Background()
	tr := New(4)

	go func() {
		for i := 0; i < 100; i++ {
			_ = tr.Publish(ctx, transport.Message{Telemetry: vehicle.Telemetry{Gear: i}})
		}
		tr.EndStream()
	}()

	for i := 0; i < 100; i++ {
		msg, err := tr.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, i, msg.Telemetry.Gear)
	}
	_, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, transport.ErrEndOfStream)
}

func TestReceiveHonorsContext(t *testing.T) {
	tr := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandshake(t *testing.T) {
	tr := New(1)
	require.NoError(t, tr.Handshake(context.Background()))
	assert.Equal(t, 1, tr.Handshakes())

	tr.FailHandshake(errors.New("no peer"))
	assert.ErrorIs(t, tr.Handshake(context.Background()), transport.ErrHandshake)
}

func TestSendAndClose(t *testing.T) {
	tr := New(1)
	var seen []vehicle.ControlCommand
	tr.OnSend(func(c vehicle.ControlCommand) { seen = append(seen, c) })

	cmd := vehicle.ControlCommand{Gear: 1, Throttle: 0.5}
	require.NoError(t, tr.Send(context.Background(), cmd))
	assert.Equal(t, []vehicle.ControlCommand{cmd}, tr.Sent())
	assert.Equal(t, []vehicle.ControlCommand{cmd}, seen)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.True(t, tr.Closed())

	assert.ErrorIs(t, tr.Send(context.Background(), cmd), transport.ErrClosed)
	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, tr.Publish(context.Background(), transport.Message{}), transport.ErrClosed)
}
