// Package memory is a lossless in-process Transport. The vehicle side feeds it
// with Publish and reads back what the pilot sent with Sent.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dagpilot/pkg/transport"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// Transport is an in-memory transport.Transport.
type Transport struct {
	in   chan transport.Message
	done chan struct{}

	mu           sync.Mutex
	sent         []vehicle.ControlCommand
	inputClosed  bool
	closed       bool
	handshakeErr error
	handshakes   int
	onSend       func(vehicle.ControlCommand)
}

var _ transport.Transport = (*Transport)(nil)

// New returns a transport whose inbound side buffers up to size messages
// before Publish blocks.
func New(size int) *Transport {
	return &Transport{
		in:   make(chan transport.Message, size),
		done: make(chan struct{}),
	}
}

// FailHandshake makes the next Handshake calls return err.
func (t *Transport) FailHandshake(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handshakeErr = err
}

// OnSend registers fn to observe every command passed to Send.
func (t *Transport) OnSend(fn func(vehicle.ControlCommand)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSend = fn
}

// Handshake implements transport.Transport.
func (t *Transport) Handshake(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrHandshake, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	if t.handshakeErr != nil {
		return fmt.Errorf("%w: %v", transport.ErrHandshake, t.handshakeErr)
	}
	t.handshakes++
	return nil
}

// Handshakes reports how many handshakes succeeded.
func (t *Transport) Handshakes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handshakes
}

// Publish queues msg for Receive, blocking while the buffer is full.
func (t *Transport) Publish(ctx context.Context, msg transport.Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrClosed
	}
	if t.inputClosed {
		t.mu.Unlock()
		return fmt.Errorf("publish after end of stream")
	}
	t.mu.Unlock()

	select {
	case t.in <- msg:
		return nil
	case <-t.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EndStream marks the inbound side finished. Receive drains what is queued and
// then returns transport.ErrEndOfStream.
func (t *Transport) EndStream() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inputClosed && !t.closed {
		t.inputClosed = true
		close(t.in)
	}
}

// Receive implements transport.Transport.
func (t *Transport) Receive(ctx context.Context) (transport.Message, error) {
	select {
	case msg, ok := <-t.in:
		if !ok {
			return transport.Message{}, transport.ErrEndOfStream
		}
		return msg, nil
	case <-t.done:
		return transport.Message{}, transport.ErrClosed
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

// Send implements transport.Transport. It never blocks.
func (t *Transport) Send(_ context.Context, cmd vehicle.ControlCommand) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrClosed
	}
	t.sent = append(t.sent, cmd)
	fn := t.onSend
	t.mu.Unlock()

	if fn != nil {
		fn(cmd)
	}
	return nil
}

// Sent returns a copy of every command sent so far.
func (t *Transport) Sent() []vehicle.ControlCommand {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]vehicle.ControlCommand(nil), t.sent...)
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
