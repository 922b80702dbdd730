// Package transport moves observations from the vehicle to the pilot and
// control commands back.
//
// Implementations must deliver inbound messages in order and never drop them.
// Send is best effort and must not block the control loop.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dagpilot/pkg/vehicle"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("transport closed")

	// ErrHandshake wraps failures to synchronize either direction.
	ErrHandshake = errors.New("transport handshake failed")

	// ErrEndOfStream signals that the inbound side finished cleanly.
	ErrEndOfStream = errors.New("end of stream")

	// ErrMalformed wraps decode failures of a single inbound message.
	// The message is lost but the transport stays usable.
	ErrMalformed = errors.New("malformed message")

	// ErrSendQueueFull is returned when Send cannot enqueue without blocking.
	ErrSendQueueFull = errors.New("send queue full")
)

// Message is one synchronized observation.
type Message struct {
	Frame     *vehicle.Frame
	Telemetry vehicle.Telemetry

	// Expert is set only when the vehicle runs with an expert attached.
	Expert *vehicle.ExpertAction

	Received time.Time
}

// Transport is the pilot's link to the vehicle.
type Transport interface {
	// Handshake synchronizes both directions before any data flows.
	Handshake(ctx context.Context) error

	// Receive blocks until the next inbound message.
	Receive(ctx context.Context) (Message, error)

	// Send enqueues a command for delivery.
	Send(ctx context.Context, cmd vehicle.ControlCommand) error

	// Close releases both directions. It is safe to call more than once.
	Close() error
}
