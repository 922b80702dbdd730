// Package zmq implements transport.Transport over ZeroMQ PUB/SUB sockets.
package zmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/transport"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

const (
	syncRequest = "sync"
	syncReply   = "ready"
)

type inbound struct {
	msg transport.Message
	err error
}

// Transport is a ZeroMQ transport.
type Transport struct {
	cfg   Config
	codec *transport.Codec

	ctx    context.Context
	cancel context.CancelFunc

	sub zmq4.Socket
	pub zmq4.Socket

	in  chan inbound
	out chan []byte
	wg  sync.WaitGroup

	mu        sync.Mutex
	started   bool
	closed    bool
	closeOnce sync.Once
}

var _ transport.Transport = (*Transport)(nil)

// New creates the sockets. Nothing is connected until Handshake.
func New(cfg Config, codec *transport.Codec) *Transport {
	if cfg.ReceiveBuffer <= 0 {
		cfg.ReceiveBuffer = 64
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	if cfg.DialRetry <= 0 {
		cfg.DialRetry = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		cfg:    cfg,
		codec:  codec,
		ctx:    ctx,
		cancel: cancel,
		sub:    zmq4.NewSub(ctx, zmq4.WithDialerRetry(cfg.DialRetry)),
		pub:    zmq4.NewPub(ctx),
		in:     make(chan inbound, cfg.ReceiveBuffer),
		out:    make(chan []byte, cfg.SendBuffer),
	}
}

// Handshake connects the data subscriber and binds the command publisher,
// then synchronizes each direction with its peer.
func (t *Transport) Handshake(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrClosed
	}
	t.mu.Unlock()

	if t.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.HandshakeTimeout)
		defer cancel()
	}

	if err := t.syncSubscriber(ctx); err != nil {
		return fmt.Errorf("%w: data channel: %v", transport.ErrHandshake, err)
	}
	if err := t.syncPublisher(ctx); err != nil {
		return fmt.Errorf("%w: control channel: %v", transport.ErrHandshake, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	if !t.started {
		t.started = true
		t.wg.Add(2)
		go t.readLoop()
		go t.writeLoop()
	}
	return nil
}

// syncSubscriber subscribes to the data stream and tells the remote publisher
// it may start sending.
func (t *Transport) syncSubscriber(ctx context.Context) error {
	if err := t.sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if err := retry(ctx, t.cfg.DialRetry, func() error { return t.sub.Dial(t.cfg.dataEndpoint()) }); err != nil {
		return fmt.Errorf("dial %s: %w", t.cfg.dataEndpoint(), err)
	}
	logger.Debug("Subscribed to data stream", logger.KeyEndpoint, t.cfg.dataEndpoint())

	req := zmq4.NewReq(t.ctx, zmq4.WithDialerRetry(t.cfg.DialRetry))
	defer func() { _ = req.Close() }()

	if err := retry(ctx, t.cfg.DialRetry, func() error { return req.Dial(t.cfg.dataSyncEndpoint()) }); err != nil {
		return fmt.Errorf("dial %s: %w", t.cfg.dataSyncEndpoint(), err)
	}
	return withContext(ctx, req, func() error {
		if err := req.Send(zmq4.NewMsgString(syncRequest)); err != nil {
			return err
		}
		_, err := req.Recv()
		return err
	})
}

// syncPublisher binds the command stream and waits for the remote subscriber
// to announce itself.
func (t *Transport) syncPublisher(ctx context.Context) error {
	if err := t.pub.Listen(t.cfg.controlEndpoint()); err != nil {
		return fmt.Errorf("listen %s: %w", t.cfg.controlEndpoint(), err)
	}
	logger.Debug("Publishing commands", logger.KeyEndpoint, t.cfg.controlEndpoint())

	rep := zmq4.NewRep(t.ctx)
	defer func() { _ = rep.Close() }()

	if err := rep.Listen(t.cfg.controlSyncEndpoint()); err != nil {
		return fmt.Errorf("listen %s: %w", t.cfg.controlSyncEndpoint(), err)
	}
	return withContext(ctx, rep, func() error {
		if _, err := rep.Recv(); err != nil {
			return err
		}
		return rep.Send(zmq4.NewMsgString(syncReply))
	})
}

// withContext runs fn, closing sock if ctx ends first so that fn unblocks.
func withContext(ctx context.Context, sock zmq4.Socket, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = sock.Close()
		<-done
		return ctx.Err()
	}
}

func retry(ctx context.Context, pause time.Duration, fn func() error) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(pause):
		}
	}
}

func (t *Transport) readLoop() {
	defer t.wg.Done()
	defer close(t.in)

	for {
		raw, err := t.sub.Recv()
		if err != nil {
			if t.ctx.Err() == nil {
				t.deliver(inbound{err: fmt.Errorf("receive: %w", err)})
			}
			return
		}
		msg, err := t.codec.Decode(raw.Frames)
		msg.Received = time.Now()
		if !t.deliver(inbound{msg: msg, err: err}) {
			return
		}
	}
}

// deliver blocks until the loop takes the message or the transport closes.
func (t *Transport) deliver(in inbound) bool {
	select {
	case t.in <- in:
		return true
	case <-t.ctx.Done():
		return false
	}
}

func (t *Transport) writeLoop() {
	defer t.wg.Done()
	for {
		select {
		case data := <-t.out:
			if err := t.pub.Send(zmq4.NewMsg(data)); err != nil {
				logger.Warn("Command publish failed", logger.KeyEndpoint, t.cfg.controlEndpoint(), logger.KeyError, err)
			}
		case <-t.ctx.Done():
			return
		}
	}
}

// Receive returns the next decoded message. Decode failures wrap
// transport.ErrMalformed and leave the transport usable.
func (t *Transport) Receive(ctx context.Context) (transport.Message, error) {
	select {
	case in, ok := <-t.in:
		if !ok {
			return transport.Message{}, transport.ErrClosed
		}
		return in.msg, in.err
	case <-t.ctx.Done():
		return transport.Message{}, transport.ErrClosed
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

// Send encodes cmd and queues it for the publisher without blocking.
func (t *Transport) Send(_ context.Context, cmd vehicle.ControlCommand) error {
	if t.ctx.Err() != nil {
		return transport.ErrClosed
	}
	data, err := transport.EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	select {
	case t.out <- data:
		return nil
	default:
		return transport.ErrSendQueueFull
	}
}

// Close stops both loops and closes the sockets.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		t.cancel()
		err = errors.Join(t.sub.Close(), t.pub.Close())
		t.wg.Wait()
	})
	return err
}
