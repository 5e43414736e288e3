package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Transport is the structural interface every concrete transport
// implements. All transports are equivalent from the dispatcher's point
// of view — they differ only in how the underlying byte stream (or, for
// WebSocketTransport, message stream) is obtained.
type Transport interface {
	// Send writes a single frame, atomically with respect to the peer.
	Send(ctx context.Context, f Frame) error

	// Frames delivers parsed inbound frames in arrival order. The
	// channel is closed when the transport disconnects.
	Frames() <-chan Frame

	// Disconnected fires exactly once, with the cause (nil for a clean
	// Close), when the underlying stream is no longer usable.
	Disconnected() <-chan error

	// Close tears down the transport. Idempotent.
	Close() error
}

// streamTransport implements Transport over an io.ReadWriteCloser using
// Content-Length-prefixed framing. NewStdioStream, NewStdioProcess,
// TCPEndpoint.Accept and PipeEndpoint.Accept all build their Transport
// on it.
type streamTransport struct {
	rwc    io.ReadWriteCloser
	logger *zap.Logger

	writeMu sync.Mutex

	frames       chan Frame
	disconnected chan error
	closeOnce    sync.Once
	disconnOnce  sync.Once
}

func newStreamTransport(rwc io.ReadWriteCloser, logger *zap.Logger) *streamTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &streamTransport{
		rwc:          rwc,
		logger:       logger,
		frames:       make(chan Frame, 64),
		disconnected: make(chan error, 1),
	}
	go t.readLoop()
	return t
}

func (t *streamTransport) readLoop() {
	fr := newFrameReader(t.rwc)
	defer close(t.frames)
	for {
		frame, err := fr.readFrame()
		if err != nil {
			t.fail(err)
			return
		}
		t.frames <- frame
	}
}

func (t *streamTransport) fail(cause error) {
	t.disconnOnce.Do(func() {
		if cause != nil && cause != io.EOF {
			t.logger.Warn("transport disconnected", zap.Error(cause))
		}
		t.disconnected <- cause
		close(t.disconnected)
	})
}

func (t *streamTransport) Send(ctx context.Context, f Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := writeFrame(t.rwc, f); err != nil {
		t.fail(err)
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (t *streamTransport) Frames() <-chan Frame {
	return t.frames
}

func (t *streamTransport) Disconnected() <-chan error {
	return t.disconnected
}

func (t *streamTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.rwc.Close()
		t.fail(nil)
	})
	return err
}
