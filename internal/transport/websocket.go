package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketTransport carries one JSON-RPC frame per WebSocket binary
// message. This is the transport of choice for browser-hosted editors
// that cannot spawn a subprocess or open a raw TCP socket — the same
// deployment shape the teacher's internal/web/websocket hub serves for
// its own application protocol, generalized here to JSON-RPC framing.
type WebSocketTransport struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	frames       chan Frame
	disconnected chan error
	closeOnce    sync.Once
	disconnOnce  sync.Once
}

// NewWebSocketTransport wraps an already-established *websocket.Conn
// (dialed by the caller, or accepted from an http.Upgrader) as a
// Transport.
func NewWebSocketTransport(conn *websocket.Conn, logger *zap.Logger) *WebSocketTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &WebSocketTransport{
		conn:         conn,
		logger:       logger,
		frames:       make(chan Frame, 64),
		disconnected: make(chan error, 1),
	}
	go t.readLoop()
	return t
}

func (t *WebSocketTransport) readLoop() {
	defer close(t.frames)
	for {
		msgType, payload, err := t.conn.ReadMessage()
		if err != nil {
			t.fail(err)
			return
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		t.frames <- Frame{ContentType: DefaultContentType, Payload: payload}
	}
}

func (t *WebSocketTransport) fail(cause error) {
	t.disconnOnce.Do(func() {
		if cause != nil {
			t.logger.Warn("websocket transport disconnected", zap.Error(cause))
		}
		t.disconnected <- cause
		close(t.disconnected)
	})
}

// Send writes payload as a single binary WebSocket message; no
// Content-Length header is needed on the wire since WebSocket already
// delimits messages, but callers still receive ordinary Frame values
// from Frames() so layer boundaries stay uniform across transports.
func (t *WebSocketTransport) Send(ctx context.Context, f Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, f.Payload); err != nil {
		t.fail(err)
		return fmt.Errorf("transport: websocket send: %w", err)
	}
	return nil
}

func (t *WebSocketTransport) Frames() <-chan Frame {
	return t.frames
}

func (t *WebSocketTransport) Disconnected() <-chan error {
	return t.disconnected
}

func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.Close()
		t.fail(nil)
	})
	return err
}
