package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketEndpoint binds an HTTP listener and upgrades the first
// incoming connection to a WebSocket, the WebSocket analogue of
// TCPEndpoint's "the library binds and the server connects" contract.
// Grounded on the teacher's internal/web/websocket Upgrader, trimmed to
// a single connection: an LSP transport is a 1:1 client/server pipe,
// not the hub's multi-client broadcast rooms.
type WebSocketEndpoint struct {
	ln       net.Listener
	upgrader websocket.Upgrader
	logger   *zap.Logger

	accepted chan *websocket.Conn
	errs     chan error
}

// WebSocketEndpointOption configures a WebSocketEndpoint at construction.
type WebSocketEndpointOption func(*WebSocketEndpoint)

// WithCheckOrigin overrides the upgrader's origin check, which defaults
// to accepting every origin (an LSP server is a local trusted peer, not
// a public browser client).
func WithCheckOrigin(fn func(r *http.Request) bool) WebSocketEndpointOption {
	return func(e *WebSocketEndpoint) { e.upgrader.CheckOrigin = fn }
}

// ListenWebSocket binds 127.0.0.1:0 (an ephemeral port, unless port is
// nonzero) for a single incoming WebSocket upgrade at path.
func ListenWebSocket(port int, path string, logger *zap.Logger, opts ...WebSocketEndpointOption) (*WebSocketEndpoint, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("transport: listen websocket: %w", err)
	}

	e := &WebSocketEndpoint{
		ln:     ln,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		accepted: make(chan *websocket.Conn, 1),
		errs:     make(chan error, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, e.serveUpgrade)
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			e.logger.Warn("websocket endpoint server stopped", zap.Error(err))
		}
	}()

	return e, nil
}

func (e *WebSocketEndpoint) serveUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		select {
		case e.errs <- fmt.Errorf("transport: websocket upgrade: %w", err):
		default:
		}
		return
	}
	select {
	case e.accepted <- conn:
	default:
		conn.Close()
	}
}

// Addr returns the bound address, e.g. "127.0.0.1:54321".
func (e *WebSocketEndpoint) Addr() string {
	return e.ln.Addr().String()
}

// Accept blocks until a peer completes the WebSocket upgrade, or ctx is
// cancelled.
func (e *WebSocketEndpoint) Accept(ctx context.Context) (Transport, error) {
	select {
	case conn := <-e.accepted:
		return NewWebSocketTransport(conn, e.logger), nil
	case err := <-e.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new connections.
func (e *WebSocketEndpoint) Close() error {
	return e.ln.Close()
}
