package transport

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// TCPEndpoint binds a loopback TCP socket and waits for the language
// server to connect, per spec.md's "the library binds and the server
// connects" contract.
type TCPEndpoint struct {
	ln     net.Listener
	logger *zap.Logger
}

// ListenTCP binds 127.0.0.1:0 (an ephemeral port, unless port is
// nonzero) and returns the endpoint; call Addr for the value to hand to
// the server's launch arguments, then Accept to obtain the Transport.
func ListenTCP(port int, logger *zap.Logger) (*TCPEndpoint, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("transport: listen tcp: %w", err)
	}
	return &TCPEndpoint{ln: ln, logger: logger}, nil
}

// Addr returns the bound address, e.g. "127.0.0.1:54321".
func (e *TCPEndpoint) Addr() string {
	return e.ln.Addr().String()
}

// Accept blocks until the server connects, or ctx is cancelled.
func (e *TCPEndpoint) Accept(ctx context.Context) (Transport, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := e.ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		_ = e.ln.Close()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("transport: accept tcp: %w", r.err)
		}
		return newStreamTransport(r.conn, e.logger), nil
	}
}

// Close stops listening. Safe to call after Accept has already
// succeeded (a no-op at that point beyond releasing the listener).
func (e *TCPEndpoint) Close() error {
	return e.ln.Close()
}
