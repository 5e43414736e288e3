package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
)

// PipeEndpoint is a Transport endpoint reached over a named pipe
// (Windows) or a UNIX domain socket (everything else). Both are exposed
// through Go's net.Listen("unix", ...), which the standard library
// backs with AF_UNIX sockets on every platform it supports, including
// Windows 10+; see DESIGN.md for why this project does not vendor a
// Windows-named-pipe-specific library.
type PipeEndpoint struct {
	ln     net.Listener
	path   string
	logger *zap.Logger
}

// ListenPipe creates a pipe/socket endpoint named id, placed under the
// OS temp directory. The returned Path is what the server process
// should be told to connect to.
func ListenPipe(id string, logger *zap.Logger) (*PipeEndpoint, error) {
	path := pipePath(id)
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen pipe: %w", err)
	}
	return &PipeEndpoint{ln: ln, path: path, logger: logger}, nil
}

func pipePath(id string) string {
	name := fmt.Sprintf("lspkit-%s.sock", id)
	if runtime.GOOS == "windows" {
		return `\\.\pipe\` + name
	}
	return filepath.Join(os.TempDir(), name)
}

// Path returns the endpoint's filesystem/pipe path.
func (e *PipeEndpoint) Path() string {
	return e.path
}

// Accept blocks until the server connects, or ctx is cancelled.
func (e *PipeEndpoint) Accept(ctx context.Context) (Transport, error) {
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
			return nil, fmt.Errorf("transport: accept pipe: %w", r.err)
		}
		return newStreamTransport(r.conn, e.logger), nil
	}
}

// Close stops listening and removes the backing socket file.
func (e *PipeEndpoint) Close() error {
	err := e.ln.Close()
	if runtime.GOOS != "windows" {
		_ = os.Remove(e.path)
	}
	return err
}
