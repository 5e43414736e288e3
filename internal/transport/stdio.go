package transport

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// rwc joins a separate reader and writer (as obtained from a child
// process's stdout/stdin pipes) into a single io.ReadWriteCloser.
type rwc struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (c rwc) Close() error {
	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewStdioStream builds a Transport directly over an already-connected
// read/write/close triple — used for tests (net.Pipe()) and for hosts
// that manage subprocess lifetime themselves. closer may be nil.
func NewStdioStream(reader io.Reader, writer io.Writer, closer io.Closer, logger *zap.Logger) Transport {
	var closers []io.Closer
	if closer != nil {
		closers = []io.Closer{closer}
	}
	return newStreamTransport(rwc{Reader: reader, Writer: writer, closers: closers}, logger)
}

// StdioProcess is a Transport backed by a directly-spawned child
// process's stdin/stdout. The child's stderr is scanned line by line and
// forwarded to the logger at Warn level, the same way a captured
// subprocess's diagnostic stream is surfaced in every corpus LSP client.
type StdioProcess struct {
	Transport
	cmd *exec.Cmd
}

// NewStdioProcess launches command with args and wires its stdio as a
// Transport. The process is started but never waited on; Close kills
// it without reaping it.
func NewStdioProcess(ctx context.Context, command string, args []string, logger *zap.Logger) (*StdioProcess, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go forwardStderr(stderr, logger)

	t := newStreamTransport(rwc{Reader: stdout, Writer: stdin, closers: []io.Closer{stdin}}, logger)
	return &StdioProcess{Transport: t, cmd: cmd}, nil
}

func forwardStderr(r io.Reader, logger *zap.Logger) {
	scanner := bufio.NewScanner(r)
	// Server stderr lines can exceed the default 64KiB token limit for
	// verbose language servers; grow the buffer generously.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		logger.Warn("server stderr", zap.String("line", scanner.Text()))
	}
}

// Close closes the transport and releases the child process.
func (p *StdioProcess) Close() error {
	err := p.Transport.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return err
}
