// Package lspkit is a Go library for driving one or more language
// servers over JSON-RPC: opening workspaces, managing document state
// with editor-like fidelity, negotiating capabilities, and issuing
// semantic queries (symbols, references, definitions, renames,
// diagnostics).
//
// Most callers only need this package; internals live under internal/
// and the public reuse surface (position types, document handles)
// lives under pkg/.
package lspkit

import (
	"context"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/lspkit/lspkit/internal/client"
	"github.com/lspkit/lspkit/internal/config"
	"github.com/lspkit/lspkit/internal/transport"
	"github.com/lspkit/lspkit/internal/workspace"
)

// Client drives a single language server connection: lifecycle state
// machine, typed request/notification dispatch, workspace-request
// routing.
type Client = client.Client

// ClientOption configures a Client at construction time.
type ClientOption = client.Option

// Workspace owns a set of root folders, the documents opened under
// them, and the clients attached to it.
type Workspace = workspace.Workspace

// WorkspaceOption configures a Workspace at construction time.
type WorkspaceOption = workspace.Option

// Root is one workspace folder paths resolve relative to.
type Root = workspace.Root

// Config is lspkit's ambient configuration (library identity, request
// timeout, position-encoding preference), optionally overridden by an
// lspkit.yaml (spec.md §6).
type Config = config.Defaults

// WorkspaceFolderSource supplies workspace folders to
// DefaultInitializeParams; *Workspace satisfies it.
type WorkspaceFolderSource = client.WorkspaceFolderSource

// LoadConfig reads an optional lspkit.yaml at path (a directory to
// search, or "" for the current directory), falling back to built-in
// defaults when none is present.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// WithConfig applies cfg's RequestTimeout to a Client as the bound on
// every request issued without its own deadline. cfg's library
// identity is not read here; pass cfg to DefaultInitializeParams for
// ClientInfo.
func WithConfig(cfg *Config) ClientOption {
	return client.WithConfig(cfg)
}

// WithRequestTimeout bounds every request a Client issues without its
// own caller-supplied deadline; zero disables the bound.
func WithRequestTimeout(d time.Duration) ClientOption {
	return client.WithRequestTimeout(d)
}

// WithName sets the id-prefix namespace used for a Client's outgoing
// request ids.
func WithName(name string) ClientOption {
	return client.WithName(name)
}

// DefaultInitializeParams builds the InitializeParams spec.md §6 says a
// caller may start from: process id, cfg's library identity as
// ClientInfo, ws's workspace folders, and a baseline ClientCapabilities
// tree advertising the capability surface this module knows how to
// drive. cfg may be nil.
func DefaultInitializeParams(ctx context.Context, ws WorkspaceFolderSource, cfg *Config) (*protocol.InitializeParams, error) {
	return client.DefaultInitializeParams(ctx, ws, cfg)
}

// NewClient constructs a Client over tr, an already-established
// Transport to a language server.
func NewClient(tr transport.Transport, logger *zap.Logger, opts ...ClientOption) *Client {
	return client.New(tr, logger, opts...)
}

// NewWorkspace constructs an empty Workspace over roots.
func NewWorkspace(logger *zap.Logger, roots []Root, opts ...WorkspaceOption) *Workspace {
	return workspace.New(logger, roots, opts...)
}

// NewStdioStream wraps an already-spawned server process's stdin/stdout
// (and, if non-nil, a Closer that tears the process down) as a
// Transport.
func NewStdioStream(reader io.Reader, writer io.Writer, closer io.Closer, logger *zap.Logger) transport.Transport {
	return transport.NewStdioStream(reader, writer, closer, logger)
}

// NewStdioProcess launches command as a subprocess and wraps its
// stdin/stdout as a Transport.
func NewStdioProcess(ctx context.Context, command string, args []string, logger *zap.Logger) (transport.Transport, error) {
	return transport.NewStdioProcess(ctx, command, args, logger)
}

// ListenTCP binds a loopback TCP socket for a server to connect to,
// returning the endpoint a caller Accepts a Transport from.
func ListenTCP(port int, logger *zap.Logger) (*transport.TCPEndpoint, error) {
	return transport.ListenTCP(port, logger)
}

// ListenPipe binds a named pipe (Windows) / UNIX domain socket
// (everything else) for a server to connect to.
func ListenPipe(id string, logger *zap.Logger) (*transport.PipeEndpoint, error) {
	return transport.ListenPipe(id, logger)
}

// NewWebSocketTransport wraps an already-established WebSocket
// connection as a Transport.
func NewWebSocketTransport(conn *websocket.Conn, logger *zap.Logger) *transport.WebSocketTransport {
	return transport.NewWebSocketTransport(conn, logger)
}

// ListenWebSocket binds an HTTP listener and upgrades the first
// incoming connection at path to a WebSocket, for a browser-hosted
// server to connect back to.
func ListenWebSocket(port int, path string, logger *zap.Logger, opts ...transport.WebSocketEndpointOption) (*transport.WebSocketEndpoint, error) {
	return transport.ListenWebSocket(port, path, logger, opts...)
}
