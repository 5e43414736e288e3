package client

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/lspkit/lspkit/internal/capability"
	"github.com/lspkit/lspkit/internal/rpc"
	"github.com/lspkit/lspkit/internal/transport"
)

// fakeServer answers initialize/shutdown directly over a raw
// dispatcher, standing in for a real language server the way the
// teacher's server_test.go wires an in-memory jsonrpc2 connection.
func newFakeServer(t *testing.T, tr transport.Transport) *rpc.Dispatcher {
	t.Helper()
	return rpc.New(tr, nil, "fake-server", func(ctx context.Context, method string, params json.RawMessage) (any, *rpc.Error) {
		switch method {
		case "initialize":
			return protocol.InitializeResult{
				Capabilities: protocol.ServerCapabilities{
					HoverProvider: true,
				},
			}, nil
		case "shutdown":
			return nil, nil
		default:
			return nil, rpc.ErrMethodNotFound(method)
		}
	}, func(ctx context.Context, method string, params json.RawMessage) {
		if method == "exit" {
			tr.Close()
		}
	})
}

func pipePair(t *testing.T) (transport.Transport, transport.Transport) {
	t.Helper()
	a, b := net.Pipe()
	t1 := transport.NewStdioStream(a, a, a, nil)
	t2 := transport.NewStdioStream(b, b, b, nil)
	t.Cleanup(func() {
		t1.Close()
		t2.Close()
	})
	return t1, t2
}

func TestClientFullLifecycle(t *testing.T) {
	clientTr, serverTr := pipePair(t)
	newFakeServer(t, serverTr)

	c := New(clientTr, nil)
	require.Equal(t, StateDisconnected, c.State())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, c.Launch(ctx))
	require.Equal(t, StateUninitialized, c.State())

	result, err := c.Initialize(ctx, &protocol.InitializeParams{})
	require.NoError(t, err)
	require.True(t, result.Capabilities.HoverProvider)
	require.Equal(t, StateInitializing, c.State())
	require.True(t, c.Capabilities().CheckFeature("textDocument/hover", capability.Predicates{}))

	require.NoError(t, c.Initialized(ctx))
	require.Equal(t, StateRunning, c.State())

	require.NoError(t, c.Shutdown(ctx))
	require.Equal(t, StateShutdown, c.State())

	require.NoError(t, c.Exit(ctx))
	require.Equal(t, StateDisconnected, c.State())
}

func TestSendRequestInvalidStateBeforeInitialize(t *testing.T) {
	clientTr, serverTr := pipePair(t)
	newFakeServer(t, serverTr)

	c := New(clientTr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Launch(ctx))

	_, err := c.SendRequest(ctx, "textDocument/hover", nil)
	require.Error(t, err)
	var stateErr *ErrInvalidState
	require.ErrorAs(t, err, &stateErr)
}

func TestEnterLeaveScope(t *testing.T) {
	clientTr, serverTr := pipePair(t)
	newFakeServer(t, serverTr)

	c := New(clientTr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	scope, err := EnterScope(ctx, c, &protocol.InitializeParams{})
	require.NoError(t, err)
	require.Equal(t, StateRunning, c.State())

	scope.Leave(ctx)
	require.Equal(t, StateDisconnected, c.State())
}
