package rpc

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/lspkit/lspkit/internal/transport"
)

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

func TestSendRequestRoundTrip(t *testing.T) {
	clientTr, serverTr := pipePair(t)

	serverHandler := func(ctx context.Context, method string, params json.RawMessage) (any, *Error) {
		if method != "ping" {
			return nil, ErrMethodNotFound(method)
		}
		return map[string]string{"pong": "true"}, nil
	}
	_ = New(serverTr, nil, "srv", serverHandler, nil)
	client := New(clientTr, nil, "cli", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, rpcErr, err := client.SendRequest(ctx, "ping", nil)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if rpcErr != nil {
		t.Fatalf("unexpected rpc error: %v", rpcErr)
	}
	var decoded map[string]string
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if decoded["pong"] != "true" {
		t.Errorf("result = %v, want pong=true", decoded)
	}
}

func TestSendRequestMethodNotFound(t *testing.T) {
	clientTr, serverTr := pipePair(t)
	server := New(serverTr, nil, "srv", func(ctx context.Context, method string, params json.RawMessage) (any, *Error) {
		return nil, ErrMethodNotFound(method)
	}, nil)
	client := New(clientTr, nil, "cli", nil, nil)
	_ = server

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, rpcErr, err := client.SendRequest(ctx, "unknown/method", nil)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if rpcErr == nil {
		t.Fatal("expected rpc error")
	}
}

func TestSendNotification(t *testing.T) {
	clientTr, serverTr := pipePair(t)

	received := make(chan string, 1)
	server := New(serverTr, nil, "srv", nil, func(ctx context.Context, method string, params json.RawMessage) {
		received <- method
	})
	client := New(clientTr, nil, "cli", nil, nil)
	_ = server

	if err := client.SendNotification(context.Background(), "textDocument/didOpen", nil); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}

	select {
	case method := <-received:
		if method != "textDocument/didOpen" {
			t.Errorf("method = %q", method)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestSendRequestTimeout(t *testing.T) {
	clientTr, serverTr := pipePair(t)
	// Server never replies.
	server := New(serverTr, nil, "srv", func(ctx context.Context, method string, params json.RawMessage) (any, *Error) {
		select {}
	}, nil)
	client := New(clientTr, nil, "cli", nil, nil)
	_ = server

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := client.SendRequest(ctx, "slow", nil)
	if err != ErrRequestTimeout {
		t.Fatalf("err = %v, want ErrRequestTimeout", err)
	}
}

func TestDispatcherDisconnectFailsPending(t *testing.T) {
	clientTr, serverTr := pipePair(t)
	client := New(clientTr, nil, "cli", nil, nil)
	_ = New(serverTr, nil, "srv", func(ctx context.Context, method string, params json.RawMessage) (any, *Error) {
		select {}
	}, nil)

	done := make(chan struct{})
	var sendErr error
	go func() {
		_, _, sendErr = client.SendRequest(context.Background(), "hangs", nil)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	serverTr.Close()
	clientTr.Close()

	select {
	case <-done:
		if sendErr == nil {
			t.Fatal("expected an error after disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendRequest did not unblock after disconnect")
	}
}

func TestUnmatchedResponseIDIsDroppedNotFatal(t *testing.T) {
	clientTr, serverTr := pipePair(t)
	client := New(clientTr, nil, "cli", nil, nil)
	_ = client

	// Send a response with an id the client never issued.
	payload := []byte(`{"jsonrpc":"2.0","id":"ghost","result":{}}`)
	if err := serverTr.Send(context.Background(), transport.Frame{Payload: payload}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// No panic, no crash: give the dispatcher loop a moment to process.
	time.Sleep(50 * time.Millisecond)
}
