package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestStdioStreamSendAndReceive(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := NewStdioStream(clientConn, clientConn, clientConn, nil)
	server := NewStdioStream(serverConn, serverConn, serverConn, nil)
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	payload := []byte(`{"jsonrpc":"2.0","method":"ping"}`)
	if err := client.Send(ctx, Frame{Payload: payload}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case f := <-server.Frames():
		if string(f.Payload) != string(payload) {
			t.Errorf("payload = %q, want %q", f.Payload, payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestStdioStreamDisconnectOnClose(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	client := NewStdioStream(clientConn, clientConn, clientConn, nil)

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-client.Disconnected():
	case <-time.After(time.Second):
		t.Fatal("expected Disconnected to fire after Close")
	}
}
