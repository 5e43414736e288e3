package transport

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketEndpointAcceptAndExchange(t *testing.T) {
	endpoint, err := ListenWebSocket(0, "/lsp", nil)
	if err != nil {
		t.Fatalf("ListenWebSocket: %v", err)
	}
	defer endpoint.Close()

	u := url.URL{Scheme: "ws", Host: endpoint.Addr(), Path: "/lsp"}
	dialed, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer dialed.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	server, err := endpoint.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer server.Close()

	payload := []byte(`{"jsonrpc":"2.0","method":"ping"}`)
	if err := dialed.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
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

func TestWebSocketEndpointAcceptCancelled(t *testing.T) {
	endpoint, err := ListenWebSocket(0, "/lsp", nil)
	if err != nil {
		t.Fatalf("ListenWebSocket: %v", err)
	}
	defer endpoint.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := endpoint.Accept(ctx); err == nil {
		t.Fatal("expected Accept to fail when nothing connects before the deadline")
	}
}
