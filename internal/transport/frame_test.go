package transport

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"ascii", []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)},
		{"non-ascii", []byte(`{"text":"abc€def"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeFrame(&buf, Frame{Payload: tt.payload}); err != nil {
				t.Fatalf("writeFrame: %v", err)
			}

			fr := newFrameReader(&buf)
			got, err := fr.readFrame()
			if err != nil {
				t.Fatalf("readFrame: %v", err)
			}
			if !bytes.Equal(got.Payload, tt.payload) {
				t.Errorf("payload = %q, want %q", got.Payload, tt.payload)
			}
		})
	}
}

func TestReadFrameTrailingBytesBuffered(t *testing.T) {
	var buf bytes.Buffer
	_ = writeFrame(&buf, Frame{Payload: []byte("one")})
	_ = writeFrame(&buf, Frame{Payload: []byte("two")})

	fr := newFrameReader(&buf)
	first, err := fr.readFrame()
	if err != nil {
		t.Fatalf("first readFrame: %v", err)
	}
	if string(first.Payload) != "one" {
		t.Fatalf("first payload = %q", first.Payload)
	}

	second, err := fr.readFrame()
	if err != nil {
		t.Fatalf("second readFrame: %v", err)
	}
	if string(second.Payload) != "two" {
		t.Fatalf("second payload = %q", second.Payload)
	}
}

func TestNormalizeContentType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", DefaultContentType},
		{"application/vscode-jsonrpc; charset=utf8", "application/vscode-jsonrpc; charset=utf-8"},
		{"application/vscode-jsonrpc; charset=utf-8", "application/vscode-jsonrpc; charset=utf-8"},
		{"application/vscode-jsonrpc", "application/vscode-jsonrpc; charset=utf-8"},
	}
	for _, tt := range tests {
		if got := normalizeContentType(tt.in); got != tt.want {
			t.Errorf("normalizeContentType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadFrameMissingContentLength(t *testing.T) {
	r := bytes.NewBufferString("Content-Type: application/vscode-jsonrpc\r\n\r\n")
	fr := newFrameReader(r)
	if _, err := fr.readFrame(); err == nil {
		t.Fatal("expected error for missing Content-Length")
	}
}

func TestReadFrameEmptyPayload(t *testing.T) {
	r := bytes.NewBufferString("Content-Length: 0\r\n\r\n")
	fr := newFrameReader(r)
	f, err := fr.readFrame()
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if len(f.Payload) != 0 {
		t.Errorf("expected empty payload, got %q", f.Payload)
	}
}

func TestReadFrameEOF(t *testing.T) {
	r := bytes.NewBufferString("")
	fr := newFrameReader(r)
	if _, err := fr.readFrame(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
