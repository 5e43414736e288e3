package capability

import (
	"context"
	"testing"
	"time"

	"go.lsp.dev/protocol"
)

func TestCheckFeatureStaticCompletion(t *testing.T) {
	r := New()
	r.SetServerCapabilities(&protocol.ServerCapabilities{
		CompletionProvider: &protocol.CompletionOptions{ResolveProvider: true},
	})

	if !r.CheckFeature("textDocument/completion", Predicates{}) {
		t.Fatal("expected completion to be supported")
	}
	if r.CheckFeature("textDocument/hover", Predicates{}) {
		t.Fatal("hover was not advertised")
	}
}

func TestCheckFeatureDocumentSelector(t *testing.T) {
	r := New()
	if err := r.Register(Registration{
		ID:     "1",
		Method: "textDocument/formatting",
		DocumentSelector: []DocumentFilter{
			{Language: "go"},
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ok := r.CheckFeature("textDocument/formatting", Predicates{
		TextDocuments: []DocumentRef{{URI: "file:///a.go", Language: "go"}},
	})
	if !ok {
		t.Fatal("expected formatting to match go document")
	}

	ok = r.CheckFeature("textDocument/formatting", Predicates{
		TextDocuments: []DocumentRef{{URI: "file:///a.py", Language: "python"}},
	})
	if ok {
		t.Fatal("python document should not match a go-only selector")
	}
}

func TestUnregisterRemovesFeature(t *testing.T) {
	r := New()
	_ = r.Register(Registration{ID: "1", Method: "textDocument/rename"})
	if !r.CheckFeature("textDocument/rename", Predicates{}) {
		t.Fatal("expected rename to be registered")
	}
	if err := r.Unregister("textDocument/rename", "1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if r.CheckFeature("textDocument/rename", Predicates{}) {
		t.Fatal("expected rename to be gone after unregister")
	}
}

func TestRequireFeatureReturnsImmediatelyWhenAlreadySatisfied(t *testing.T) {
	r := New()
	_ = r.Register(Registration{ID: "1", Method: "textDocument/rename"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.RequireFeature(ctx, "textDocument/rename", Predicates{}, 0); err != nil {
		t.Fatalf("RequireFeature: %v", err)
	}
}

func TestRequireFeatureUnblocksOnLateRegistration(t *testing.T) {
	r := New()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- r.RequireFeature(ctx, "textDocument/rename", Predicates{}, 0)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := r.Register(Registration{ID: "1", Method: "textDocument/rename"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RequireFeature: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RequireFeature did not unblock after registration")
	}
}

func TestRequireFeatureTimesOut(t *testing.T) {
	r := New()
	ctx := context.Background()
	err := r.RequireFeature(ctx, "textDocument/rename", Predicates{}, 30*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}
