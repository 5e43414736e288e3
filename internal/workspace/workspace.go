// Package workspace implements the Workspace layer (spec.md §4.6):
// the document registry, client attachment, file operations, workspace
// edit application, and symbol queries.
package workspace

import (
	"context"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/lspkit/lspkit/internal/capability"
	"github.com/lspkit/lspkit/internal/client"
	"github.com/lspkit/lspkit/pkg/document"
)

// ConfigurationFunc answers a workspace/configuration request; nil
// means the workspace has no configuration callback installed and
// falls back to one null value per requested item (spec.md §3).
type ConfigurationFunc func(ctx context.Context, params *protocol.ConfigurationParams) ([]any, error)

// Workspace owns a set of root folders, the documents opened under
// them, and the clients attached to it. It is the sole owner of its
// roots, registry, and client list (spec.md §5).
type Workspace struct {
	mu sync.Mutex

	roots   []Root
	logger  *zap.Logger
	clients []*client.Client

	documents   map[protocol.URI]*document.Document
	diagnostics map[protocol.URI]*protocol.PublishDiagnosticsParams

	languages       LanguageDatabase
	configuration   ConfigurationFunc
	defaultEncoding string
}

// Option configures a Workspace at construction time.
type Option func(*Workspace)

// WithLanguageDatabase installs the LanguageDatabase used to resolve a
// language id when Open is called without one. Defaults to
// DefaultLanguageDatabase.
func WithLanguageDatabase(db LanguageDatabase) Option {
	return func(w *Workspace) { w.languages = db }
}

// WithConfiguration installs the callback that answers
// workspace/configuration requests. Without one, every requested item
// answers with a null value (spec.md §4.4's sensible default).
func WithConfiguration(fn ConfigurationFunc) Option {
	return func(w *Workspace) { w.configuration = fn }
}

// WithDefaultEncoding sets the file I/O encoding new documents open
// with when the caller does not specify one. Defaults to "utf-8".
func WithDefaultEncoding(encoding string) Option {
	return func(w *Workspace) { w.defaultEncoding = encoding }
}

// New constructs an empty Workspace over roots.
func New(logger *zap.Logger, roots []Root, opts ...Option) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workspace{
		roots:           roots,
		logger:          logger,
		documents:       make(map[protocol.URI]*document.Document),
		diagnostics:     make(map[protocol.URI]*protocol.PublishDiagnosticsParams),
		languages:       DefaultLanguageDatabase(),
		defaultEncoding: "utf-8",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Roots returns the workspace's configured roots.
func (w *Workspace) Roots() []Root {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Root, len(w.roots))
	copy(out, w.roots)
	return out
}

// AttachClient installs the workspace as c's workspace-request handler,
// replays didOpen for every currently open document c supports once c
// reaches StateRunning, and detaches c once it disconnects (spec.md
// §4.6.1).
func (w *Workspace) AttachClient(c *client.Client) {
	c.SetWorkspaceRequestHandler(w)

	w.mu.Lock()
	w.clients = append(w.clients, c)
	w.mu.Unlock()

	go func() {
		select {
		case <-c.Running():
			w.replayDidOpen(c)
		case <-c.Disconnected():
			return
		}
	}()

	go func() {
		<-c.Disconnected()
		w.detachClient(c)
	}()
}

func (w *Workspace) detachClient(c *client.Client) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, existing := range w.clients {
		if existing == c {
			w.clients = append(w.clients[:i], w.clients[i+1:]...)
			return
		}
	}
}

// Clients returns the currently attached clients, wrapped as
// document.SyncClient for use with Document methods.
func (w *Workspace) Clients() []document.SyncClient {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]document.SyncClient, len(w.clients))
	for i, c := range w.clients {
		out[i] = c
	}
	return out
}

func (w *Workspace) replayDidOpen(c *client.Client) {
	ctx := context.Background()
	w.mu.Lock()
	docs := make([]*document.Document, 0, len(w.documents))
	for _, d := range w.documents {
		docs = append(docs, d)
	}
	w.mu.Unlock()

	for _, d := range docs {
		predicates := capability.Predicates{TextDocuments: []capability.DocumentRef{{URI: string(d.URI()), Language: d.LanguageID()}}}
		if !c.CheckFeature("textDocument/didOpen", predicates) {
			continue
		}
		text, version := d.Snapshot()
		params := protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        d.URI(),
				LanguageID: protocol.LanguageIdentifier(d.LanguageID()),
				Version:    version,
				Text:       text,
			},
		}
		if err := c.SendNotification(ctx, "textDocument/didOpen", params); err != nil {
			w.logger.Warn("failed to replay didOpen", zap.String("uri", string(d.URI())), zap.Error(err))
		}
	}
}

// resolve resolves a possibly-relative path to an absolute path under
// the workspace's roots, logging (not failing) when an absolute path
// escapes every root.
func (w *Workspace) resolve(path string) (string, error) {
	w.mu.Lock()
	roots := w.roots
	w.mu.Unlock()

	resolved, escaped, err := resolvePath(roots, path)
	if err != nil {
		return "", err
	}
	if escaped {
		w.logger.Warn("path is outside every workspace root, proceeding anyway", zap.String("path", path))
	}
	return resolved, nil
}

// uriFor builds a file:// URI from an absolute filesystem path, the
// same go.lsp.dev/uri.File construction the removed teacher LSP server
// used for its own workspace root and document URIs.
func uriFor(path string) protocol.URI {
	return protocol.URI(uri.File(path))
}

// Open opens path (resolved against the workspace's roots), attaching
// it to the workspace's registry and emitting didOpen to every
// supporting client. Reopening an already-open URI increments its
// reference count instead of re-reading the file (spec.md §4.5.3).
func (w *Workspace) Open(ctx context.Context, path, languageID, encoding string) (*document.Document, error) {
	resolved, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	uri := uriFor(resolved)

	w.mu.Lock()
	if existing, ok := w.documents[uri]; ok {
		w.mu.Unlock()
		existing.IncRef()
		return existing, nil
	}
	languages := w.languages
	if encoding == "" {
		encoding = w.defaultEncoding
	}
	w.mu.Unlock()

	if languageID == "" && languages != nil {
		if lang, ok := languages.LanguageForPath(resolved); ok {
			languageID = lang
		}
	}

	doc, err := document.Open(resolved, languageID, encoding, w.logger)
	if err != nil {
		return nil, err
	}
	doc.IncRef()

	w.mu.Lock()
	w.documents[uri] = doc
	w.mu.Unlock()

	text, version := doc.Snapshot()
	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        doc.URI(),
			LanguageID: protocol.LanguageIdentifier(doc.LanguageID()),
			Version:    version,
			Text:       text,
		},
	}
	for _, c := range w.Clients() {
		predicates := capability.Predicates{TextDocuments: []capability.DocumentRef{{URI: string(doc.URI()), Language: doc.LanguageID()}}}
		if !c.CheckFeature("textDocument/didOpen", predicates) {
			continue
		}
		if err := c.SendNotification(ctx, "textDocument/didOpen", params); err != nil {
			w.logger.Warn("failed to send didOpen", zap.String("uri", string(doc.URI())), zap.Error(err))
		}
	}
	return doc, nil
}

// Close decrements doc's reference count; at zero it emits didClose to
// every client, warns about uncommitted state, and drops doc from the
// registry (spec.md §4.5.3).
func (w *Workspace) Close(ctx context.Context, doc *document.Document) error {
	if doc.DecRef() > 0 {
		return nil
	}

	if doc.HasPendingEdits() {
		w.logger.Warn("closing document with uncommitted pending edits", zap.String("uri", string(doc.URI())))
	}
	if doc.Dirty() {
		w.logger.Warn("closing document with unsaved content", zap.String("uri", string(doc.URI())))
	}

	params := protocol.DidCloseTextDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI()}}
	for _, c := range w.Clients() {
		predicates := capability.Predicates{TextDocuments: []capability.DocumentRef{{URI: string(doc.URI()), Language: doc.LanguageID()}}}
		if !c.CheckFeature("textDocument/didClose", predicates) {
			continue
		}
		if err := c.SendNotification(ctx, "textDocument/didClose", params); err != nil {
			w.logger.Warn("failed to send didClose", zap.Error(err))
		}
	}

	w.mu.Lock()
	delete(w.documents, doc.URI())
	delete(w.diagnostics, doc.URI())
	w.mu.Unlock()
	return nil
}

// Diagnostics exposes the last publishDiagnostics payload received for
// uri, or nil if none has arrived. Supplemental to spec.md §4.6: the
// distilled spec only describes publishDiagnostics as a write path.
func (w *Workspace) Diagnostics(uri protocol.URI) *protocol.PublishDiagnosticsParams {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.diagnostics[uri]
}

// Document looks up an already-open document by URI.
func (w *Workspace) Document(uri protocol.URI) (*document.Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.documents[uri]
	return d, ok
}

