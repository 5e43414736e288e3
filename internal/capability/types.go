// Package capability implements the capability registry: it reconciles
// static ServerCapabilities and dynamic client/registerCapability events
// into a queryable feature table (spec.md §4.3).
package capability

import "go.lsp.dev/protocol"

// DocumentFilter predicates over documents by language id, URI scheme
// and glob pattern (spec.md GLOSSARY).
type DocumentFilter struct {
	Language string
	Scheme   string
	Pattern  string
}

// DocumentRef is the minimal document identity capability predicates
// are evaluated against.
type DocumentRef struct {
	URI      string
	Language string
}

// Registration is a single feature registration, static (from
// ServerCapabilities, no ID) or dynamic (from client/registerCapability,
// always carries an ID so it can later be removed).
type Registration struct {
	ID               string // empty for static registrations
	Method           string
	DocumentSelector []DocumentFilter
	Options          any
}

// Predicates are the named filters check_feature/require_feature accept
// (spec.md §4.3's predicate table). A zero-value field means "don't
// filter on this dimension".
type Predicates struct {
	TextDocuments              []DocumentRef
	SyncKind                   *protocol.TextDocumentSyncKind
	IncludeText                *bool
	FileOperations             []string
	SemanticTokens             []string // subset of {"full","full/delta","range"}
	CodeActions                []string
	WorkspaceCommands          []string
	CompletionResolve          *bool
	CodeActionResolve          *bool
	CodeLensResolve            *bool
	DocumentLinkResolve        *bool
	InlayHintResolve           *bool
	WorkspaceSymbolResolve     *bool
	CompletionItemLabelDetails *bool
	WorkspaceDiagnostic        *bool
}
