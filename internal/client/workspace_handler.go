package client

import (
	"context"
	"encoding/json"

	"go.lsp.dev/protocol"
)

// WorkspaceRequestHandler fulfills the server→client requests and
// notifications spec.md §4.4 lists: workspace folders, configuration,
// applyEdit, the refresh family, and publishDiagnostics. Installed via
// Client.SetWorkspaceRequestHandler; if none is set, defaultWorkspaceHandler
// answers with the safe defaults the spec calls for.
//
// ApplyEdit takes the edit as raw JSON rather than a decoded
// protocol.WorkspaceEdit: go.lsp.dev/protocol's WorkspaceEdit models
// documentChanges as a plain []TextDocumentEdit, which loses the
// create/rename/delete file-operation variants spec.md §4.6.3 requires;
// the workspace package (which implements this interface) decodes the
// tagged union itself rather than fabricating a richer protocol type.
type WorkspaceRequestHandler interface {
	WorkspaceFolders(ctx context.Context) ([]protocol.WorkspaceFolder, error)
	Configuration(ctx context.Context, params *protocol.ConfigurationParams) ([]any, error)
	ApplyEdit(ctx context.Context, label string, rawEdit json.RawMessage) (*protocol.ApplyWorkspaceEditResult, error)
	RefreshSemanticTokens(ctx context.Context) error
	RefreshInlineValue(ctx context.Context) error
	RefreshInlayHint(ctx context.Context) error
	RefreshDiagnostics(ctx context.Context) error
	RefreshCodeLens(ctx context.Context) error
	PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams)
}

// defaultWorkspaceHandler implements the fallback behavior spec.md
// §4.4 requires when the embedder installs no handler: empty folders,
// empty configuration, applyEdit rejected, refreshes are no-ops,
// diagnostics dropped.
type defaultWorkspaceHandler struct{}

func (defaultWorkspaceHandler) WorkspaceFolders(context.Context) ([]protocol.WorkspaceFolder, error) {
	return []protocol.WorkspaceFolder{}, nil
}

func (defaultWorkspaceHandler) Configuration(context.Context, *protocol.ConfigurationParams) ([]any, error) {
	return []any{}, nil
}

func (defaultWorkspaceHandler) ApplyEdit(context.Context, string, json.RawMessage) (*protocol.ApplyWorkspaceEditResult, error) {
	return &protocol.ApplyWorkspaceEditResult{Applied: false, FailureReason: "no workspace edit handler installed"}, nil
}

func (defaultWorkspaceHandler) RefreshSemanticTokens(context.Context) error { return nil }
func (defaultWorkspaceHandler) RefreshInlineValue(context.Context) error   { return nil }
func (defaultWorkspaceHandler) RefreshInlayHint(context.Context) error     { return nil }
func (defaultWorkspaceHandler) RefreshDiagnostics(context.Context) error   { return nil }
func (defaultWorkspaceHandler) RefreshCodeLens(context.Context) error      { return nil }

func (defaultWorkspaceHandler) PublishDiagnostics(context.Context, *protocol.PublishDiagnosticsParams) {
}
