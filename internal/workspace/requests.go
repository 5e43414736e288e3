package workspace

import (
	"context"
	"encoding/json"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// WorkspaceFolders answers workspace/workspaceFolders with the
// workspace's configured roots.
func (w *Workspace) WorkspaceFolders(ctx context.Context) ([]protocol.WorkspaceFolder, error) {
	roots := w.Roots()
	folders := make([]protocol.WorkspaceFolder, len(roots))
	for i, r := range roots {
		folders[i] = protocol.WorkspaceFolder{URI: uriFor(r.Path), Name: r.Name}
	}
	return folders, nil
}

// Configuration answers workspace/configuration, delegating to the
// installed ConfigurationFunc. Without one installed, every requested
// item answers with a null value, a sensible default for a workspace
// with no settings store (spec.md §4.4).
func (w *Workspace) Configuration(ctx context.Context, params *protocol.ConfigurationParams) ([]any, error) {
	w.mu.Lock()
	fn := w.configuration
	w.mu.Unlock()

	if fn == nil {
		out := make([]any, len(params.Items))
		return out, nil
	}
	return fn(ctx, params)
}

// ApplyEdit answers workspace/applyEdit: decode the tagged-union
// WorkspaceEdit and apply it across open and unopened documents.
func (w *Workspace) ApplyEdit(ctx context.Context, label string, rawEdit json.RawMessage) (*protocol.ApplyWorkspaceEditResult, error) {
	edit, err := ParseWorkspaceEdit(rawEdit)
	if err != nil {
		return &protocol.ApplyWorkspaceEditResult{Applied: false, FailureReason: err.Error()}, nil
	}
	if err := w.ApplyWorkspaceEdit(ctx, edit); err != nil {
		w.logger.Warn("workspace edit application failed", zap.String("label", label), zap.Error(err))
		return &protocol.ApplyWorkspaceEditResult{Applied: false, FailureReason: err.Error()}, nil
	}
	return &protocol.ApplyWorkspaceEditResult{Applied: true}, nil
}

// RefreshSemanticTokens answers workspace/semanticTokens/refresh with
// success and takes no other action; no document's cached tokens are
// cleared by it.
func (w *Workspace) RefreshSemanticTokens(ctx context.Context) error { return nil }

// RefreshInlineValue answers workspace/inlineValue/refresh.
func (w *Workspace) RefreshInlineValue(ctx context.Context) error { return nil }

// RefreshInlayHint answers workspace/inlayHint/refresh.
func (w *Workspace) RefreshInlayHint(ctx context.Context) error { return nil }

// RefreshDiagnostics answers workspace/diagnostic/refresh.
func (w *Workspace) RefreshDiagnostics(ctx context.Context) error { return nil }

// RefreshCodeLens answers workspace/codeLens/refresh.
func (w *Workspace) RefreshCodeLens(ctx context.Context) error { return nil }

// PublishDiagnostics stores the latest diagnostics for params.URI,
// retrievable via Diagnostics.
func (w *Workspace) PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.diagnostics[params.URI] = params
}
