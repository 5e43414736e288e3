package workspace

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// ApplyWorkspaceEdit applies edit across open and unopened documents
// per spec.md §4.6.3: for each TextDocumentEdit, open the target,
// assert its version (if specified) and that it carries no pending
// edits, queue and commit every TextEdit, save, and close; for each
// file-operation action, invoke the corresponding create/rename/delete
// path honoring its flags. `changes`-form edits apply in map iteration
// order, which spec.md says nothing more specific about.
func (w *Workspace) ApplyWorkspaceEdit(ctx context.Context, edit *WorkspaceEdit) error {
	if edit.Changes != nil {
		for uri, edits := range edit.Changes {
			if err := w.applyChangesToDocument(ctx, uri, edits); err != nil {
				return err
			}
		}
		return nil
	}

	for _, op := range edit.DocumentChanges {
		switch {
		case op.TextDocumentEdit != nil:
			if err := w.applyTextDocumentEdit(ctx, op.TextDocumentEdit); err != nil {
				return err
			}
		case op.CreateFile != nil:
			overwrite, ignoreIfExists := false, false
			if op.CreateFile.Options != nil {
				overwrite = op.CreateFile.Options.Overwrite
				ignoreIfExists = op.CreateFile.Options.IgnoreIfExists
			}
			if _, err := w.CreateTextDocument(ctx, pathFromURI(op.CreateFile.URI), overwrite, ignoreIfExists, "", ""); err != nil {
				return err
			}
		case op.RenameFile != nil:
			overwrite, ignoreIfExists := false, false
			if op.RenameFile.Options != nil {
				overwrite = op.RenameFile.Options.Overwrite
				ignoreIfExists = op.RenameFile.Options.IgnoreIfExists
			}
			if err := w.RenameTextDocument(ctx, pathFromURI(op.RenameFile.OldURI), pathFromURI(op.RenameFile.NewURI), overwrite, ignoreIfExists); err != nil {
				return err
			}
		case op.DeleteFile != nil:
			ignoreIfNotExists, recursive := false, false
			if op.DeleteFile.Options != nil {
				ignoreIfNotExists = op.DeleteFile.Options.IgnoreIfNotExists
				recursive = op.DeleteFile.Options.Recursive
			}
			if err := w.DeleteTextDocument(ctx, pathFromURI(op.DeleteFile.URI), ignoreIfNotExists, recursive); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Workspace) applyChangesToDocument(ctx context.Context, uri protocol.URI, edits []protocol.TextEdit) error {
	doc, err := w.Open(ctx, pathFromURI(uri), "", "")
	if err != nil {
		return fmt.Errorf("workspace: apply edit: open %s: %w", uri, err)
	}
	defer w.Close(ctx, doc)

	if doc.HasPendingEdits() {
		return fmt.Errorf("%w: %s", ErrPendingEdits, uri)
	}
	for _, te := range edits {
		if err := doc.PushTextEdit(te, nil); err != nil {
			return err
		}
	}
	if err := doc.CommitEdits(ctx, w.Clients()); err != nil {
		return err
	}
	return doc.Save(ctx, w.Clients())
}

func (w *Workspace) applyTextDocumentEdit(ctx context.Context, ed *protocol.TextDocumentEdit) error {
	uri := ed.TextDocument.URI
	doc, err := w.Open(ctx, pathFromURI(uri), "", "")
	if err != nil {
		return fmt.Errorf("workspace: apply edit: open %s: %w", uri, err)
	}
	defer w.Close(ctx, doc)

	if ed.TextDocument.Version != nil && doc.Version() != *ed.TextDocument.Version {
		return fmt.Errorf("%w: %s wants version %d, have %d", ErrVersionMismatch, uri, *ed.TextDocument.Version, doc.Version())
	}
	if doc.HasPendingEdits() {
		return fmt.Errorf("%w: %s", ErrPendingEdits, uri)
	}

	for _, te := range ed.Edits {
		if err := doc.PushTextEdit(te, nil); err != nil {
			return err
		}
	}
	if err := doc.CommitEdits(ctx, w.Clients()); err != nil {
		return err
	}
	if err := doc.Save(ctx, w.Clients()); err != nil {
		return err
	}
	w.logger.Debug("applied workspace text document edit", zap.String("uri", string(uri)))
	return nil
}

// pathFromURI recovers the filesystem path a file:// URI names, the
// inverse of uriFor.
func pathFromURI(u protocol.URI) string {
	return uri.URI(u).Filename()
}
