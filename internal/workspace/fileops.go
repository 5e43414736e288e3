package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/lspkit/lspkit/internal/capability"
	"github.com/lspkit/lspkit/pkg/document"
)

type fileOp struct {
	URI protocol.URI `json:"uri"`
}

type filesParams struct {
	Files []fileOp `json:"files"`
}

type renameOp struct {
	OldURI protocol.URI `json:"oldUri"`
	NewURI protocol.URI `json:"newUri"`
}

type renameFilesParams struct {
	Files []renameOp `json:"files"`
}

// notifyFileOp sends method with a {files: [{uri}]} payload to every
// client whose file-operation registration matches uri, the shape
// willCreateFiles/didCreateFiles/willDeleteFiles/didDeleteFiles all
// share (spec.md §4.6.2).
func (w *Workspace) notifyFileOp(ctx context.Context, method string, uri protocol.URI) {
	predicates := capability.Predicates{FileOperations: []string{string(uri)}}
	params := filesParams{Files: []fileOp{{URI: uri}}}
	for _, c := range w.Clients() {
		if !c.CheckFeature(method, predicates) {
			continue
		}
		if err := c.SendNotification(ctx, method, params); err != nil {
			w.logger.Warn("failed to send file operation notification", zap.String("method", method), zap.Error(err))
		}
	}
}

// requestWillX sends method (workspace/willCreateFiles or
// workspace/willDeleteFiles) as a request to every supporting client
// and applies any returned WorkspaceEdit. workspace/willRenameFiles,
// whose params carry an old and a new URI, goes through
// requestWillRename instead.
func (w *Workspace) requestWillX(ctx context.Context, method string, uri protocol.URI) error {
	predicates := capability.Predicates{FileOperations: []string{string(uri)}}
	params := filesParams{Files: []fileOp{{URI: uri}}}
	for _, c := range w.Clients() {
		if !c.CheckFeature(method, predicates) {
			continue
		}
		raw, err := c.SendRequest(ctx, method, params)
		if err != nil {
			return fmt.Errorf("workspace: %s: %w", method, err)
		}
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		edit, err := ParseWorkspaceEdit(raw)
		if err != nil {
			// A server with nothing to say returns null, handled
			// above; an edit that does not parse is skipped and the
			// file operation goes ahead without it.
			continue
		}
		if err := w.ApplyWorkspaceEdit(ctx, edit); err != nil {
			return fmt.Errorf("workspace: apply edit from %s: %w", method, err)
		}
	}
	return nil
}

func (w *Workspace) requestWillRename(ctx context.Context, oldURI, newURI protocol.URI) error {
	predicates := capability.Predicates{FileOperations: []string{string(oldURI), string(newURI)}}
	params := renameFilesParams{Files: []renameOp{{OldURI: oldURI, NewURI: newURI}}}
	for _, c := range w.Clients() {
		if !c.CheckFeature("workspace/willRenameFiles", predicates) {
			continue
		}
		raw, err := c.SendRequest(ctx, "workspace/willRenameFiles", params)
		if err != nil {
			return fmt.Errorf("workspace: willRenameFiles: %w", err)
		}
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		edit, err := ParseWorkspaceEdit(raw)
		if err != nil {
			continue
		}
		if err := w.ApplyWorkspaceEdit(ctx, edit); err != nil {
			return fmt.Errorf("workspace: apply edit from willRenameFiles: %w", err)
		}
	}
	return nil
}

func (w *Workspace) notifyRename(ctx context.Context, method string, oldURI, newURI protocol.URI) {
	predicates := capability.Predicates{FileOperations: []string{string(oldURI), string(newURI)}}
	params := renameFilesParams{Files: []renameOp{{OldURI: oldURI, NewURI: newURI}}}
	for _, c := range w.Clients() {
		if !c.CheckFeature(method, predicates) {
			continue
		}
		if err := c.SendNotification(ctx, method, params); err != nil {
			w.logger.Warn("failed to send rename file operation notification", zap.String("method", method), zap.Error(err))
		}
	}
}

// CreateTextDocument creates path on disk (spec.md §4.6.2): an
// existing file with ignoreIfExists and not overwrite returns the
// opened document untouched; an existing file with neither flag set
// fails; overwrite clears the file's content. willCreateFiles runs
// before the write, didCreateFiles after.
func (w *Workspace) CreateTextDocument(ctx context.Context, path string, overwrite, ignoreIfExists bool, encoding, languageID string) (*document.Document, error) {
	resolved, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	uri := uriFor(resolved)

	_, statErr := os.Stat(resolved)
	exists := statErr == nil
	if exists {
		switch {
		case overwrite:
			// fall through to truncate below
		case ignoreIfExists:
			return w.Open(ctx, resolved, languageID, encoding)
		default:
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, resolved)
		}
	}

	if err := w.requestWillX(ctx, "workspace/willCreateFiles", uri); err != nil {
		return nil, err
	}

	if exists && overwrite {
		if doc, ok := w.Document(uri); ok {
			if doc.HasPendingEdits() {
				doc.DiscardEdits()
			}
			if err := doc.Edit("", 0, len(doc.Text())); err == nil {
				_ = doc.CommitEdits(ctx, w.Clients())
			}
			if err := doc.Save(ctx, w.Clients()); err != nil {
				return nil, err
			}
		} else if err := os.Truncate(resolved, 0); err != nil {
			return nil, fmt.Errorf("workspace: truncate %s: %w", resolved, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return nil, fmt.Errorf("workspace: create parent dirs for %s: %w", resolved, err)
		}
		f, err := os.OpenFile(resolved, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("workspace: create %s: %w", resolved, err)
		}
		f.Close()
	}

	w.notifyFileOp(ctx, "workspace/didCreateFiles", uri)
	return w.Open(ctx, resolved, languageID, encoding)
}

// RenameTextDocument renames source to destination (spec.md §4.6.2):
// willRenameFiles, then the optional workspace edit it returns, then
// the OS rename, then didRenameFiles. If source is currently open, its
// in-memory Document is updated in place (new path/URI, reindexed
// under the new key) so subsequent edits sync under the new URI.
func (w *Workspace) RenameTextDocument(ctx context.Context, source, destination string, overwrite, ignoreIfExists bool) error {
	resolvedSrc, err := w.resolve(source)
	if err != nil {
		return err
	}
	resolvedDst, err := w.resolve(destination)
	if err != nil {
		return err
	}
	srcURI := uriFor(resolvedSrc)
	dstURI := uriFor(resolvedDst)

	if _, statErr := os.Stat(resolvedDst); statErr == nil {
		switch {
		case overwrite:
		case ignoreIfExists:
			return nil
		default:
			return fmt.Errorf("%w: %s", ErrAlreadyExists, resolvedDst)
		}
	}

	if err := w.requestWillRename(ctx, srcURI, dstURI); err != nil {
		return err
	}

	// Renaming onto an already-open destination invalidates that
	// document: it is closed until its reference count reaches zero and
	// dropped from the registry (spec.md §9 Open Questions resolution).
	// A caller still holding the *Document is not stopped from using
	// it; its methods keep working on the stale text and return no
	// error. Evicting it through Close, not a bare DecRef drain, so its
	// clients still see didClose.
	if dstDoc, ok := w.Document(dstURI); ok {
		for dstDoc.RefCount() > 0 {
			if err := w.Close(ctx, dstDoc); err != nil {
				return err
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(resolvedDst), 0o755); err != nil {
		return fmt.Errorf("workspace: create parent dirs for %s: %w", resolvedDst, err)
	}
	if err := renameHandlingWindowsQuirk(resolvedSrc, resolvedDst); err != nil {
		return fmt.Errorf("workspace: rename %s to %s: %w", resolvedSrc, resolvedDst, err)
	}

	w.mu.Lock()
	if doc, ok := w.documents[srcURI]; ok {
		delete(w.documents, srcURI)
		doc.Rename(resolvedDst, dstURI)
		w.documents[dstURI] = doc
	}
	w.mu.Unlock()

	w.notifyRename(ctx, "workspace/didRenameFiles", srcURI, dstURI)
	return nil
}

// renameHandlingWindowsQuirk removes an existing destination first on
// platforms (Windows) where os.Rename fails if dst already exists; on
// POSIX systems os.Rename already atomically replaces dst.
func renameHandlingWindowsQuirk(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		if os.IsExist(err) {
			if rmErr := os.Remove(dst); rmErr == nil {
				return os.Rename(src, dst)
			}
		}
		return err
	}
	return nil
}

// DeleteTextDocument deletes path (spec.md §4.6.2): willDeleteFiles,
// close any open document under the deleted path (recursively, for a
// directory), unlink, didDeleteFiles.
func (w *Workspace) DeleteTextDocument(ctx context.Context, path string, ignoreIfNotExists, recursive bool) error {
	resolved, err := w.resolve(path)
	if err != nil {
		return err
	}
	uri := uriFor(resolved)

	info, statErr := os.Stat(resolved)
	if statErr != nil {
		if ignoreIfNotExists {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDoesNotExist, resolved)
	}

	if err := w.requestWillX(ctx, "workspace/willDeleteFiles", uri); err != nil {
		return err
	}

	if info.IsDir() {
		if !recursive {
			return fmt.Errorf("workspace: %s is a directory, delete requires recursive=true", resolved)
		}
		w.closeDocumentsUnder(ctx, resolved)
		if err := os.RemoveAll(resolved); err != nil {
			return fmt.Errorf("workspace: remove %s: %w", resolved, err)
		}
	} else {
		if doc, ok := w.Document(uri); ok {
			for doc.RefCount() > 0 {
				if err := w.Close(ctx, doc); err != nil {
					return err
				}
			}
		}
		if err := os.Remove(resolved); err != nil {
			return fmt.Errorf("workspace: remove %s: %w", resolved, err)
		}
	}

	w.notifyFileOp(ctx, "workspace/didDeleteFiles", uri)
	return nil
}

func (w *Workspace) closeDocumentsUnder(ctx context.Context, dir string) {
	w.mu.Lock()
	var toClose []*document.Document
	for uri, doc := range w.documents {
		if withinPath(dir, pathFromURI(uri)) {
			toClose = append(toClose, doc)
		}
	}
	w.mu.Unlock()

	for _, doc := range toClose {
		for doc.RefCount() > 0 {
			if err := w.Close(ctx, doc); err != nil {
				w.logger.Warn("failed to close document during delete", zap.String("uri", string(doc.URI())), zap.Error(err))
				break
			}
		}
	}
}

func withinPath(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.')
}
