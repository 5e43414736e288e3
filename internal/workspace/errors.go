package workspace

import "errors"

// ErrAmbiguousRoot is returned when a relative path matches more than
// one workspace root (spec.md §4.6.1).
var ErrAmbiguousRoot = errors.New("workspace: path matches more than one root")

// ErrOutsideRoots names an absolute path that does not live under any
// configured root. Path resolution does not return it: such a path is
// accepted with a logged warning (spec.md §4.6.1), and workspace edit
// application accepts it too.
var ErrOutsideRoots = errors.New("workspace: path is outside every workspace root")

// ErrNotOpen names a document that is not open in the workspace's
// registry. No workspace operation returns it.
var ErrNotOpen = errors.New("workspace: document is not open")

// ErrPendingEdits is returned when a workspace edit targets a document
// that already has uncommitted pending edits (spec.md §4.6.3).
var ErrPendingEdits = errors.New("workspace: document has uncommitted pending edits")

// ErrVersionMismatch is returned when a TextDocumentEdit specifies a
// version that does not match the document's current version.
var ErrVersionMismatch = errors.New("workspace: document version mismatch")

// ErrInvalidWorkspaceEdit is returned when a WorkspaceEdit carries both
// or neither of its `changes` / `documentChanges` forms.
var ErrInvalidWorkspaceEdit = errors.New("workspace: exactly one of changes or documentChanges must be set")

// ErrAlreadyExists / ErrDoesNotExist back the create/rename/delete
// overwrite and ignoreIfExists/ignoreIfNotExists flags.
var ErrAlreadyExists = errors.New("workspace: file already exists")
var ErrDoesNotExist = errors.New("workspace: file does not exist")
