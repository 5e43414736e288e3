package workspace

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"
)

// WorkspaceEdit is lspkit's own decode of a wire WorkspaceEdit.
// go.lsp.dev/protocol.WorkspaceEdit types DocumentChanges as a plain
// []TextDocumentEdit, which cannot represent the create/rename/delete
// file-operation variants spec.md §4.6.3 requires; this type decodes
// the tagged union itself (DESIGN NOTES §9's "dynamic dispatch of
// server capabilities" re-architecture applies equally well here).
// Exactly one of Changes or DocumentChanges is set, per spec.md §4.6.3.
type WorkspaceEdit struct {
	Changes         map[protocol.URI][]protocol.TextEdit
	DocumentChanges []DocumentChangeOp
}

// DocumentChangeOp is one entry of a WorkspaceEdit's documentChanges
// array: either a plain TextDocumentEdit (no "kind" field on the
// wire) or one of the CreateFile/RenameFile/DeleteFile resource
// operations (kind: "create"/"rename"/"delete").
type DocumentChangeOp struct {
	TextDocumentEdit *protocol.TextDocumentEdit
	CreateFile       *protocol.CreateFile
	RenameFile       *protocol.RenameFile
	DeleteFile       *protocol.DeleteFile
}

func (op *DocumentChangeOp) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Kind {
	case "":
		var ed protocol.TextDocumentEdit
		if err := json.Unmarshal(data, &ed); err != nil {
			return fmt.Errorf("workspace: decode textDocumentEdit: %w", err)
		}
		op.TextDocumentEdit = &ed
	case "create":
		var cf protocol.CreateFile
		if err := json.Unmarshal(data, &cf); err != nil {
			return fmt.Errorf("workspace: decode createFile: %w", err)
		}
		op.CreateFile = &cf
	case "rename":
		var rf protocol.RenameFile
		if err := json.Unmarshal(data, &rf); err != nil {
			return fmt.Errorf("workspace: decode renameFile: %w", err)
		}
		op.RenameFile = &rf
	case "delete":
		var df protocol.DeleteFile
		if err := json.Unmarshal(data, &df); err != nil {
			return fmt.Errorf("workspace: decode deleteFile: %w", err)
		}
		op.DeleteFile = &df
	default:
		return fmt.Errorf("workspace: unrecognized documentChanges kind %q", head.Kind)
	}
	return nil
}

// ParseWorkspaceEdit decodes raw into a WorkspaceEdit, validating that
// exactly one of changes/documentChanges is present (spec.md §4.6.3).
func ParseWorkspaceEdit(raw json.RawMessage) (*WorkspaceEdit, error) {
	var wire struct {
		Changes         map[protocol.URI][]protocol.TextEdit `json:"changes,omitempty"`
		DocumentChanges []DocumentChangeOp                   `json:"documentChanges,omitempty"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("workspace: decode workspaceEdit: %w", err)
	}

	hasChanges := len(wire.Changes) > 0
	hasDocChanges := len(wire.DocumentChanges) > 0
	if hasChanges == hasDocChanges {
		return nil, ErrInvalidWorkspaceEdit
	}

	return &WorkspaceEdit{Changes: wire.Changes, DocumentChanges: wire.DocumentChanges}, nil
}
