package workspace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWorkspaceEditChangesForm(t *testing.T) {
	raw := json.RawMessage(`{"changes":{"file:///a.go":[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}},"newText":"x"}]}}`)
	edit, err := ParseWorkspaceEdit(raw)
	require.NoError(t, err)
	require.Len(t, edit.Changes, 1)
	require.Nil(t, edit.DocumentChanges)
}

func TestParseWorkspaceEditDocumentChangesTaggedUnion(t *testing.T) {
	raw := json.RawMessage(`{"documentChanges":[
		{"textDocument":{"uri":"file:///a.go","version":1},"edits":[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}},"newText":"x"}]},
		{"kind":"create","uri":"file:///b.go"},
		{"kind":"rename","oldUri":"file:///b.go","newUri":"file:///c.go"},
		{"kind":"delete","uri":"file:///c.go"}
	]}`)
	edit, err := ParseWorkspaceEdit(raw)
	require.NoError(t, err)
	require.Len(t, edit.DocumentChanges, 4)
	require.NotNil(t, edit.DocumentChanges[0].TextDocumentEdit)
	require.NotNil(t, edit.DocumentChanges[1].CreateFile)
	require.NotNil(t, edit.DocumentChanges[2].RenameFile)
	require.NotNil(t, edit.DocumentChanges[3].DeleteFile)
}

func TestParseWorkspaceEditRejectsBothForms(t *testing.T) {
	raw := json.RawMessage(`{"changes":{"file:///a.go":[]},"documentChanges":[{"textDocument":{"uri":"file:///a.go","version":1},"edits":[]}]}`)
	_, err := ParseWorkspaceEdit(raw)
	require.ErrorIs(t, err, ErrInvalidWorkspaceEdit)
}

func TestParseWorkspaceEditRejectsNeitherForm(t *testing.T) {
	raw := json.RawMessage(`{}`)
	_, err := ParseWorkspaceEdit(raw)
	require.ErrorIs(t, err, ErrInvalidWorkspaceEdit)
}

func TestParseWorkspaceEditRejectsUnknownKind(t *testing.T) {
	raw := json.RawMessage(`{"documentChanges":[{"kind":"bogus"}]}`)
	_, err := ParseWorkspaceEdit(raw)
	require.Error(t, err)
}
