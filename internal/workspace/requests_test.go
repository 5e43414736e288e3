package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestWorkspaceFoldersReflectsRoots(t *testing.T) {
	w, dir := newTestWorkspace(t)
	folders, err := w.WorkspaceFolders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 1)
	require.Equal(t, "root", folders[0].Name)
	require.Equal(t, uriFor(dir), folders[0].URI)
}

func TestConfigurationDefaultsToNullPerItem(t *testing.T) {
	w, _ := newTestWorkspace(t)
	params := &protocol.ConfigurationParams{Items: []protocol.ConfigurationItem{{Section: "a"}, {Section: "b"}}}
	result, err := w.Configuration(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Nil(t, result[0])
	require.Nil(t, result[1])
}

func TestConfigurationUsesInstalledCallback(t *testing.T) {
	dir := t.TempDir()
	w := New(nil, []Root{{Name: "root", Path: dir}}, WithConfiguration(func(ctx context.Context, params *protocol.ConfigurationParams) ([]any, error) {
		out := make([]any, len(params.Items))
		for i, item := range params.Items {
			out[i] = item.Section
		}
		return out, nil
	}))

	params := &protocol.ConfigurationParams{Items: []protocol.ConfigurationItem{{Section: "lspkit.trace"}}}
	result, err := w.Configuration(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, []any{"lspkit.trace"}, result)
}

func TestApplyEditRejectsMalformedEdit(t *testing.T) {
	w, _ := newTestWorkspace(t)
	result, err := w.ApplyEdit(context.Background(), "bad edit", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.False(t, result.Applied)
	require.NotEmpty(t, result.FailureReason)
}

func TestApplyEditAppliesChangesForm(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	_, err := w.CreateTextDocument(ctx, "a.go", false, false, "utf-8", "go")
	require.NoError(t, err)

	uri := uriFor(filepath.Join(dir, "a.go"))
	raw := json.RawMessage(`{"changes":{"` + string(uri) + `":[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}},"newText":"package a\n"}]}}`)

	result, err := w.ApplyEdit(ctx, "", raw)
	require.NoError(t, err)
	require.True(t, result.Applied)

	data, err := os.ReadFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	require.Equal(t, "package a\n", string(data))
}

func TestPublishDiagnosticsStoresLatest(t *testing.T) {
	w, _ := newTestWorkspace(t)
	uri := protocol.URI("file:///a.go")
	params := &protocol.PublishDiagnosticsParams{URI: uri, Diagnostics: []protocol.Diagnostic{{Message: "boom"}}}

	require.Nil(t, w.Diagnostics(uri))
	w.PublishDiagnostics(context.Background(), params)
	require.Equal(t, params, w.Diagnostics(uri))
}
