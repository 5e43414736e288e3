package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	w := New(nil, []Root{{Name: "root", Path: dir}})
	return w, dir
}

func TestCreateTextDocumentNew(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()

	doc, err := w.CreateTextDocument(ctx, "a.go", false, false, "utf-8", "go")
	require.NoError(t, err)
	require.Equal(t, "", doc.Text())

	data, err := os.ReadFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestCreateTextDocumentAlreadyExistsFails(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	_, err := w.CreateTextDocument(ctx, "a.go", false, false, "utf-8", "go")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateTextDocumentIgnoreIfExistsOpensWithoutTruncating(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	doc, err := w.CreateTextDocument(ctx, "a.go", false, true, "utf-8", "go")
	require.NoError(t, err)
	require.Equal(t, "package a\n", doc.Text())
}

func TestCreateTextDocumentOverwriteTruncates(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	doc, err := w.CreateTextDocument(ctx, "a.go", true, false, "utf-8", "go")
	require.NoError(t, err)
	require.Equal(t, "", doc.Text())
}

func TestRenameTextDocumentMovesOpenDocument(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	doc, err := w.Open(ctx, "a.go", "go", "utf-8")
	require.NoError(t, err)

	require.NoError(t, w.RenameTextDocument(ctx, "a.go", "b.go", false, false))

	require.Equal(t, filepath.Join(dir, "b.go"), doc.Path())
	_, err = os.Stat(filepath.Join(dir, "a.go"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "b.go"))
	require.NoError(t, err)

	moved, ok := w.Document(uriFor(filepath.Join(dir, "b.go")))
	require.True(t, ok)
	require.Same(t, doc, moved)
}

func TestRenameTextDocumentExistingDestinationFails(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("b"), 0o644))

	err := w.RenameTextDocument(ctx, "a.go", "b.go", false, false)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestDeleteTextDocumentClosesOpenDocument(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	_, err := w.Open(ctx, "a.go", "go", "utf-8")
	require.NoError(t, err)

	require.NoError(t, w.DeleteTextDocument(ctx, "a.go", false, false))

	_, ok := w.Document(uriFor(filepath.Join(dir, "a.go")))
	require.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "a.go"))
	require.True(t, os.IsNotExist(err))
}

func TestDeleteTextDocumentMissingIgnoreIfNotExists(t *testing.T) {
	w, _ := newTestWorkspace(t)
	ctx := context.Background()

	err := w.DeleteTextDocument(ctx, "missing.go", true, false)
	require.NoError(t, err)
}

func TestDeleteTextDocumentMissingFails(t *testing.T) {
	w, _ := newTestWorkspace(t)
	ctx := context.Background()

	err := w.DeleteTextDocument(ctx, "missing.go", false, false)
	require.ErrorIs(t, err, ErrDoesNotExist)
}

func TestDeleteTextDocumentDirectoryRequiresRecursive(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	err := w.DeleteTextDocument(ctx, "sub", false, false)
	require.Error(t, err)
}

func TestDeleteTextDocumentDirectoryRecursiveClosesDescendants(t *testing.T) {
	w, dir := newTestWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.go"), []byte("package a\n"), 0o644))

	_, err := w.Open(ctx, filepath.Join("sub", "a.go"), "go", "utf-8")
	require.NoError(t, err)

	require.NoError(t, w.DeleteTextDocument(ctx, "sub", false, true))

	_, ok := w.Document(uriFor(filepath.Join(dir, "sub", "a.go")))
	require.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "sub"))
	require.True(t, os.IsNotExist(err))
}
