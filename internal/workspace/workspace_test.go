package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenSharesDocumentAcrossCallersByRefCount(t *testing.T) {
	w, dir := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))
	ctx := context.Background()

	first, err := w.Open(ctx, "a.go", "go", "utf-8")
	require.NoError(t, err)
	second, err := w.Open(ctx, "a.go", "go", "utf-8")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 2, first.RefCount())

	require.NoError(t, w.Close(ctx, first))
	_, ok := w.Document(first.URI())
	require.True(t, ok, "document should remain registered while a reference is still held")

	require.NoError(t, w.Close(ctx, second))
	_, ok = w.Document(first.URI())
	require.False(t, ok, "document should be dropped once the last reference is released")
}

func TestOpenResolvesLanguageFromExtension(t *testing.T) {
	w, dir := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o644))

	doc, err := w.Open(context.Background(), "a.py", "", "")
	require.NoError(t, err)
	require.Equal(t, "python", doc.LanguageID())
	require.Equal(t, "utf-8", doc.Encoding())
}

func TestResolveRejectsAmbiguousRelativePath(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "a.go"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "a.go"), []byte("a"), 0o644))

	w := New(nil, []Root{{Name: "a", Path: dirA}, {Name: "b", Path: dirB}})
	_, err := w.Open(context.Background(), "a.go", "go", "utf-8")
	require.ErrorIs(t, err, ErrAmbiguousRoot)
}

func TestDiagnosticsDefaultsToNil(t *testing.T) {
	w, _ := newTestWorkspace(t)
	require.Nil(t, w.Diagnostics(uriFor("/nonexistent")))
}
