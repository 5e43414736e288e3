package document

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/lspkit/lspkit/internal/capability"
)

type fakeSyncClient struct {
	reg      *capability.Registry
	sent     []string
	encoding protocol.PositionEncodingKind
}

func newFakeSyncClient(methods ...string) *fakeSyncClient {
	reg := capability.New()
	for i, m := range methods {
		_ = reg.Register(capability.Registration{ID: string(rune('a' + i)), Method: m})
	}
	return &fakeSyncClient{reg: reg, encoding: protocol.PositionEncodingKindUTF16}
}

func (f *fakeSyncClient) CheckFeature(method string, predicates capability.Predicates) bool {
	return f.reg.CheckFeature(method, predicates)
}

func (f *fakeSyncClient) SendNotification(ctx context.Context, method string, params any) error {
	f.sent = append(f.sent, method)
	return nil
}

func (f *fakeSyncClient) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.sent = append(f.sent, method)
	return json.RawMessage("null"), nil
}

func (f *fakeSyncClient) PositionEncoding() protocol.PositionEncodingKind { return f.encoding }

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestOpenDerivesLanguageFromExtension(t *testing.T) {
	path := writeTempFile(t, "package main\n")
	doc, err := Open(path, "", "", nil)
	require.NoError(t, err)
	require.Equal(t, "go", doc.LanguageID())
	require.Equal(t, "package main\n", doc.Text())
}

func TestOpenUnrecognizedExtensionRequiresLanguageID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.xyz")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	_, err := Open(path, "", "", nil)
	require.Error(t, err)
}

func TestEditOverlapRejected(t *testing.T) {
	path := writeTempFile(t, "0123456789")
	doc, err := Open(path, "go", "", nil)
	require.NoError(t, err)

	require.NoError(t, doc.Edit("x", 2, 4))
	err = doc.Edit("y", 3, 5)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOverlappingEdit)
}

func TestZeroLengthEditsAtSamePositionDoNotOverlap(t *testing.T) {
	path := writeTempFile(t, "0123456789")
	doc, err := Open(path, "go", "", nil)
	require.NoError(t, err)

	require.NoError(t, doc.Insert("a", 5))
	require.NoError(t, doc.Insert("b", 5))
}

func TestCommitEditsAppliesInOrder(t *testing.T) {
	path := writeTempFile(t, "0123456789")
	doc, err := Open(path, "go", "", nil)
	require.NoError(t, err)

	require.NoError(t, doc.Insert("X", 0))
	require.NoError(t, doc.Insert("Y", 10))

	require.NoError(t, doc.CommitEdits(context.Background(), nil))
	require.Equal(t, "X0123456789Y", doc.Text())
	require.Equal(t, int32(1), doc.Version())
}

func TestCommitEditsNotifiesFullSyncClient(t *testing.T) {
	path := writeTempFile(t, "hello")
	doc, err := Open(path, "go", "", nil)
	require.NoError(t, err)

	c := newFakeSyncClient()
	_ = c.reg.Register(capability.Registration{ID: "1", Method: "textDocument/didChange"})

	require.NoError(t, doc.Insert("!", 5))
	require.NoError(t, doc.CommitEdits(context.Background(), []SyncClient{c}))
	require.Contains(t, c.sent, "textDocument/didChange")
}

func TestSaveWritesFileAndNotifiesDidSave(t *testing.T) {
	path := writeTempFile(t, "hello")
	doc, err := Open(path, "go", "", nil)
	require.NoError(t, err)

	c := newFakeSyncClient()
	_ = c.reg.Register(capability.Registration{ID: "1", Method: "textDocument/didSave"})

	require.NoError(t, doc.Insert(" world", 5))
	require.NoError(t, doc.CommitEdits(context.Background(), nil))
	require.NoError(t, doc.Save(context.Background(), []SyncClient{c}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
	require.Contains(t, c.sent, "textDocument/didSave")
}

func TestPositionOffsetRoundTrip(t *testing.T) {
	path := writeTempFile(t, "line one\nline two\nline three")
	doc, err := Open(path, "go", "", nil)
	require.NoError(t, err)

	c := newFakeSyncClient()
	pos := protocol.Position{Line: 1, Character: 5}
	offset, err := doc.PositionToOffset(pos, c)
	require.NoError(t, err)

	back, err := doc.OffsetToPosition(offset, c)
	require.NoError(t, err)
	require.Equal(t, pos, back)
}

func TestPositionOffsetRoundTripMultiByte(t *testing.T) {
	// "abc€def": € is U+20AC, 3 bytes in UTF-8 but a single UTF-16 code
	// unit, so this line's byte offsets and UTF-16 character offsets
	// diverge after it (spec.md §8 scenario 1).
	path := writeTempFile(t, "abc€def")
	doc, err := Open(path, "go", "", nil)
	require.NoError(t, err)

	c := newFakeSyncClient()
	c.encoding = protocol.PositionEncodingKindUTF8
	pos := protocol.Position{Line: 0, Character: 9}
	offset, err := doc.PositionToOffset(pos, c)
	require.NoError(t, err)
	require.Equal(t, 9, offset)

	back, err := doc.OffsetToPosition(offset, c)
	require.NoError(t, err)
	require.Equal(t, pos, back)

	c.encoding = protocol.PositionEncodingKindUTF16
	pos16 := protocol.Position{Line: 0, Character: 7}
	offset16, err := doc.PositionToOffset(pos16, c)
	require.NoError(t, err)
	require.Equal(t, 9, offset16)

	back16, err := doc.OffsetToPosition(offset16, c)
	require.NoError(t, err)
	require.Equal(t, pos16, back16)
}

func TestRefCounting(t *testing.T) {
	path := writeTempFile(t, "hello")
	doc, err := Open(path, "go", "", nil)
	require.NoError(t, err)

	require.Equal(t, 1, doc.IncRef())
	require.Equal(t, 2, doc.IncRef())
	require.Equal(t, 1, doc.DecRef())
	require.Equal(t, 0, doc.DecRef())
}
