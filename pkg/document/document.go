// Package document implements the TextDocument layer (spec.md §4.5):
// edit queueing, commit/save sequencing, and position encoding, plus
// the per-document reference count the workspace registry uses.
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/lspkit/lspkit/internal/capability"
)

// SyncClient is the subset of client.Client a Document needs to
// negotiate sync/save behavior and deliver notifications, kept as an
// interface so documents can be tested without a live connection.
type SyncClient interface {
	CheckFeature(method string, predicates capability.Predicates) bool
	SendNotification(ctx context.Context, method string, params any) error
	SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error)
	PositionEncoding() protocol.PositionEncodingKind
}

// Document is a single open file, tracked the way spec.md §4.5
// describes: text, version, pending edits, and a position-encoding
// cache.
type Document struct {
	mu sync.Mutex

	path       string
	uri        protocol.URI
	languageID string
	encoding   string // file I/O encoding, e.g. "utf-8"

	text        string
	version     int32
	lineOffsets []int
	pending     []edit
	dirty       bool
	saved       bool

	cachedVersion       int32
	cachedLine          int
	haveCache           bool
	cachedStart         int
	cachedReferenceText string

	cachedSemanticTokens any
	cachedOutline        any

	refCount int

	logger *zap.Logger
}

// IncRef increments the document's reference count and returns the new
// value. Used by a workspace's open() to share an already-open
// document (spec.md §4.5.3).
func (d *Document) IncRef() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refCount++
	return d.refCount
}

// DecRef decrements the reference count and returns the new value.
// When it reaches zero the caller (the owning workspace) is
// responsible for emitting didClose and dropping the document from
// its registry.
func (d *Document) DecRef() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refCount > 0 {
		d.refCount--
	}
	return d.refCount
}

func (d *Document) RefCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refCount
}

// Dirty reports whether the document has unsaved changes.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// HasPendingEdits reports whether edits are queued but not committed.
func (d *Document) HasPendingEdits() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) > 0
}

// defaultLanguageByExtension is the fixed extension-to-language
// mapping spec.md §4.5 falls back to when no language id is given.
var defaultLanguageByExtension = map[string]string{
	".go":   "go",
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "typescriptreact",
	".js":   "javascript",
	".jsx":  "javascriptreact",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".java": "java",
	".rb":   "ruby",
	".md":   "markdown",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".sh":   "shellscript",
}

// Open reads path from disk and constructs a Document. languageID, if
// empty, is derived from the file extension; an unrecognized
// extension with no explicit languageID is an error.
func Open(path string, languageID string, encoding string, logger *zap.Logger) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if encoding == "" {
		encoding = "utf-8"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document: open %s: %w", path, err)
	}
	text := string(data)

	if languageID == "" {
		ext := extOf(path)
		lang, ok := defaultLanguageByExtension[ext]
		if !ok {
			return nil, fmt.Errorf("document: no language id given and extension %q is not recognized", ext)
		}
		languageID = lang
	}

	return &Document{
		path:        path,
		uri:         protocol.URI(uri.File(path)),
		languageID:  languageID,
		encoding:    encoding,
		text:        text,
		version:     0,
		lineOffsets: calculateLineOffsets(text),
		logger:      logger,
	}, nil
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}

func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *Document) Version() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

func (d *Document) URI() protocol.URI {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uri
}

func (d *Document) LanguageID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.languageID
}

func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// Rename updates the document's path and URI in place, used when the
// workspace renames the underlying file on disk (spec.md §4.6.2): "the
// in-memory document's URI changes ... subsequent edits emit didChange
// under the new URI."
func (d *Document) Rename(newPath string, newURI protocol.URI) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = newPath
	d.uri = newURI
}

// Encoding reports the file I/O encoding the document was opened with.
func (d *Document) Encoding() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.encoding
}

// Snapshot returns an immutable (text, version) pair under the same
// lock discipline as the position-encoding cache, so a caller hashing
// content for a cache key does not need to serialize against
// concurrent edits itself. Supplemental to spec.md §4.5.
func (d *Document) Snapshot() (text string, version int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text, d.version
}

// Edit queues a replacement of [from,to) with newText (spec.md
// §4.5.1).
func (d *Document) Edit(newText string, from, to int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queueLocked(newText, from, to)
}

// Insert queues an insertion of newText at offset.
func (d *Document) Insert(newText string, offset int) error {
	return d.Edit(newText, offset, offset)
}

// Delete queues the deletion of [from,to).
func (d *Document) Delete(from, to int) error {
	return d.Edit("", from, to)
}

func (d *Document) queueLocked(newText string, from, to int) error {
	if to < from {
		return fmt.Errorf("document: to offset %d is before from offset %d", to, from)
	}
	if from < 0 || from > len(d.text) || to < 0 || to > len(d.text) {
		return fmt.Errorf("document: edit range [%d:%d) out of bounds for document of length %d: %w", from, to, len(d.text), ErrOffsetOutOfRange)
	}
	queued, err := queueEdit(d.pending, edit{from: from, to: to, newText: newText})
	if err != nil {
		return err
	}
	d.pending = queued
	return nil
}

// PushTextEdit queues a server-supplied protocol.TextEdit, resolving
// its range against client's negotiated position encoding.
func (d *Document) PushTextEdit(te protocol.TextEdit, c SyncClient) error {
	from, err := d.PositionToOffset(te.Range.Start, c)
	if err != nil {
		return err
	}
	to, err := d.PositionToOffset(te.Range.End, c)
	if err != nil {
		return err
	}
	return d.Edit(te.NewText, from, to)
}

// DiscardEdits drops every queued edit without applying them.
func (d *Document) DiscardEdits() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
}

// PendingEditCount reports how many edits are currently queued.
func (d *Document) PendingEditCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// CommitEdits applies every queued edit to the text in order,
// increments the version, invalidates cached tokens/outline, and
// notifies every attached client supporting didChange (spec.md
// §4.5.1). Full-sync clients receive a single whole-document change;
// incremental-sync clients receive one event per edit, in reverse
// document order.
func (d *Document) CommitEdits(ctx context.Context, clients []SyncClient) error {
	d.mu.Lock()

	var segments []string
	textOffset := 0
	for _, e := range d.pending {
		if textOffset < e.from {
			segments = append(segments, d.text[textOffset:e.from])
		}
		segments = append(segments, e.newText)
		textOffset = e.to
	}
	if textOffset < len(d.text) {
		segments = append(segments, d.text[textOffset:])
	}

	newText := joinStrings(segments)
	committed := d.pending
	d.text = newText
	d.version++
	d.lineOffsets = calculateLineOffsets(newText)
	d.pending = nil
	d.cachedSemanticTokens = nil
	d.cachedOutline = nil
	d.haveCache = false
	d.dirty = true
	d.saved = false

	uri := d.uri
	version := d.version
	d.mu.Unlock()

	for _, c := range clients {
		if err := d.notifyDidChange(ctx, c, uri, version, committed); err != nil {
			return err
		}
	}
	return nil
}

func joinStrings(parts []string) string {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return string(buf)
}

func (d *Document) notifyDidChange(ctx context.Context, c SyncClient, uri protocol.URI, version int32, committed []edit) error {
	predicates := capability.Predicates{TextDocuments: []capability.DocumentRef{{URI: string(uri), Language: d.LanguageID()}}}

	full := protocol.TextDocumentSyncKindFull
	incremental := protocol.TextDocumentSyncKindIncremental
	identifier := protocol.VersionedTextDocumentIdentifier{
		TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
		Version:                version,
	}

	switch {
	case c.CheckFeature("textDocument/didChange", withSyncKind(predicates, full)):
		params := protocol.DidChangeTextDocumentParams{
			TextDocument: identifier,
			ContentChanges: []protocol.TextDocumentContentChangeEvent{
				{Text: d.Text()},
			},
		}
		return c.SendNotification(ctx, "textDocument/didChange", params)

	case c.CheckFeature("textDocument/didChange", withSyncKind(predicates, incremental)):
		changes := make([]protocol.TextDocumentContentChangeEvent, 0, len(committed))
		for i := len(committed) - 1; i >= 0; i-- {
			changes = append(changes, d.editToChangeEvent(committed[i], c))
		}
		params := protocol.DidChangeTextDocumentParams{TextDocument: identifier, ContentChanges: changes}
		return c.SendNotification(ctx, "textDocument/didChange", params)

	default:
		return nil
	}
}

func withSyncKind(p capability.Predicates, kind protocol.TextDocumentSyncKind) capability.Predicates {
	p.SyncKind = &kind
	return p
}

func (d *Document) editToChangeEvent(e edit, c SyncClient) protocol.TextDocumentContentChangeEvent {
	fromPos, _ := d.offsetToPositionLocked(e.from, c)
	toPos, _ := d.offsetToPositionLocked(e.to, c)
	return protocol.TextDocumentContentChangeEvent{
		Text:  e.newText,
		Range: &protocol.Range{Start: fromPos, End: toPos},
	}
}

// Save runs the full willSave/willSaveWaitUntil/write/didSave sequence
// (spec.md §4.5): notifies willSave, gathers willSaveWaitUntil edits
// and commits them if any arrived, writes to disk, then notifies
// didSave. If the gathered edits overlap, the document is left
// uncommitted and unsaved.
func (d *Document) Save(ctx context.Context, clients []SyncClient) error {
	d.mu.Lock()
	uri := d.uri
	lang := d.languageID
	d.mu.Unlock()

	predicates := capability.Predicates{TextDocuments: []capability.DocumentRef{{URI: string(uri), Language: lang}}}

	willSaveParams := protocol.WillSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Reason:       protocol.TextDocumentSaveReasonManual,
	}
	for _, c := range clients {
		if !c.CheckFeature("textDocument/willSave", predicates) {
			continue
		}
		if err := c.SendNotification(ctx, "textDocument/willSave", willSaveParams); err != nil {
			return fmt.Errorf("document: willSave: %w", err)
		}
	}

	type waitUntilResult struct {
		edits []protocol.TextEdit
		err   error
	}
	var waiters []waitUntilResult
	for _, c := range clients {
		if !c.CheckFeature("textDocument/willSaveWaitUntil", predicates) {
			continue
		}
		raw, err := c.SendRequest(ctx, "textDocument/willSaveWaitUntil", willSaveParams)
		if err != nil {
			waiters = append(waiters, waitUntilResult{err: err})
			continue
		}
		var edits []protocol.TextEdit
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &edits); err != nil {
				waiters = append(waiters, waitUntilResult{err: err})
				continue
			}
		}
		waiters = append(waiters, waitUntilResult{edits: edits})
	}

	queuedAny := false
	for i, w := range waiters {
		if w.err != nil {
			d.logger.Warn("willSaveWaitUntil request failed, skipping its edits", zap.Int("client", i), zap.Error(w.err))
			continue
		}
		for _, te := range w.edits {
			if err := d.PushTextEdit(te, clients[i]); err != nil {
				d.DiscardEdits()
				return fmt.Errorf("document: willSaveWaitUntil produced overlapping edits, not saving: %w", err)
			}
			queuedAny = true
		}
	}
	if queuedAny {
		if err := d.CommitEdits(ctx, clients); err != nil {
			return err
		}
	}

	d.mu.Lock()
	text := d.text
	path := d.path
	d.mu.Unlock()
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("document: write %s: %w", path, err)
	}

	didSaveNoText := protocol.DidSaveTextDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: uri}}
	didSaveWithText := protocol.DidSaveTextDocumentParams{TextDocument: protocol.TextDocumentIdentifier{URI: uri}, Text: text}
	includeText := true
	excludeText := false
	for _, c := range clients {
		switch {
		case c.CheckFeature("textDocument/didSave", withIncludeText(predicates, includeText)):
			if err := c.SendNotification(ctx, "textDocument/didSave", didSaveWithText); err != nil {
				return fmt.Errorf("document: didSave: %w", err)
			}
		case c.CheckFeature("textDocument/didSave", withIncludeText(predicates, excludeText)):
			if err := c.SendNotification(ctx, "textDocument/didSave", didSaveNoText); err != nil {
				return fmt.Errorf("document: didSave: %w", err)
			}
		}
	}

	d.mu.Lock()
	d.dirty = false
	d.saved = true
	d.mu.Unlock()
	return nil
}

func withIncludeText(p capability.Predicates, include bool) capability.Predicates {
	p.IncludeText = &include
	return p
}

// PositionToOffset converts pos into a byte offset into Text(),
// resolving the code-unit encoding from c (spec.md §4.5.2). A
// single-entry (version,line) cache speeds up repeated queries during
// semantic-token parsing.
func (d *Document) PositionToOffset(pos protocol.Position, c SyncClient) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionToOffsetLocked(pos, c)
}

func (d *Document) positionToOffsetLocked(pos protocol.Position, c SyncClient) (int, error) {
	line := int(pos.Line)

	var start int
	var reference string
	if d.haveCache && d.cachedVersion == d.version && d.cachedLine == line {
		start = d.cachedStart
		reference = d.cachedReferenceText
	} else {
		s, e, ok := lineRange(d.lineOffsets, line, len(d.text))
		if !ok {
			return 0, fmt.Errorf("document: line %d out of bounds: %w", line, ErrOffsetOutOfRange)
		}
		reference = d.text[s:e]
		start = s

		d.cachedVersion = d.version
		d.cachedLine = line
		d.cachedStart = start
		d.cachedReferenceText = reference
		d.haveCache = true
	}

	enc := encodingOf(c)
	offsetInLine, err := codeUnitsToOffset(reference, int(pos.Character), enc)
	if err != nil {
		return 0, err
	}
	return start + offsetInLine, nil
}

// OffsetToPosition is the inverse of PositionToOffset.
func (d *Document) OffsetToPosition(offset int, c SyncClient) (protocol.Position, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offsetToPositionLocked(offset, c)
}

func (d *Document) offsetToPositionLocked(offset int, c SyncClient) (protocol.Position, error) {
	if offset < 0 || offset > len(d.text) {
		return protocol.Position{}, fmt.Errorf("document: offset %d out of bounds: %w", offset, ErrOffsetOutOfRange)
	}
	line := lineForOffset(d.lineOffsets, offset)
	start, end, ok := lineRange(d.lineOffsets, line, len(d.text))
	if !ok {
		return protocol.Position{}, ErrOffsetOutOfRange
	}
	reference := d.text[start:end]
	enc := encodingOf(c)
	character := offsetToCodeUnits(reference, offset-start, enc)
	return protocol.Position{Line: uint32(line), Character: uint32(character)}, nil
}

// encodingOf resolves c's negotiated position encoding, defaulting to
// UTF-16 (the LSP default) when c is nil — a document open in only a
// single client may omit it (spec.md §4.5.2).
func encodingOf(c SyncClient) Encoding {
	if c == nil {
		return UTF16
	}
	switch c.PositionEncoding() {
	case protocol.PositionEncodingKindUTF8:
		return UTF8
	case protocol.PositionEncodingKindUTF32:
		return UTF32
	default:
		return UTF16
	}
}
