package capability

import (
	"strings"

	"go.lsp.dev/protocol"
)

// matcher evaluates whether a registration applies given a set of
// predicates. Each LSP method family gets the variant suited to the
// predicates it actually carries; methods with no interesting options
// fall back to selectorMatcher.
type matcher interface {
	Matches(p Predicates) bool
}

// selectorMatcher matches purely on DocumentSelector against
// Predicates.TextDocuments. It's the fallback every other matcher
// embeds.
type selectorMatcher struct {
	selector []DocumentFilter
}

func (m selectorMatcher) Matches(p Predicates) bool {
	if len(p.TextDocuments) == 0 {
		return true
	}
	if len(m.selector) == 0 {
		// No selector on the registration means "all documents" per the
		// LSP spec's treatment of a nil/absent documentSelector.
		return true
	}
	for _, doc := range p.TextDocuments {
		if !matchesAnyFilter(m.selector, doc) {
			return false
		}
	}
	return true
}

func matchesAnyFilter(filters []DocumentFilter, doc DocumentRef) bool {
	for _, f := range filters {
		if matchesFilter(f, doc) {
			return true
		}
	}
	return false
}

func matchesFilter(f DocumentFilter, doc DocumentRef) bool {
	if f.Language != "" && f.Language != doc.Language {
		return false
	}
	if f.Scheme != "" && !strings.HasPrefix(doc.URI, f.Scheme+":") {
		return false
	}
	if f.Pattern != "" && !globMatch(f.Pattern, doc.URI) {
		return false
	}
	return true
}

// globMatch implements the small subset of glob syntax LSP
// documentSelector patterns use: '*' within a path segment and '**'
// across segments.
func globMatch(pattern, s string) bool {
	if pattern == "**/*" || pattern == "**" {
		return true
	}
	pattern = strings.ReplaceAll(pattern, "**", "*")
	return simpleGlob(pattern, s)
}

func simpleGlob(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

// syncMatcher covers textDocument/didOpen, didChange, didClose,
// willSave, willSaveWaitUntil and didSave, adding the sync kind and
// save-include-text predicates on top of selector matching.
type syncMatcher struct {
	selectorMatcher
	syncKind    protocol.TextDocumentSyncKind
	includeText bool
}

func (m syncMatcher) Matches(p Predicates) bool {
	if !m.selectorMatcher.Matches(p) {
		return false
	}
	if p.SyncKind != nil && *p.SyncKind != m.syncKind {
		return false
	}
	if p.IncludeText != nil && *p.IncludeText && !m.includeText {
		return false
	}
	return true
}

// file_operations matcher covers workspace/willCreateFiles,
// didCreateFiles, willRenameFiles, didRenameFiles, willDeleteFiles,
// didDeleteFiles: the predicate is a set of candidate URIs that must
// all satisfy the registration's own filters.
type fileOperationMatcher struct {
	filters []DocumentFilter
}

func (m fileOperationMatcher) Matches(p Predicates) bool {
	if len(p.FileOperations) == 0 {
		return true
	}
	if len(m.filters) == 0 {
		return true
	}
	for _, uri := range p.FileOperations {
		if !matchesAnyFilter(m.filters, DocumentRef{URI: uri}) {
			return false
		}
	}
	return true
}

// semanticTokensMatcher covers textDocument/semanticTokens/{full,range}
// and the full/delta variant, matching against the registration's
// supported request kinds; the token legend is not consulted.
type semanticTokensMatcher struct {
	selectorMatcher
	full       bool
	fullDelta  bool
	rangeKind  bool
}

func (m semanticTokensMatcher) Matches(p Predicates) bool {
	if !m.selectorMatcher.Matches(p) {
		return false
	}
	for _, kind := range p.SemanticTokens {
		switch kind {
		case "full":
			if !m.full {
				return false
			}
		case "full/delta":
			if !m.fullDelta {
				return false
			}
		case "range":
			if !m.rangeKind {
				return false
			}
		}
	}
	return true
}

// commandMatcher covers workspace/executeCommand, matching the
// registration's advertised command names.
type commandMatcher struct {
	commands []string
}

func (m commandMatcher) Matches(p Predicates) bool {
	if len(p.WorkspaceCommands) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(m.commands))
	for _, c := range m.commands {
		set[c] = struct{}{}
	}
	for _, want := range p.WorkspaceCommands {
		if _, ok := set[want]; !ok {
			return false
		}
	}
	return true
}

// codeActionMatcher covers textDocument/codeAction, matching both the
// selector and the registration's advertised codeActionKinds.
type codeActionMatcher struct {
	selectorMatcher
	kinds       []string
	resolveProv bool
}

func (m codeActionMatcher) Matches(p Predicates) bool {
	if !m.selectorMatcher.Matches(p) {
		return false
	}
	if p.CodeActionResolve != nil && *p.CodeActionResolve && !m.resolveProv {
		return false
	}
	if len(p.CodeActions) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(m.kinds))
	for _, k := range m.kinds {
		set[k] = struct{}{}
	}
	for _, want := range p.CodeActions {
		if _, ok := set[want]; !ok {
			return false
		}
	}
	return true
}

// resolveMatcher covers the *_resolve boolean predicates for the
// completionItem/resolve, codeLens/resolve, documentLink/resolve,
// inlayHint/resolve and workspaceSymbol/resolve methods — each of which
// is a plain provider-supports-resolve flag on the matching method's
// registration, with no document selector of its own.
type resolveMatcher struct {
	kind     resolveKind
	resolves bool
}

type resolveKind int

const (
	resolveCompletion resolveKind = iota
	resolveCodeLens
	resolveDocumentLink
	resolveInlayHint
	resolveWorkspaceSymbol
)

func (m resolveMatcher) Matches(p Predicates) bool {
	var want *bool
	switch m.kind {
	case resolveCompletion:
		want = p.CompletionResolve
	case resolveCodeLens:
		want = p.CodeLensResolve
	case resolveDocumentLink:
		want = p.DocumentLinkResolve
	case resolveInlayHint:
		want = p.InlayHintResolve
	case resolveWorkspaceSymbol:
		want = p.WorkspaceSymbolResolve
	}
	if want == nil || !*want {
		return true
	}
	return m.resolves
}

// completionMatcher covers textDocument/completion, layering the
// completionItem.labelDetailsSupport predicate on top of selector
// matching and resolve support.
type completionMatcher struct {
	selectorMatcher
	resolveProv  bool
	labelDetails bool
}

func (m completionMatcher) Matches(p Predicates) bool {
	if !m.selectorMatcher.Matches(p) {
		return false
	}
	if p.CompletionResolve != nil && *p.CompletionResolve && !m.resolveProv {
		return false
	}
	if p.CompletionItemLabelDetails != nil && *p.CompletionItemLabelDetails && !m.labelDetails {
		return false
	}
	return true
}

// workspaceDiagnosticMatcher covers workspace/diagnostic.
type workspaceDiagnosticMatcher struct {
	supported bool
}

func (m workspaceDiagnosticMatcher) Matches(p Predicates) bool {
	if p.WorkspaceDiagnostic != nil && *p.WorkspaceDiagnostic {
		return m.supported
	}
	return true
}
