package capability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.lsp.dev/protocol"
)

type entry struct {
	reg     Registration
	matcher matcher
}

// Registry reconciles the server's static capabilities (sent once in
// the initialize response) with dynamic client/registerCapability and
// client/unregisterCapability traffic, and answers check_feature /
// require_feature queries against the merged table (spec.md §4.3).
type Registry struct {
	mu      sync.Mutex
	static  map[string][]entry
	dynamic map[string]map[string]entry // method -> id -> entry

	generation chan struct{}
}

// New returns an empty registry; call SetServerCapabilities once the
// initialize response arrives.
func New() *Registry {
	return &Registry{
		static:     make(map[string][]entry),
		dynamic:    make(map[string]map[string]entry),
		generation: make(chan struct{}),
	}
}

// SetServerCapabilities flattens a ServerCapabilities document into
// static, un-removable registrations — one entry per method the server
// advertised support for, in the shape a client/registerCapability
// request would have used had the server chosen to register
// dynamically instead.
func (r *Registry) SetServerCapabilities(caps *protocol.ServerCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.static = make(map[string][]entry)
	if caps == nil {
		r.notifyLocked()
		return
	}

	add := func(method string, m matcher) {
		r.static[method] = append(r.static[method], entry{reg: Registration{Method: method}, matcher: m})
	}

	switch sync := caps.TextDocumentSync.(type) {
	case protocol.TextDocumentSyncOptions:
		kind := sync.Change
		includeText := false
		if so, ok := sync.Save.(*protocol.SaveOptions); ok && so != nil {
			includeText = so.IncludeText
		}
		sm := syncMatcher{syncKind: kind, includeText: includeText}
		if sync.OpenClose {
			add("textDocument/didOpen", sm)
			add("textDocument/didClose", sm)
		}
		add("textDocument/didChange", sm)
		add("textDocument/didSave", sm)
		if sync.WillSave {
			add("textDocument/willSave", sm)
		}
		if sync.WillSaveWaitUntil {
			add("textDocument/willSaveWaitUntil", sm)
		}
	case protocol.TextDocumentSyncKind:
		sm := syncMatcher{syncKind: sync}
		add("textDocument/didOpen", sm)
		add("textDocument/didChange", sm)
		add("textDocument/didClose", sm)
		add("textDocument/didSave", sm)
	}

	if caps.CompletionProvider != nil {
		add("textDocument/completion", completionMatcher{
			resolveProv:  caps.CompletionProvider.ResolveProvider,
			labelDetails: caps.CompletionProvider.CompletionItem != nil && caps.CompletionProvider.CompletionItem.LabelDetailsSupport,
		})
	}
	if caps.HoverProvider {
		add("textDocument/hover", selectorMatcher{})
	}
	if caps.SignatureHelpProvider != nil {
		add("textDocument/signatureHelp", selectorMatcher{})
	}
	if caps.DeclarationProvider != nil {
		add("textDocument/declaration", selectorMatcher{})
	}
	if caps.DefinitionProvider != nil {
		add("textDocument/definition", selectorMatcher{})
	}
	if caps.TypeDefinitionProvider != nil {
		add("textDocument/typeDefinition", selectorMatcher{})
	}
	if caps.ImplementationProvider != nil {
		add("textDocument/implementation", selectorMatcher{})
	}
	if caps.ReferencesProvider {
		add("textDocument/references", selectorMatcher{})
	}
	if caps.DocumentHighlightProvider {
		add("textDocument/documentHighlight", selectorMatcher{})
	}
	if caps.DocumentSymbolProvider {
		add("textDocument/documentSymbol", selectorMatcher{})
	}
	if caps.WorkspaceSymbolProvider {
		add("workspace/symbol", selectorMatcher{})
		add("workspaceSymbol/resolve", resolveMatcher{kind: resolveWorkspaceSymbol, resolves: false})
	}
	if caps.DocumentFormattingProvider != nil {
		add("textDocument/formatting", selectorMatcher{})
	}
	if caps.DocumentRangeFormattingProvider != nil {
		add("textDocument/rangeFormatting", selectorMatcher{})
	}
	if caps.FoldingRangeProvider != nil {
		add("textDocument/foldingRange", selectorMatcher{})
	}
	if caps.RenameProvider != nil {
		add("textDocument/rename", selectorMatcher{})
	}
	if caps.CodeActionProvider != nil {
		var kinds []string
		resolves := false
		if cao, ok := caps.CodeActionProvider.(protocol.CodeActionOptions); ok {
			for _, k := range cao.CodeActionKinds {
				kinds = append(kinds, string(k))
			}
			resolves = cao.ResolveProvider
		}
		add("textDocument/codeAction", codeActionMatcher{kinds: kinds, resolveProv: resolves})
	}
	if caps.CodeLensProvider != nil {
		add("textDocument/codeLens", resolveMatcher{kind: resolveCodeLens, resolves: caps.CodeLensProvider.ResolveProvider})
	}
	if caps.DocumentLinkProvider != nil {
		add("textDocument/documentLink", resolveMatcher{kind: resolveDocumentLink, resolves: caps.DocumentLinkProvider.ResolveProvider})
	}
	if caps.ExecuteCommandProvider != nil {
		add("workspace/executeCommand", commandMatcher{commands: caps.ExecuteCommandProvider.Commands})
	}
	if caps.SemanticTokensProvider != nil {
		if stp, ok := caps.SemanticTokensProvider.(protocol.SemanticTokensOptions); ok {
			full, fullDelta := decodeSemanticTokensFull(stp.Full)
			rangeKind := stp.Range != nil && toBool(stp.Range)
			add("textDocument/semanticTokens/full", semanticTokensMatcher{full: full, fullDelta: fullDelta, rangeKind: rangeKind})
		}
	}
	if caps.InlayHintProvider != nil {
		resolves := false
		if iho, ok := caps.InlayHintProvider.(protocol.InlayHintOptions); ok {
			resolves = iho.ResolveProvider
		}
		add("textDocument/inlayHint", selectorMatcher{})
		add("inlayHint/resolve", resolveMatcher{kind: resolveInlayHint, resolves: resolves})
	}
	if caps.DiagnosticProvider != nil {
		workspaceDiagnostics := false
		if dp, ok := caps.DiagnosticProvider.(protocol.DiagnosticOptions); ok {
			workspaceDiagnostics = dp.WorkspaceDiagnostics
		}
		add("textDocument/diagnostic", selectorMatcher{})
		add("workspace/diagnostic", workspaceDiagnosticMatcher{supported: workspaceDiagnostics})
	}
	if caps.Workspace != nil && caps.Workspace.FileOperations != nil {
		ops := caps.Workspace.FileOperations
		bind := func(method string, filter *protocol.FileOperationRegistrationOptions) {
			if filter == nil {
				return
			}
			add(method, fileOperationMatcher{filters: convertFileOperationFilters(filter.Filters)})
		}
		bind("workspace/willCreateFiles", ops.WillCreate)
		bind("workspace/didCreateFiles", ops.DidCreate)
		bind("workspace/willRenameFiles", ops.WillRename)
		bind("workspace/didRenameFiles", ops.DidRename)
		bind("workspace/willDeleteFiles", ops.WillDelete)
		bind("workspace/didDeleteFiles", ops.DidDelete)
	}

	r.notifyLocked()
}

func toBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func decodeSemanticTokensFull(v any) (full, delta bool) {
	switch t := v.(type) {
	case bool:
		return t, false
	case protocol.SemanticTokensFullDelta:
		return true, t.Delta
	default:
		return false, false
	}
}

func convertFileOperationFilters(filters []protocol.FileOperationFilter) []DocumentFilter {
	out := make([]DocumentFilter, 0, len(filters))
	for _, f := range filters {
		scheme := ""
		if f.Scheme != nil {
			scheme = *f.Scheme
		}
		out = append(out, DocumentFilter{Scheme: scheme, Pattern: f.Pattern.Glob})
	}
	return out
}

// Register adds a dynamic registration (client/registerCapability).
func (r *Registry) Register(reg Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("capability: dynamic registration requires an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dynamic[reg.Method] == nil {
		r.dynamic[reg.Method] = make(map[string]entry)
	}
	r.dynamic[reg.Method][reg.ID] = entry{reg: reg, matcher: matcherFor(reg)}
	r.notifyLocked()
	return nil
}

// Unregister removes a dynamic registration by id (client/unregisterCapability).
func (r *Registry) Unregister(method, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.dynamic[method]
	if !ok {
		return fmt.Errorf("capability: no registrations for method %q", method)
	}
	if _, ok := byID[id]; !ok {
		return fmt.Errorf("capability: no registration %q for method %q", id, method)
	}
	delete(byID, id)
	r.notifyLocked()
	return nil
}

// matcherFor builds the matcher for a dynamic registration from its
// method and document selector alone: file-operation methods and
// workspace/didChangeWatchedFiles get a fileOperationMatcher over the
// selector, every other method a selectorMatcher. Registration options
// are not read, so option-based predicates (sync kind, include text,
// semantic token kinds, resolve support, ...) do not narrow a dynamic
// registration.
func matcherFor(reg Registration) matcher {
	sm := selectorMatcher{selector: reg.DocumentSelector}
	switch reg.Method {
	case "workspace/didChangeWatchedFiles",
		"workspace/willCreateFiles", "workspace/didCreateFiles",
		"workspace/willRenameFiles", "workspace/didRenameFiles",
		"workspace/willDeleteFiles", "workspace/didDeleteFiles":
		return fileOperationMatcher{filters: reg.DocumentSelector}
	default:
		return sm
	}
}

// CheckFeature reports whether method is supported (statically or
// dynamically) subject to predicates.
func (r *Registry) CheckFeature(method string, predicates Predicates) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkFeatureLocked(method, predicates)
}

func (r *Registry) checkFeatureLocked(method string, predicates Predicates) bool {
	for _, e := range r.static[method] {
		if e.matcher.Matches(predicates) {
			return true
		}
	}
	for _, e := range r.dynamic[method] {
		if e.matcher.Matches(predicates) {
			return true
		}
	}
	return false
}

// RequireFeature blocks until method (subject to predicates) becomes
// available, ctx is cancelled, or timeout elapses (0 means no timeout
// beyond ctx). Every registry mutation re-evaluates all waiters.
func (r *Registry) RequireFeature(ctx context.Context, method string, predicates Predicates, timeout time.Duration) error {
	r.mu.Lock()
	if r.checkFeatureLocked(method, predicates) {
		r.mu.Unlock()
		return nil
	}
	gen := r.generation
	r.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		select {
		case <-gen:
			r.mu.Lock()
			if r.checkFeatureLocked(method, predicates) {
				r.mu.Unlock()
				return nil
			}
			gen = r.generation
			r.mu.Unlock()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notifyLocked wakes every RequireFeature waiter so it can re-check.
// Must be called with r.mu held.
func (r *Registry) notifyLocked() {
	close(r.generation)
	r.generation = make(chan struct{})
}
