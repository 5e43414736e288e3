package client

import (
	"context"
	"os"

	"go.lsp.dev/protocol"

	"github.com/lspkit/lspkit/internal/config"
)

// WorkspaceFolderSource supplies the workspace folders DefaultInitializeParams
// advertises in InitializeParams.WorkspaceFolders. *workspace.Workspace
// satisfies this implicitly; the interface exists so this package (which
// workspace already imports) never has to import workspace back.
type WorkspaceFolderSource interface {
	WorkspaceFolders(ctx context.Context) ([]protocol.WorkspaceFolder, error)
}

// DefaultInitializeParams builds the InitializeParams spec.md §6 says a
// caller may start from rather than hand-assembling every field: the
// running process id, this library's identity as ClientInfo, the
// workspace's folders (with RootURI falling back to the first one for
// servers that still key off the deprecated singular root), and a
// baseline ClientCapabilities tree advertising the capability surface
// the rest of the module (document sync, workspace edits, file
// operations, symbols, semantic tokens) actually knows how to drive.
// cfg may be nil, in which case library name "lspkit" and version
// "0.1.0" are used; the same fallback applies to an empty LibraryName
// or LibraryVersion in a non-nil cfg.
func DefaultInitializeParams(ctx context.Context, ws WorkspaceFolderSource, cfg *config.Defaults) (*protocol.InitializeParams, error) {
	name, version := "lspkit", "0.1.0"
	if cfg != nil {
		if cfg.LibraryName != "" {
			name = cfg.LibraryName
		}
		if cfg.LibraryVersion != "" {
			version = cfg.LibraryVersion
		}
	}

	folders, err := ws.WorkspaceFolders(ctx)
	if err != nil {
		return nil, err
	}

	pid := int32(os.Getpid())
	params := &protocol.InitializeParams{
		ProcessID:        pid,
		ClientInfo:       &protocol.ClientInfo{Name: name, Version: version},
		WorkspaceFolders: folders,
		Capabilities:     defaultClientCapabilities(),
	}
	if len(folders) > 0 {
		params.RootURI = folders[0].URI
	}
	return params, nil
}

// defaultClientCapabilities reports the capability surface the rest of
// the module (document, workspace, capability packages) is actually
// able to exercise: every SymbolKind/SymbolTag (so a server never
// withholds a document/workspace symbol for want of an advertised
// kind), workspace-edit support for documentChanges plus the
// create/rename/delete resource operations fileops.go drives, with
// abort-on-failure semantics (the module does not attempt partial-edit
// rollback), every file-operation hook, workspace-symbol resolve,
// document-link tooltip support, hierarchical document symbols, and
// full+delta semantic tokens against a fixed legend, plus a
// position-encoding negotiation order preferring UTF-32 (the encoding
// pkg/document's offset math is exact in) over UTF-8 over UTF-16
// (spec.md §6).
func defaultClientCapabilities() protocol.ClientCapabilities {
	allSymbolKinds := []protocol.SymbolKind{
		protocol.SymbolKindFile, protocol.SymbolKindModule, protocol.SymbolKindNamespace,
		protocol.SymbolKindPackage, protocol.SymbolKindClass, protocol.SymbolKindMethod,
		protocol.SymbolKindProperty, protocol.SymbolKindField, protocol.SymbolKindConstructor,
		protocol.SymbolKindEnum, protocol.SymbolKindInterface, protocol.SymbolKindFunction,
		protocol.SymbolKindVariable, protocol.SymbolKindConstant, protocol.SymbolKindString,
		protocol.SymbolKindNumber, protocol.SymbolKindBoolean, protocol.SymbolKindArray,
		protocol.SymbolKindObject, protocol.SymbolKindKey, protocol.SymbolKindNull,
		protocol.SymbolKindEnumMember, protocol.SymbolKindStruct, protocol.SymbolKindEvent,
		protocol.SymbolKindOperator, protocol.SymbolKindTypeParameter,
	}
	allSymbolTags := []protocol.SymbolTag{protocol.SymbolTagDeprecated}

	return protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{
			ApplyEdit: true,
			WorkspaceEdit: &protocol.WorkspaceClientCapabilitiesWorkspaceEdit{
				DocumentChanges: true,
				ResourceOperations: []protocol.ResourceOperationKind{
					protocol.CreateResourceOperation,
					protocol.RenameResourceOperation,
					protocol.DeleteResourceOperation,
				},
				FailureHandling: protocol.FailureHandlingKind("abort"),
			},
			WorkspaceFolders: true,
			Configuration:    true,
			Symbol: &protocol.WorkspaceSymbolClientCapabilities{
				SymbolKind: &protocol.SymbolKindCapabilities{ValueSet: allSymbolKinds},
				TagSupport: &protocol.SymbolTagSupportCapabilities{ValueSet: allSymbolTags},
				ResolveSupport: &protocol.ResolveSupportCapabilities{
					Properties: []string{"location.range"},
				},
			},
			FileOperations: &protocol.WorkspaceClientCapabilitiesFileOperations{
				DidCreate:  true,
				WillCreate: true,
				DidRename:  true,
				WillRename: true,
				DidDelete:  true,
				WillDelete: true,
			},
			Diagnostics: &protocol.DiagnosticWorkspaceClientCapabilities{RefreshSupport: true},
		},
		TextDocument: &protocol.TextDocumentClientCapabilities{
			DocumentSymbol: &protocol.DocumentSymbolClientCapabilities{
				SymbolKind:                        &protocol.SymbolKindCapabilities{ValueSet: allSymbolKinds},
				TagSupport:                        &protocol.SymbolTagSupportCapabilities{ValueSet: allSymbolTags},
				HierarchicalDocumentSymbolSupport: true,
			},
			DocumentLink: &protocol.DocumentLinkClientCapabilities{TooltipSupport: true},
			SemanticTokens: &protocol.SemanticTokensClientCapabilities{
				Requests: protocol.SemanticTokensRequestsClientCapabilities{
					Full: protocol.SemanticTokensFullDelta{Delta: true},
				},
				TokenTypes: []string{
					"namespace", "type", "class", "enum", "interface", "struct",
					"typeParameter", "parameter", "variable", "property", "enumMember",
					"event", "function", "method", "macro", "keyword", "modifier",
					"comment", "string", "number", "regexp", "operator", "decorator",
				},
				TokenModifiers: []string{
					"declaration", "definition", "readonly", "static", "deprecated",
					"abstract", "async", "modification", "documentation", "defaultLibrary",
				},
				Formats: []protocol.TokenFormat{"relative"},
			},
		},
		General: &protocol.GeneralClientCapabilities{
			PositionEncodings: []protocol.PositionEncodingKind{
				protocol.PositionEncodingKindUTF32,
				protocol.PositionEncodingKindUTF8,
				protocol.PositionEncodingKindUTF16,
			},
		},
	}
}
