package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/lspkit/lspkit/internal/capability"
	"github.com/lspkit/lspkit/internal/client"
	"github.com/lspkit/lspkit/pkg/document"
)

// Symbol is one workspace/symbol result, optionally resolved (spec.md
// §4.6.4). When Document is non-nil, it is reference-counted open on
// the workspace; the caller must call Close to release it.
type Symbol struct {
	Info     protocol.SymbolInformation
	Document *document.Document
}

// Close releases the Document a resolved Symbol holds open, a no-op
// for an unresolved Symbol.
func (s Symbol) Close(ctx context.Context, w *Workspace) error {
	if s.Document == nil {
		return nil
	}
	return w.Close(ctx, s.Document)
}

// QuerySymbols sends workspace/symbol to c and, if resolve is true,
// concurrently resolves each result via workspaceSymbol/resolve and
// opens its containing document as a scoped reference (spec.md
// §4.6.4).
func (w *Workspace) QuerySymbols(ctx context.Context, c *client.Client, query string, resolve bool) ([]Symbol, error) {
	raw, err := c.SendRequest(ctx, "workspace/symbol", protocol.WorkspaceSymbolParams{Query: query})
	if err != nil {
		return nil, fmt.Errorf("workspace: workspace/symbol: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var infos []protocol.SymbolInformation
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, fmt.Errorf("workspace: decode workspace/symbol result: %w", err)
	}

	symbols := make([]Symbol, len(infos))
	for i, info := range infos {
		symbols[i] = Symbol{Info: info}
	}
	if !resolve {
		return symbols, nil
	}

	supportsResolve := c.CheckFeature("workspaceSymbol/resolve", capability.Predicates{})

	var wg sync.WaitGroup
	for i := range symbols {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.resolveSymbol(ctx, c, supportsResolve, &symbols[i])
		}(i)
	}
	wg.Wait()
	return symbols, nil
}

func (w *Workspace) resolveSymbol(ctx context.Context, c *client.Client, supportsResolve bool, sym *Symbol) {
	info := sym.Info
	if supportsResolve {
		raw, err := c.SendRequest(ctx, "workspaceSymbol/resolve", info)
		if err != nil {
			w.logger.Warn("workspaceSymbol/resolve failed, using unresolved symbol", zap.Error(err))
		} else if len(raw) > 0 && string(raw) != "null" {
			var resolved protocol.SymbolInformation
			if err := json.Unmarshal(raw, &resolved); err == nil {
				info = resolved
				sym.Info = resolved
			}
		}
	}

	doc, err := w.Open(ctx, pathFromURI(info.Location.URI), "", "")
	if err != nil {
		w.logger.Warn("failed to open resolved symbol's document", zap.Error(err))
		return
	}
	sym.Document = doc
}
