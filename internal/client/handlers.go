package client

import (
	"context"
	"encoding/json"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/lspkit/lspkit/internal/capability"
	"github.com/lspkit/lspkit/internal/rpc"
)

// handleServerRequest answers server→client requests: the workspace
// family (spec.md §4.4), the refresh family, and dynamic (un)registration,
// which feeds the capability registry.
func (c *Client) handleServerRequest(ctx context.Context, method string, params json.RawMessage) (any, *rpc.Error) {
	switch method {
	case "workspace/workspaceFolders":
		folders, err := c.wsHandler.WorkspaceFolders(ctx)
		if err != nil {
			return nil, rpc.ErrRequestFailed(err.Error())
		}
		return folders, nil

	case "workspace/configuration":
		var p protocol.ConfigurationParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, rpc.ErrInvalidParams(err.Error())
		}
		values, err := c.wsHandler.Configuration(ctx, &p)
		if err != nil {
			return nil, rpc.ErrRequestFailed(err.Error())
		}
		return values, nil

	case "workspace/applyEdit":
		var p struct {
			Label string          `json:"label,omitempty"`
			Edit  json.RawMessage `json:"edit"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, rpc.ErrInvalidParams(err.Error())
		}
		result, err := c.wsHandler.ApplyEdit(ctx, p.Label, p.Edit)
		if err != nil {
			return nil, rpc.ErrRequestFailed(err.Error())
		}
		return result, nil

	case "workspace/semanticTokens/refresh":
		return nil, refreshErr(c.wsHandler.RefreshSemanticTokens(ctx))
	case "workspace/inlineValue/refresh":
		return nil, refreshErr(c.wsHandler.RefreshInlineValue(ctx))
	case "workspace/inlayHint/refresh":
		return nil, refreshErr(c.wsHandler.RefreshInlayHint(ctx))
	case "workspace/diagnostic/refresh":
		return nil, refreshErr(c.wsHandler.RefreshDiagnostics(ctx))
	case "workspace/codeLens/refresh":
		return nil, refreshErr(c.wsHandler.RefreshCodeLens(ctx))

	case "client/registerCapability":
		return nil, c.handleRegister(params)
	case "client/unregisterCapability":
		return nil, c.handleUnregister(params)

	default:
		// Unknown server-to-client requests answer with a successful
		// null result rather than failing the connection (spec.md §4.2).
		return nil, nil
	}
}

func refreshErr(err error) *rpc.Error {
	if err == nil {
		return nil
	}
	return rpc.ErrRequestFailed(err.Error())
}

type registerOptionsHead struct {
	DocumentSelector []struct {
		Language string `json:"language"`
		Scheme   string `json:"scheme"`
		Pattern  string `json:"pattern"`
	} `json:"documentSelector"`
}

func (c *Client) handleRegister(params json.RawMessage) *rpc.Error {
	var p struct {
		Registrations []struct {
			ID              string          `json:"id"`
			Method          string          `json:"method"`
			RegisterOptions json.RawMessage `json:"registerOptions"`
		} `json:"registrations"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return rpc.ErrInvalidParams(err.Error())
	}
	for _, reg := range p.Registrations {
		var selector []capability.DocumentFilter
		if len(reg.RegisterOptions) > 0 {
			var head registerOptionsHead
			if err := json.Unmarshal(reg.RegisterOptions, &head); err == nil {
				for _, f := range head.DocumentSelector {
					selector = append(selector, capability.DocumentFilter{Language: f.Language, Scheme: f.Scheme, Pattern: f.Pattern})
				}
			}
		}
		if err := c.caps.Register(capability.Registration{
			ID:               reg.ID,
			Method:           reg.Method,
			DocumentSelector: selector,
		}); err != nil {
			return rpc.ErrInvalidParams(err.Error())
		}
	}
	return nil
}

func (c *Client) handleUnregister(params json.RawMessage) *rpc.Error {
	var p struct {
		Unregisterations []struct {
			ID     string `json:"id"`
			Method string `json:"method"`
		} `json:"unregisterations"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return rpc.ErrInvalidParams(err.Error())
	}
	for _, u := range p.Unregisterations {
		if err := c.caps.Unregister(u.Method, u.ID); err != nil {
			c.logger.Warn("unregisterCapability for unknown registration", zap.String("method", u.Method), zap.String("id", u.ID))
		}
	}
	return nil
}

// handleServerNotification handles window message forwarding,
// publishDiagnostics, and $/progress events.
func (c *Client) handleServerNotification(ctx context.Context, method string, params json.RawMessage) {
	switch method {
	case "window/showMessage":
		var p protocol.ShowMessageParams
		_ = json.Unmarshal(params, &p)
		logAtSeverity(c.logger, p.Type, p.Message)

	case "window/logMessage":
		var p protocol.LogMessageParams
		_ = json.Unmarshal(params, &p)
		logAtSeverity(c.logger, p.Type, p.Message)

	case "textDocument/publishDiagnostics":
		var p protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.logger.Warn("malformed publishDiagnostics", zap.Error(err))
			return
		}
		c.wsHandler.PublishDiagnostics(ctx, &p)

	case "$/progress":
		c.handleProgress(params)

	default:
		c.logger.Debug("dropped unhandled notification", zap.String("method", method))
	}
}

func (c *Client) handleProgress(params json.RawMessage) {
	var p struct {
		Token protocol.ProgressToken `json:"token"`
		Value json.RawMessage        `json:"value"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	token, ok := p.Token.(string)
	if !ok {
		return
	}
	c.progressMu.Lock()
	ch, ok := c.progress[token]
	c.progressMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- p.Value:
	default:
		c.logger.Warn("dropped progress event, channel full", zap.String("token", token))
	}
}

// logAtSeverity maps LSP MessageType to zap levels, the same idiom the
// teacher's convertSeverity uses for diagnostic severity.
func logAtSeverity(logger *zap.Logger, t protocol.MessageType, msg string) {
	switch t {
	case protocol.MessageTypeError:
		logger.Error(msg)
	case protocol.MessageTypeWarning:
		logger.Warn(msg)
	case protocol.MessageTypeInfo:
		logger.Info(msg)
	default:
		logger.Debug(msg)
	}
}
