package rpc

import (
	"errors"
	"fmt"

	"go.lsp.dev/jsonrpc2"
)

// Error wraps go.lsp.dev/jsonrpc2's wire-compatible error shape — the
// generated schema layer spec.md §1 assumes is provided — with the
// distinction spec.md §7 draws between protocol errors (raised locally
// on malformed traffic) and LSP-defined errors (returned by a server).
type Error struct {
	*jsonrpc2.Error
}

// NewError builds a protocol-level error response.
func NewError(code jsonrpc2.Code, message string) *Error {
	return &Error{Error: &jsonrpc2.Error{Code: code, Message: message}}
}

func (e *Error) Error() string {
	if e == nil || e.Error == nil {
		return "rpc: unknown error"
	}
	return fmt.Sprintf("rpc: %s (code %d)", e.Message, e.Code)
}

// Well-known protocol error constructors, matching spec.md §7's
// taxonomy and go.lsp.dev/jsonrpc2's Code constants.
func ErrParse(detail string) *Error {
	return NewError(jsonrpc2.ParseError, "parse error: "+detail)
}

func ErrInvalidRequest(detail string) *Error {
	return NewError(jsonrpc2.InvalidRequest, "invalid request: "+detail)
}

func ErrMethodNotFound(method string) *Error {
	return NewError(jsonrpc2.MethodNotFound, "method not found: "+method)
}

func ErrInvalidParams(detail string) *Error {
	return NewError(jsonrpc2.InvalidParams, "invalid params: "+detail)
}

func ErrInternal(detail string) *Error {
	return NewError(jsonrpc2.InternalError, detail)
}

func ErrServerNotInitialized() *Error {
	return NewError(jsonrpc2.ServerNotInitialized, "server not initialized")
}

// LSP-defined errors (spec.md §7). Servers send these over the wire;
// the client package also builds ErrRequestFailed itself to answer a
// server→client request whose handler failed.
func ErrRequestFailed(detail string) *Error {
	return NewError(jsonrpc2.UnknownErrorCode, "request failed: "+detail)
}

func ErrRequestCancelled() *Error {
	return NewError(jsonrpc2.RequestCancelled, "request cancelled")
}

func ErrContentModified() *Error {
	return NewError(jsonrpc2.ContentModified, "content modified")
}

// ErrServerStopped is the sentinel every pending request is rejected
// with when the transport disconnects (spec.md §3 PendingRequest,
// §4.1 Failure).
var ErrServerStopped = errors.New("rpc: server has stopped")

// ErrRequestTimeout is returned by SendRequest when the deadline
// elapses before a response arrives. The request may still be answered
// later; such late replies are discarded (spec.md §4.4, §5).
var ErrRequestTimeout = errors.New("rpc: request timed out")
