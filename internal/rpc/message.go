package rpc

import (
	"encoding/json"

	"go.lsp.dev/jsonrpc2"
)

// envelope is the superset JSON shape of every JSON-RPC message this
// library sends or receives. Which fields are present determines what
// kind of message it is (spec.md §4.2).
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

func requestEnvelope(id ID, method string, params json.RawMessage) envelope {
	return envelope{JSONRPC: "2.0", ID: &id, Method: method, Params: params}
}

func notificationEnvelope(method string, params json.RawMessage) envelope {
	return envelope{JSONRPC: "2.0", Method: method, Params: params}
}

func resultEnvelope(id ID, result json.RawMessage) envelope {
	return envelope{JSONRPC: "2.0", ID: &id, Result: result}
}

func errorEnvelope(id *ID, rpcErr *Error) envelope {
	return envelope{JSONRPC: "2.0", ID: id, Error: rpcErr.Error}
}
