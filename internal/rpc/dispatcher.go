// Package rpc implements the JSON-RPC message dispatcher: parsing
// frames, routing requests/responses/notifications, and correlating
// response IDs to pending request futures (spec.md §4.2).
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/lspkit/lspkit/internal/transport"
)

// RequestHandler answers an incoming server→client request. Returning a
// non-nil *Error sends that error to the peer; returning (nil, nil) for
// an unrecognized method sends a successful null result, per spec.md
// §4.2's "unknown methods must return null rather than fail".
type RequestHandler func(ctx context.Context, method string, params json.RawMessage) (result any, rpcErr *Error)

// NotificationHandler handles an incoming notification. Errors are
// never sent back to the peer (there is nothing to send them to).
type NotificationHandler func(ctx context.Context, method string, params json.RawMessage)

type response struct {
	result json.RawMessage
	err    *Error
}

// Dispatcher correlates outgoing requests with their responses and
// routes incoming traffic to the installed handlers. One Dispatcher
// exists per connection and reads from exactly one Transport.
type Dispatcher struct {
	tr     transport.Transport
	logger *zap.Logger
	idGen  *IDGenerator

	mu      sync.Mutex
	pending map[string]chan response

	requestHandler RequestHandler
	notifyHandler  NotificationHandler

	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a Dispatcher over tr. idPrefix namespaces client-generated
// request IDs (spec.md §3). Either handler may be nil; unregistered
// incoming requests get MethodNotFound, unregistered notifications are
// silently dropped after a debug log.
func New(tr transport.Transport, logger *zap.Logger, idPrefix string, reqHandler RequestHandler, notifyHandler NotificationHandler) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		tr:             tr,
		logger:         logger,
		idGen:          NewIDGenerator(idPrefix),
		pending:        make(map[string]chan response),
		requestHandler: reqHandler,
		notifyHandler:  notifyHandler,
		stopped:        make(chan struct{}),
	}
	go d.run()
	return d
}

// run is the dispatcher's single cooperative task: it serializes every
// handler invocation with respect to the transport (spec.md §4.2).
func (d *Dispatcher) run() {
	frames := d.tr.Frames()
	disconnected := d.tr.Disconnected()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			d.handleFrame(f)
		case cause := <-disconnected:
			d.shutdown(cause)
			return
		}
	}
}

func (d *Dispatcher) shutdown(cause error) {
	d.stopOnce.Do(func() {
		close(d.stopped)
	})

	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[string]chan response)
	d.mu.Unlock()

	for _, ch := range pending {
		ch <- response{err: NewError(jsonrpc2.InternalError, ErrServerStopped.Error())}
	}
	if cause != nil {
		d.logger.Warn("connection closed", zap.Error(cause))
	}
}

// handleFrame implements the full routing table from spec.md §4.2.
func (d *Dispatcher) handleFrame(f transport.Frame) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(f.Payload, &fields); err != nil {
		d.replyRaw(nil, nil, ErrParse(err.Error()))
		return
	}

	_, hasMethod := fields["method"]
	_, hasID := fields["id"]
	_, hasResult := fields["result"]
	_, hasError := fields["error"]

	switch {
	case !hasMethod && !hasID:
		d.replyRaw(nil, nil, ErrInvalidRequest("message has neither method nor id"))

	case hasMethod && hasID:
		d.handleRequest(fields)

	case hasMethod && !hasID:
		d.handleNotification(fields)

	case !hasMethod && hasID && hasResult && hasError:
		var id ID
		_ = json.Unmarshal(fields["id"], &id)
		d.replyRaw(&id, nil, ErrInvalidRequest("message has both result and error"))

	default: // !hasMethod && hasID
		d.handleResponse(fields)
	}
}

func (d *Dispatcher) handleRequest(fields map[string]json.RawMessage) {
	var method string
	_ = json.Unmarshal(fields["method"], &method)
	var id ID
	if err := json.Unmarshal(fields["id"], &id); err != nil {
		d.replyRaw(nil, nil, ErrInvalidRequest("malformed id"))
		return
	}

	if d.requestHandler == nil {
		d.replyRaw(&id, nil, ErrMethodNotFound(method))
		return
	}

	result, rpcErr := d.requestHandler(context.Background(), method, fields["params"])
	if rpcErr != nil {
		d.replyRaw(&id, nil, rpcErr)
		return
	}
	d.replyRaw(&id, result, nil)
}

func (d *Dispatcher) handleNotification(fields map[string]json.RawMessage) {
	var method string
	_ = json.Unmarshal(fields["method"], &method)

	if d.notifyHandler == nil {
		d.logger.Debug("dropped unhandled notification", zap.String("method", method))
		return
	}
	d.notifyHandler(context.Background(), method, fields["params"])
}

func (d *Dispatcher) handleResponse(fields map[string]json.RawMessage) {
	var id ID
	if err := json.Unmarshal(fields["id"], &id); err != nil {
		d.logger.Warn("response with malformed id, dropping")
		return
	}

	d.mu.Lock()
	ch, ok := d.pending[id.String()]
	if ok {
		delete(d.pending, id.String())
	}
	d.mu.Unlock()

	if !ok {
		// Per spec.md's Open Questions: an unmatched id is logged and
		// dropped rather than raised, which could crash an unrelated
		// handler.
		d.logger.Warn("response with unknown id, dropping", zap.String("id", id.String()))
		return
	}

	var resp response
	if raw, ok := fields["error"]; ok {
		var wireErr struct {
			Code    int64           `json:"code"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data,omitempty"`
		}
		_ = json.Unmarshal(raw, &wireErr)
		resp.err = NewError(jsonrpc2.Code(wireErr.Code), wireErr.Message)
	} else {
		resp.result = fields["result"]
	}
	ch <- resp
}

// replyRaw sends a result or error response. id may be nil only for the
// ParseError/InvalidRequest cases where no id could be determined.
func (d *Dispatcher) replyRaw(id *ID, result any, rpcErr *Error) {
	var env envelope
	if rpcErr != nil {
		env = errorEnvelope(id, rpcErr)
	} else {
		data, err := json.Marshal(result)
		if err != nil {
			env = errorEnvelope(id, ErrInternal("failed to marshal result"))
		} else {
			env = envelope{JSONRPC: "2.0", ID: id, Result: data}
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		d.logger.Error("failed to marshal response envelope", zap.Error(err))
		return
	}
	if err := d.tr.Send(context.Background(), transport.Frame{Payload: payload}); err != nil {
		d.logger.Warn("failed to send response", zap.Error(err))
	}
}

// SendRequest issues method with params, blocking until a response
// arrives, ctx is done, or the connection stops. Outgoing messages from
// one caller are delivered in the order submitted (spec.md §5) because
// the underlying transport serializes writes.
func (d *Dispatcher) SendRequest(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *Error, error) {
	id := d.idGen.Next()
	ch := make(chan response, 1)

	d.mu.Lock()
	d.pending[id.String()] = ch
	d.mu.Unlock()

	data, err := json.Marshal(requestEnvelope(id, method, params))
	if err != nil {
		d.dropPending(id)
		return nil, nil, fmt.Errorf("rpc: marshal request: %w", err)
	}

	if err := d.tr.Send(ctx, transport.Frame{Payload: data}); err != nil {
		d.dropPending(id)
		return nil, nil, fmt.Errorf("rpc: send request: %w", err)
	}

	select {
	case resp := <-ch:
		return resp.result, resp.err, nil
	case <-ctx.Done():
		d.dropPending(id)
		return nil, nil, ErrRequestTimeout
	case <-d.stopped:
		return nil, nil, ErrServerStopped
	}
}

// SendNotification issues method with params and does not wait for any
// reply, even on error (spec.md §4.2).
func (d *Dispatcher) SendNotification(ctx context.Context, method string, params json.RawMessage) error {
	data, err := json.Marshal(notificationEnvelope(method, params))
	if err != nil {
		return fmt.Errorf("rpc: marshal notification: %w", err)
	}
	if err := d.tr.Send(ctx, transport.Frame{Payload: data}); err != nil {
		return fmt.Errorf("rpc: send notification: %w", err)
	}
	return nil
}

func (d *Dispatcher) dropPending(id ID) {
	d.mu.Lock()
	delete(d.pending, id.String())
	d.mu.Unlock()
}

// Cancel requests cancellation of an outstanding id by sending
// $/cancelRequest. The library never does this automatically (spec.md
// §5); callers opt in explicitly.
func (d *Dispatcher) Cancel(ctx context.Context, id ID) error {
	params, _ := json.Marshal(struct {
		ID ID `json:"id"`
	}{ID: id})
	return d.SendNotification(ctx, "$/cancelRequest", params)
}

// Stopped reports when the dispatcher has shut down.
func (d *Dispatcher) Stopped() <-chan struct{} {
	return d.stopped
}
