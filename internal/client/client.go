// Package client implements the LSP client lifecycle state machine
// (spec.md §4.4): launch, initialize/initialized, request/notification
// dispatch subject to state, window message forwarding, and the
// server→client request surface.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/lspkit/lspkit/internal/capability"
	"github.com/lspkit/lspkit/internal/config"
	"github.com/lspkit/lspkit/internal/rpc"
	"github.com/lspkit/lspkit/internal/transport"
)

// Client drives one language server connection through its lifecycle.
type Client struct {
	mu    sync.Mutex
	state State

	tr     transport.Transport
	disp   *rpc.Dispatcher
	caps   *capability.Registry
	logger *zap.Logger

	name      string
	wsHandler WorkspaceRequestHandler

	progressMu sync.Mutex
	progress   map[string]chan json.RawMessage

	positionEncoding protocol.PositionEncodingKind
	requestTimeout   time.Duration

	running     chan struct{}
	runningOnce sync.Once

	disconnected chan struct{}
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithWorkspaceHandler installs the server→client request handler.
func WithWorkspaceHandler(h WorkspaceRequestHandler) Option {
	return func(c *Client) { c.wsHandler = h }
}

// WithName sets the id-prefix namespace used for outgoing request ids.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithRequestTimeout bounds every request sendRequestRaw issues without
// its own caller-supplied deadline. Zero disables the default bound,
// leaving requests to run until ctx (or the server) ends them.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithConfig applies cfg's RequestTimeout as the default bound
// WithRequestTimeout would otherwise set explicitly (spec.md §6). It
// reads no other field: cfg's LibraryName/LibraryVersion reach
// ClientInfo only through DefaultInitializeParams, which takes cfg
// separately.
func WithConfig(cfg *config.Defaults) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		c.requestTimeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
}

// New constructs a Client bound to tr. Capabilities is populated once
// Initialize succeeds; it is never nil.
func New(tr transport.Transport, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		state:            StateDisconnected,
		tr:               tr,
		caps:             capability.New(),
		logger:           logger,
		name:             "client",
		wsHandler:        defaultWorkspaceHandler{},
		progress:         make(map[string]chan json.RawMessage),
		positionEncoding: protocol.PositionEncodingKindUTF16,
		running:          make(chan struct{}),
		disconnected:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capabilities exposes the capability registry for check_feature /
// require_feature queries (spec.md §4.3).
func (c *Client) Capabilities() *capability.Registry { return c.caps }

// CheckFeature delegates to the capability registry, letting Client
// satisfy document.SyncClient directly.
func (c *Client) CheckFeature(method string, predicates capability.Predicates) bool {
	return c.caps.CheckFeature(method, predicates)
}

// SetWorkspaceRequestHandler installs h, replacing any previous
// handler or the default.
func (c *Client) SetWorkspaceRequestHandler(h WorkspaceRequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil {
		h = defaultWorkspaceHandler{}
	}
	c.wsHandler = h
}

// Launch is valid only in StateDisconnected. It installs the message
// dispatcher over tr; any subsequent transport fault rejects all
// pending requests and moves the client to StateDisconnected.
func (c *Client) Launch(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return &ErrInvalidState{Op: "launch", Have: c.state, Expected: []State{StateDisconnected}}
	}
	c.state = StateUninitialized
	c.mu.Unlock()

	c.disp = rpc.New(c.tr, c.logger, c.name, c.handleServerRequest, c.handleServerNotification)

	go func() {
		<-c.disp.Stopped()
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		close(c.disconnected)
	}()
	return nil
}

// Initialize sends the initialize request; valid only in
// StateUninitialized. On success the server's capabilities populate
// the registry and the client moves to StateInitializing.
func (c *Client) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return nil, &ErrInvalidState{Op: "initialize", Have: c.state, Expected: []State{StateUninitialized}}
	}
	c.mu.Unlock()

	raw, rpcErr, err := c.sendRequestRaw(ctx, "initialize", params)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, rpcErr
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("client: decode initialize result: %w", err)
	}
	c.caps.SetServerCapabilities(&result.Capabilities)

	c.mu.Lock()
	if result.Capabilities.PositionEncoding != "" {
		c.positionEncoding = result.Capabilities.PositionEncoding
	}
	c.state = StateInitializing
	c.mu.Unlock()
	return &result, nil
}

// PositionEncoding reports the code-unit encoding negotiated with the
// server during initialize, defaulting to UTF-16 per the LSP spec when
// the server declares none.
func (c *Client) PositionEncoding() protocol.PositionEncodingKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionEncoding
}

// Initialized sends the initialized notification; valid only in
// StateInitializing, and moves the client to StateRunning.
func (c *Client) Initialized(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInitializing {
		c.mu.Unlock()
		return &ErrInvalidState{Op: "initialized", Have: c.state, Expected: []State{StateInitializing}}
	}
	c.mu.Unlock()

	if err := c.sendNotificationRaw(ctx, "initialized", &protocol.InitializedParams{}); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()
	c.runningOnce.Do(func() { close(c.running) })
	return nil
}

// Running returns a channel closed the moment the client first reaches
// StateRunning, letting callers (e.g. a workspace attaching the
// client) run a one-time callback without polling State().
func (c *Client) Running() <-chan struct{} { return c.running }

// Disconnected returns a channel closed once the client's dispatcher
// has stopped, signalling the workspace to detach this client.
func (c *Client) Disconnected() <-chan struct{} { return c.disconnected }

// Shutdown sends the shutdown request; valid only in StateRunning, and
// moves the client to StateShutdown.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return &ErrInvalidState{Op: "shutdown", Have: c.state, Expected: []State{StateRunning}}
	}
	c.mu.Unlock()

	_, rpcErr, err := c.sendRequestRaw(ctx, "shutdown", nil)
	if err != nil {
		return err
	}
	if rpcErr != nil {
		return rpcErr
	}

	c.mu.Lock()
	c.state = StateShutdown
	c.mu.Unlock()
	return nil
}

// Exit sends the exit notification; valid only in StateShutdown. It
// waits (bounded by ctx) for the transport to report disconnection,
// then returns with the client in StateDisconnected.
func (c *Client) Exit(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateShutdown {
		c.mu.Unlock()
		return &ErrInvalidState{Op: "exit", Have: c.state, Expected: []State{StateShutdown}}
	}
	c.mu.Unlock()

	if err := c.sendNotificationRaw(ctx, "exit", nil); err != nil {
		return err
	}

	select {
	case <-c.disconnected:
	case <-ctx.Done():
	}
	return nil
}

// State reports the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendRequest issues method, valid in StateRunning (initialize and
// shutdown have their own dedicated methods above and their own state
// exceptions).
func (c *Client) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil, &ErrInvalidState{Op: method, Have: c.state, Expected: []State{StateRunning}}
	}
	c.mu.Unlock()

	raw, rpcErr, err := c.sendRequestRaw(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, rpcErr
	}
	return raw, nil
}

// SendNotification issues method, valid in StateRunning (initialized
// and exit have their own dedicated methods with their own state
// exceptions).
func (c *Client) SendNotification(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return &ErrInvalidState{Op: method, Have: c.state, Expected: []State{StateRunning}}
	}
	c.mu.Unlock()
	return c.sendNotificationRaw(ctx, method, params)
}

// Cancel sends $/cancelRequest for id. The library never does this
// automatically (spec.md §5); callers opt in.
func (c *Client) Cancel(ctx context.Context, id rpc.ID) error {
	return c.disp.Cancel(ctx, id)
}

// SendRequestWithProgress issues method with a fresh work-done progress
// token installed into params (which must embed
// protocol.WorkDoneProgressParams), returning both the eventual result
// and a channel of raw $/progress values observed under that token.
// The channel is closed once the request completes. Supplemental to
// spec.md: work-done progress is standard LSP 3.17 surface the
// distillation omitted.
func (c *Client) SendRequestWithProgress(ctx context.Context, method string, tokenSetter func(token string), params any) (json.RawMessage, <-chan json.RawMessage, error) {
	token := uuid.NewString()
	tokenSetter(token)

	events := make(chan json.RawMessage, 8)
	c.progressMu.Lock()
	c.progress[token] = events
	c.progressMu.Unlock()
	defer func() {
		c.progressMu.Lock()
		delete(c.progress, token)
		c.progressMu.Unlock()
		close(events)
	}()

	raw, err := c.SendRequest(ctx, method, params)
	if err != nil {
		return nil, events, err
	}
	return raw, events, nil
}

func (c *Client) sendRequestRaw(ctx context.Context, method string, params any) (json.RawMessage, *rpc.Error, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, nil, fmt.Errorf("client: marshal %s params: %w", method, err)
	}
	if params == nil {
		data = nil
	}

	if c.requestTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
			defer cancel()
		}
	}

	raw, rpcErr, err := c.disp.SendRequest(ctx, method, data)
	if errors.Is(err, rpc.ErrRequestTimeout) {
		return raw, rpcErr, &ErrTimeout{Method: method, Err: err}
	}
	return raw, rpcErr, err
}

func (c *Client) sendNotificationRaw(ctx context.Context, method string, params any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("client: marshal %s params: %w", method, err)
	}
	if params == nil {
		data = nil
	}
	return c.disp.SendNotification(ctx, method, data)
}

// Enter idempotently advances the client to StateRunning: launching,
// initializing, and sending initialized as needed. Go has no
// __enter__/__exit__, so this stands in for spec.md §4.4's
// context-manager entry.
func (c *Client) Enter(ctx context.Context, params *protocol.InitializeParams) error {
	if c.State() == StateDisconnected {
		if err := c.Launch(ctx); err != nil {
			return err
		}
	}
	if c.State() == StateUninitialized {
		if _, err := c.Initialize(ctx, params); err != nil {
			return err
		}
	}
	if c.State() == StateInitializing {
		if err := c.Initialized(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Leave idempotently advances the client through shutdown to
// disconnected, regardless of entry state.
func (c *Client) Leave(ctx context.Context) error {
	if c.State() == StateRunning {
		if err := c.Shutdown(ctx); err != nil {
			return err
		}
	}
	if c.State() == StateShutdown {
		return c.Exit(ctx)
	}
	return nil
}

// Scope is a defer-friendly wrapper around Enter/Leave.
type Scope struct {
	client *Client
}

// EnterScope enters c and returns a Scope whose Leave tears it down;
// use as `scope := client.EnterScope(ctx, c, params); defer scope.Leave(ctx)`.
func EnterScope(ctx context.Context, c *Client, params *protocol.InitializeParams) (*Scope, error) {
	if err := c.Enter(ctx, params); err != nil {
		return nil, err
	}
	return &Scope{client: c}, nil
}

// Leave tears down the scope's client, logging (not returning) any
// error since it is typically called from a defer.
func (s *Scope) Leave(ctx context.Context) {
	if err := s.client.Leave(ctx); err != nil {
		s.client.logger.Warn("error leaving client scope", zap.Error(err))
	}
}

