package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"acpkit/internal/logging"
)

// RequestHandlerFunc handles one inbound request. A non-nil *JSONRPCError
// return is sent verbatim as the response error (spec.md §4.5: "an error
// already shaped as a domain error is passed through unchanged"); any other
// Go error is coerced to -32603 internal error.
type RequestHandlerFunc func(ctx context.Context, params json.RawMessage) (result any, err error)

// NotificationHandlerFunc handles one inbound notification. Its error
// return, if any, is logged and never sent on the wire (spec.md §4.3).
type NotificationHandlerFunc func(ctx context.Context, params json.RawMessage) error

// Conn is the shared engine underlying both protocol façades: the outbound
// caller (spec.md §4.4), the inbound handler runner (§4.5), and the message
// dispatcher (§4.3). AgentConn and ClientConn each wrap one and differ only
// in which method strings they expose as typed sends and which they route
// to handlers.
type Conn struct {
	transport   *Transport
	correlation *correlationTable
	nextID      atomic.Int64

	// lastNotification is closed once the most recently dispatched
	// notification's handler has returned; only the read loop touches it.
	lastNotification chan struct{}

	mu                   sync.RWMutex
	requestHandlers      map[string]RequestHandlerFunc
	notificationHandlers map[string]NotificationHandlerFunc

	// initGate and authGate, when non-nil, are checked in routeRequest
	// before dispatch (spec.md §4.6: "until initialize has completed,
	// neither side may send any other request"; auth-required sessions
	// reject session calls with -32000 until authenticate completes).
	// ClientConn never installs either, since the client is the one that
	// issues initialize and never receives an inbound request before its
	// own call returns.
	initGate *methodGate
	authGate *methodGate

	ctx    context.Context
	cancel context.CancelFunc

	log *logging.Logger
}

// methodGate blocks every request method except those in exempt until
// satisfied is set, answering gated requests with (code, message) instead of
// dispatching them. A gate that is not active never blocks anything.
type methodGate struct {
	active    atomic.Bool
	satisfied atomic.Bool
	exempt    map[string]bool
	code      int
	message   string
}

func newMethodGate(code int, message string, exemptMethods ...string) *methodGate {
	exempt := make(map[string]bool, len(exemptMethods))
	for _, m := range exemptMethods {
		exempt[m] = true
	}
	return &methodGate{exempt: exempt, code: code, message: message}
}

// check returns the gating error for method, or nil if the request should
// proceed to normal dispatch.
func (g *methodGate) check(method string) *JSONRPCError {
	if g == nil || !g.active.Load() || g.satisfied.Load() || g.exempt[method] {
		return nil
	}
	return &JSONRPCError{Code: g.code, Message: g.message, Data: errorData(map[string]string{"method": method})}
}

func newConn(t *Transport) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		transport:            t,
		correlation:          newCorrelationTable(),
		requestHandlers:      make(map[string]RequestHandlerFunc),
		notificationHandlers: make(map[string]NotificationHandlerFunc),
		ctx:                  ctx,
		cancel:               cancel,
		log:                  logging.Default,
	}
	t.SetHandler(c.dispatch)
	return c
}

// Start begins reading from the transport. Call after all handlers are
// registered.
func (c *Conn) Start() {
	c.transport.Start()
	go c.watchDisconnect()
}

func (c *Conn) watchDisconnect() {
	<-c.transport.Done()
	c.cancel()
	err := c.transport.CloseErr()
	if err == nil {
		err = errDisconnected
	}
	c.correlation.drainAll(err)
}

// Close shuts down the underlying transport.
func (c *Conn) Close() error {
	return c.transport.Close()
}

// Context returns a context cancelled when the connection's transport ends.
func (c *Conn) Context() context.Context { return c.ctx }

// handleRequest registers the handler for an inbound request method.
func (c *Conn) handleRequest(method string, h RequestHandlerFunc) {
	c.mu.Lock()
	c.requestHandlers[method] = h
	c.mu.Unlock()
}

// handleNotification registers the handler for an inbound notification
// method.
func (c *Conn) handleNotification(method string, h NotificationHandlerFunc) {
	c.mu.Lock()
	c.notificationHandlers[method] = h
	c.mu.Unlock()
}

// dispatch classifies one inbound frame and routes it (spec.md §4.3).
func (c *Conn) dispatch(msg *JSONRPCMessage) {
	switch {
	case msg.IsResponse():
		c.routeResponse(msg)
	case msg.IsRequest():
		go c.routeRequest(msg)
	case msg.IsNotification():
		// Notification handlers run off the read loop but one after
		// another, so they observe notifications in arrival order.
		prev := c.lastNotification
		done := make(chan struct{})
		c.lastNotification = done
		go func() {
			defer close(done)
			if prev != nil {
				<-prev
			}
			c.routeNotification(msg)
		}()
	default:
		c.log.Warn("acp: dropping malformed envelope (neither request, response, nor notification)")
	}
}

func (c *Conn) routeResponse(msg *JSONRPCMessage) {
	key, ok := msg.idKey()
	if !ok {
		c.log.Warn("acp: response with no id, dropping")
		return
	}
	s := c.correlation.take(key)
	if s == nil {
		c.log.Warn("acp: response for unknown id %s, dropping", key)
		return
	}
	select {
	case s.ch <- slotResult{result: msg.Result, err: msg.Error}:
	default:
	}
}

func (c *Conn) routeRequest(msg *JSONRPCMessage) {
	if gateErr := c.initGate.check(msg.Method); gateErr != nil {
		c.sendError(msg, gateErr)
		return
	}
	if gateErr := c.authGate.check(msg.Method); gateErr != nil {
		c.sendError(msg, gateErr)
		return
	}

	c.mu.RLock()
	h, ok := c.requestHandlers[msg.Method]
	c.mu.RUnlock()

	if !ok {
		c.sendMethodNotFound(msg)
		return
	}

	result, err := h(c.ctx, msg.Params)
	if err != nil {
		c.sendError(msg, coerceError(err))
		return
	}

	raw, merr := json.Marshal(result)
	if merr != nil {
		c.log.Error("acp: marshaling result for %s: %v", msg.Method, merr)
		c.sendError(msg, &JSONRPCError{Code: ErrCodeInternal, Message: "failed to marshal result", Data: errorData(map[string]string{"method": msg.Method})})
		return
	}
	c.sendResult(msg, raw)
}

func (c *Conn) routeNotification(msg *JSONRPCMessage) {
	c.mu.RLock()
	h, ok := c.notificationHandlers[msg.Method]
	c.mu.RUnlock()

	if !ok {
		c.log.Warn("acp: no handler for notification %s, ignoring", msg.Method)
		return
	}
	if err := h(c.ctx, msg.Params); err != nil {
		c.log.Error("acp: notification handler for %s failed: %v", msg.Method, err)
	}
}

func (c *Conn) sendMethodNotFound(msg *JSONRPCMessage) {
	c.sendError(msg, &JSONRPCError{
		Code:    ErrCodeMethodNotFound,
		Message: "Method not found",
		Data:    errorData(map[string]string{"method": msg.Method}),
	})
}

func (c *Conn) sendResult(req *JSONRPCMessage, result json.RawMessage) {
	if err := c.transport.Send(&JSONRPCMessage{JSONRPC: "2.0", ID: req.ID, Result: result}); err != nil {
		c.log.Error("acp: sending result for %s: %v", req.Method, err)
	}
}

func (c *Conn) sendError(req *JSONRPCMessage, rpcErr *JSONRPCError) {
	if err := c.transport.Send(&JSONRPCMessage{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}); err != nil {
		c.log.Error("acp: sending error for %s: %v", req.Method, err)
	}
}

// coerceError implements spec.md §4.5's error coercion rule: a *JSONRPCError
// passes through unchanged; anything else becomes -32603 internal error.
func coerceError(err error) *JSONRPCError {
	if rpcErr, ok := err.(*JSONRPCError); ok {
		return rpcErr
	}
	return &JSONRPCError{
		Code:    ErrCodeInternal,
		Message: "internal error",
		Data:    errorData(map[string]string{"error": err.Error()}),
	}
}

// call implements the outbound caller (spec.md §4.4 send_request): allocate
// ID, insert slot before the wire write, serialize, await completion or
// cancellation/disconnect, decode into result.
func (c *Conn) call(ctx context.Context, method string, params any, result any) error {
	id := c.nextID.Add(1)
	rawID := newRawID(id)
	key := string(rawID)

	s := newSlot()
	c.correlation.insert(key, s) // MUST happen-before the wire write

	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			c.correlation.take(key)
			return fmt.Errorf("acp: marshal params for %s: %w", method, err)
		}
		rawParams = b
	}

	msg := &JSONRPCMessage{JSONRPC: "2.0", ID: &rawID, Method: method, Params: rawParams}
	if err := c.transport.Send(msg); err != nil {
		c.correlation.take(key)
		return fmt.Errorf("acp: send %s: %w", method, err)
	}

	select {
	case res := <-s.ch:
		if res.err != nil {
			return res.err
		}
		if result != nil && len(res.result) > 0 {
			if err := json.Unmarshal(res.result, result); err != nil {
				return fmt.Errorf("acp: decode result for %s: %w", method, err)
			}
		}
		return nil

	case <-ctx.Done():
		c.correlation.take(key) // best-effort; a racing response is benign
		return fmt.Errorf("%w: %s", errCancelled, method)

	case <-c.ctx.Done():
		c.correlation.take(key)
		return fmt.Errorf("%w: %s", errDisconnected, method)
	}
}

// notify implements send_notification (spec.md §4.4): serialize and submit,
// never waits for any reply.
func (c *Conn) notify(method string, params any) error {
	select {
	case <-c.ctx.Done():
		return fmt.Errorf("%w: %s", errDisconnected, method)
	default:
	}

	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("acp: marshal params for %s: %w", method, err)
		}
		rawParams = b
	}

	msg := &JSONRPCMessage{JSONRPC: "2.0", Method: method, Params: rawParams}
	if err := c.transport.Send(msg); err != nil {
		return fmt.Errorf("acp: notify %s: %w", method, err)
	}
	return nil
}
