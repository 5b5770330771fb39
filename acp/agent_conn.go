package acp

import (
	"context"
	"encoding/json"
)

func unmarshalParams[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &JSONRPCError{
			Code:    ErrCodeInvalidParams,
			Message: "invalid params",
			Data:    errorData(map[string]string{"error": err.Error()}),
		}
	}
	return v, nil
}

// AgentHandlers are the callbacks an Agent implementation supplies to
// handle inbound protocol methods (spec.md §4.6 Agent-side façade). Leave
// OnSessionLoad nil when OnInitialize does not advertise loadSession=true;
// the engine then answers session/load with -32601 automatically, since no
// handler is registered for it. The engine does not check the handler set
// against the capabilities OnInitialize returns.
type AgentHandlers struct {
	OnInitialize      func(ctx context.Context, p InitializeParams) (InitializeResult, error)
	OnAuthenticate    func(ctx context.Context, p AuthenticateParams) (AuthenticateResult, error)
	OnSessionNew      func(ctx context.Context, p SessionNewParams) (SessionNewResult, error)
	OnSessionLoad     func(ctx context.Context, p SessionLoadParams) (SessionLoadResult, error)
	OnSessionPrompt   func(ctx context.Context, p SessionPromptParams) (SessionPromptResult, error)
	OnSessionSetMode  func(ctx context.Context, p SessionSetModeParams) (SessionSetModeResult, error)
	OnSessionSetModel func(ctx context.Context, p SessionSetModelParams) (SessionSetModelResult, error)
	// OnSessionCancel observes a session/cancel notification after the
	// engine has already marked the turn's context cancelled; it is for
	// bookkeeping only, never for answering the prompt (that happens when
	// the in-flight OnSessionPrompt call returns).
	OnSessionCancel func(ctx context.Context, p SessionCancelParams)
}

// AgentConn is the Agent-side protocol façade (spec.md §4.6): it routes the
// inbound methods an Agent implementation must answer, and exposes the
// typed outbound calls an Agent issues to the Client (session updates,
// permission requests, fs/terminal operations).
type AgentConn struct {
	conn  *Conn
	turns *turnState
}

// NewAgentConn builds an AgentConn over an already-open transport, wiring
// handlers and returning before Start is called so additional setup (e.g.
// overriding defaults) can happen first.
func NewAgentConn(t *Transport, handlers AgentHandlers) *AgentConn {
	ac := &AgentConn{conn: newConn(t), turns: newTurnState()}

	// Every other request is rejected with -32600 until initialize
	// completes (spec.md §4.6). The auth gate starts inactive; it is
	// armed only if onInitialize's result advertises authMethods, and
	// satisfied once authenticate succeeds.
	ac.conn.initGate = newMethodGate(ErrCodeInvalidRequest, "initialize must complete before any other request", MethodInitialize)
	ac.conn.initGate.active.Store(true)
	ac.conn.authGate = newMethodGate(ErrCodeAuthRequired, "authentication required", MethodInitialize, MethodAuthenticate)

	ac.wire(handlers)
	return ac
}

// Start begins reading from the transport.
func (ac *AgentConn) Start() { ac.conn.Start() }

// Close shuts down the underlying transport.
func (ac *AgentConn) Close() error { return ac.conn.Close() }

// Context is cancelled when the connection ends.
func (ac *AgentConn) Context() context.Context { return ac.conn.Context() }

func (ac *AgentConn) wire(h AgentHandlers) {
	if h.OnInitialize != nil {
		ac.conn.handleRequest(MethodInitialize, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[InitializeParams](raw)
			if err != nil {
				return nil, err
			}
			res, err := h.OnInitialize(ctx, p)
			if err != nil {
				return nil, err
			}
			if res.AuthMethods == nil {
				res.AuthMethods = []AuthMethod{}
			}
			ac.conn.initGate.satisfied.Store(true)
			if len(res.AuthMethods) > 0 {
				ac.conn.authGate.active.Store(true)
			}
			return res, nil
		})
	}

	if h.OnAuthenticate != nil {
		ac.conn.handleRequest(MethodAuthenticate, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[AuthenticateParams](raw)
			if err != nil {
				return nil, err
			}
			res, err := h.OnAuthenticate(ctx, p)
			if err != nil {
				return nil, err
			}
			ac.conn.authGate.satisfied.Store(true)
			return res, nil
		})
	}

	if h.OnSessionNew != nil {
		ac.conn.handleRequest(MethodSessionNew, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[SessionNewParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnSessionNew(ctx, p)
		})
	}

	if h.OnSessionLoad != nil {
		ac.conn.handleRequest(MethodSessionLoad, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[SessionLoadParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnSessionLoad(ctx, p)
		})
	}

	if h.OnSessionPrompt != nil {
		ac.conn.handleRequest(MethodSessionPrompt, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[SessionPromptParams](raw)
			if err != nil {
				return nil, err
			}
			turnCtx := ac.turns.begin(ctx, p.SessionID)
			defer ac.turns.end(p.SessionID)
			return h.OnSessionPrompt(turnCtx, p)
		})
	}

	if h.OnSessionSetMode != nil {
		ac.conn.handleRequest(MethodSessionSetMode, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[SessionSetModeParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnSessionSetMode(ctx, p)
		})
	}

	if h.OnSessionSetModel != nil {
		ac.conn.handleRequest(MethodSessionSetModel, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[SessionSetModelParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnSessionSetModel(ctx, p)
		})
	}

	ac.conn.handleNotification(MethodSessionCancel, func(ctx context.Context, raw json.RawMessage) error {
		p, err := unmarshalParams[SessionCancelParams](raw)
		if err != nil {
			return err
		}
		ac.turns.cancel(p.SessionID)
		if h.OnSessionCancel != nil {
			h.OnSessionCancel(ctx, p)
		}
		return nil
	})
}

// SessionUpdate streams one update for the given session (spec.md §4.6
// Streaming). It is a notification: it never waits for a reply, and updates
// for one session are delivered to the peer's handler in the order they
// were sent (guaranteed by the transport's write serialization).
func (ac *AgentConn) SessionUpdate(sessionID string, update SessionUpdate) error {
	return ac.conn.notify(MethodSessionUpdate, SessionUpdateParams{SessionID: sessionID, Update: update})
}

// RequestPermission asks the client to authorize a tool call.
func (ac *AgentConn) RequestPermission(ctx context.Context, p RequestPermissionParams) (RequestPermissionResult, error) {
	var res RequestPermissionResult
	err := ac.conn.call(ctx, MethodSessionRequestPerm, p, &res)
	return res, err
}

// ReadTextFile reads a file through the client. An acpkit ClientConn answers
// -32601 when it has no OnReadTextFile handler registered; it does not
// compare the call with the fs capabilities it sent in initialize.
func (ac *AgentConn) ReadTextFile(ctx context.Context, p FSReadTextFileParams) (FSReadTextFileResult, error) {
	var res FSReadTextFileResult
	err := ac.conn.call(ctx, MethodFSReadTextFile, p, &res)
	return res, err
}

// WriteTextFile writes a file through the client.
func (ac *AgentConn) WriteTextFile(ctx context.Context, p FSWriteTextFileParams) (FSWriteTextFileResult, error) {
	var res FSWriteTextFileResult
	err := ac.conn.call(ctx, MethodFSWriteTextFile, p, &res)
	return res, err
}

// CreateTerminal asks the client to spawn a terminal.
func (ac *AgentConn) CreateTerminal(ctx context.Context, p TerminalCreateParams) (TerminalCreateResult, error) {
	var res TerminalCreateResult
	err := ac.conn.call(ctx, MethodTerminalCreate, p, &res)
	return res, err
}

// TerminalOutput reads a terminal's accumulated output.
func (ac *AgentConn) TerminalOutput(ctx context.Context, p TerminalOutputParams) (TerminalOutputResult, error) {
	var res TerminalOutputResult
	err := ac.conn.call(ctx, MethodTerminalOutput, p, &res)
	return res, err
}

// WaitForTerminalExit blocks until the terminal's command exits.
func (ac *AgentConn) WaitForTerminalExit(ctx context.Context, p TerminalWaitForExitParams) (TerminalWaitForExitResult, error) {
	var res TerminalWaitForExitResult
	err := ac.conn.call(ctx, MethodTerminalWaitForExit, p, &res)
	return res, err
}

// KillTerminal signals a terminal's command to terminate.
func (ac *AgentConn) KillTerminal(ctx context.Context, p TerminalKillParams) (TerminalKillResult, error) {
	var res TerminalKillResult
	err := ac.conn.call(ctx, MethodTerminalKill, p, &res)
	return res, err
}

// ReleaseTerminal releases a terminal's resources on the client.
func (ac *AgentConn) ReleaseTerminal(ctx context.Context, p TerminalReleaseParams) (TerminalReleaseResult, error) {
	var res TerminalReleaseResult
	err := ac.conn.call(ctx, MethodTerminalRelease, p, &res)
	return res, err
}
