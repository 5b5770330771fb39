package acp

import (
	"context"
	"encoding/json"
)

// ClientHandlers are the callbacks a Client implementation supplies to
// handle inbound protocol methods (spec.md §4.6 Client-side façade): the
// effectful fs/terminal/permission operations the Agent invokes, plus the
// session/update notification stream.
type ClientHandlers struct {
	OnSessionUpdate       func(ctx context.Context, p SessionUpdateParams)
	OnRequestPermission   func(ctx context.Context, p RequestPermissionParams) (RequestPermissionResult, error)
	OnReadTextFile        func(ctx context.Context, p FSReadTextFileParams) (FSReadTextFileResult, error)
	OnWriteTextFile       func(ctx context.Context, p FSWriteTextFileParams) (FSWriteTextFileResult, error)
	OnCreateTerminal      func(ctx context.Context, p TerminalCreateParams) (TerminalCreateResult, error)
	OnTerminalOutput      func(ctx context.Context, p TerminalOutputParams) (TerminalOutputResult, error)
	OnWaitForTerminalExit func(ctx context.Context, p TerminalWaitForExitParams) (TerminalWaitForExitResult, error)
	OnKillTerminal        func(ctx context.Context, p TerminalKillParams) (TerminalKillResult, error)
	OnReleaseTerminal     func(ctx context.Context, p TerminalReleaseParams) (TerminalReleaseResult, error)
}

// ClientConn is the Client-side protocol façade (spec.md §4.6): it exposes
// the typed outbound calls a Client issues to the Agent (initialize,
// session lifecycle, prompts) and routes the inbound methods the Agent
// invokes back (fs, terminal, permission, session updates).
type ClientConn struct {
	conn *Conn
}

// NewClientConn builds a ClientConn over an already-open transport.
func NewClientConn(t *Transport, handlers ClientHandlers) *ClientConn {
	cc := &ClientConn{conn: newConn(t)}
	cc.wire(handlers)
	return cc
}

// Start begins reading from the transport.
func (cc *ClientConn) Start() { cc.conn.Start() }

// Close shuts down the underlying transport.
func (cc *ClientConn) Close() error { return cc.conn.Close() }

// Context is cancelled when the connection ends.
func (cc *ClientConn) Context() context.Context { return cc.conn.Context() }

// StderrCh forwards out-of-band stderr lines from a subprocess transport, if
// any (spec.md §6: "stderr is out-of-band").
func (cc *ClientConn) StderrCh() <-chan string { return cc.conn.transport.StderrCh() }

func (cc *ClientConn) wire(h ClientHandlers) {
	cc.conn.handleNotification(MethodSessionUpdate, func(ctx context.Context, raw json.RawMessage) error {
		p, err := unmarshalParams[SessionUpdateParams](raw)
		if err != nil {
			return err
		}
		if h.OnSessionUpdate != nil {
			h.OnSessionUpdate(ctx, p)
		}
		return nil
	})

	if h.OnRequestPermission != nil {
		cc.conn.handleRequest(MethodSessionRequestPerm, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[RequestPermissionParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnRequestPermission(ctx, p)
		})
	}

	if h.OnReadTextFile != nil {
		cc.conn.handleRequest(MethodFSReadTextFile, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[FSReadTextFileParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnReadTextFile(ctx, p)
		})
	}

	if h.OnWriteTextFile != nil {
		cc.conn.handleRequest(MethodFSWriteTextFile, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[FSWriteTextFileParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnWriteTextFile(ctx, p)
		})
	}

	if h.OnCreateTerminal != nil {
		cc.conn.handleRequest(MethodTerminalCreate, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[TerminalCreateParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnCreateTerminal(ctx, p)
		})
	}

	if h.OnTerminalOutput != nil {
		cc.conn.handleRequest(MethodTerminalOutput, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[TerminalOutputParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnTerminalOutput(ctx, p)
		})
	}

	if h.OnWaitForTerminalExit != nil {
		cc.conn.handleRequest(MethodTerminalWaitForExit, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[TerminalWaitForExitParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnWaitForTerminalExit(ctx, p)
		})
	}

	if h.OnKillTerminal != nil {
		cc.conn.handleRequest(MethodTerminalKill, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[TerminalKillParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnKillTerminal(ctx, p)
		})
	}

	if h.OnReleaseTerminal != nil {
		cc.conn.handleRequest(MethodTerminalRelease, func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := unmarshalParams[TerminalReleaseParams](raw)
			if err != nil {
				return nil, err
			}
			return h.OnReleaseTerminal(ctx, p)
		})
	}
}

// Initialize performs the initialize handshake. Callers MUST do this before
// any other method (spec.md §4.6: "until initialize has completed, neither
// side may send any other request").
func (cc *ClientConn) Initialize(ctx context.Context, p InitializeParams) (InitializeResult, error) {
	var res InitializeResult
	err := cc.conn.call(ctx, MethodInitialize, p, &res)
	if err == nil && res.AuthMethods == nil {
		res.AuthMethods = []AuthMethod{}
	}
	return res, err
}

// Authenticate performs the optional authenticate step.
func (cc *ClientConn) Authenticate(ctx context.Context, p AuthenticateParams) (AuthenticateResult, error) {
	var res AuthenticateResult
	err := cc.conn.call(ctx, MethodAuthenticate, p, &res)
	return res, err
}

// NewSession creates a session on the agent.
func (cc *ClientConn) NewSession(ctx context.Context, p SessionNewParams) (SessionNewResult, error) {
	var res SessionNewResult
	err := cc.conn.call(ctx, MethodSessionNew, p, &res)
	return res, err
}

// LoadSession resumes a previously created session. The agent answers
// -32601 if it did not advertise loadSession=true.
func (cc *ClientConn) LoadSession(ctx context.Context, p SessionLoadParams) (SessionLoadResult, error) {
	var res SessionLoadResult
	err := cc.conn.call(ctx, MethodSessionLoad, p, &res)
	return res, err
}

// SetMode switches a session's mode.
func (cc *ClientConn) SetMode(ctx context.Context, p SessionSetModeParams) (SessionSetModeResult, error) {
	var res SessionSetModeResult
	err := cc.conn.call(ctx, MethodSessionSetMode, p, &res)
	return res, err
}

// SetModel switches a session's model. Unstable (spec.md §4.6).
func (cc *ClientConn) SetModel(ctx context.Context, p SessionSetModelParams) (SessionSetModelResult, error) {
	var res SessionSetModelResult
	err := cc.conn.call(ctx, MethodSessionSetModel, p, &res)
	return res, err
}

// Prompt runs a prompt turn (spec.md §4.6 Turn and cancellation coupling).
// If ctx is cancelled before the agent's response arrives, Prompt sends a
// session/cancel notification for p.SessionID and keeps waiting for the
// real response rather than synthesizing a local result — the response
// belongs to the agent, which observes the cancellation and is expected to
// return PromptResponse{stopReason:"cancelled"} promptly.
func (cc *ClientConn) Prompt(ctx context.Context, p SessionPromptParams) (SessionPromptResult, error) {
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = cc.conn.notify(MethodSessionCancel, SessionCancelParams{SessionID: p.SessionID})
		case <-watchDone:
		}
	}()

	var res SessionPromptResult
	err := cc.conn.call(context.Background(), MethodSessionPrompt, p, &res)
	close(watchDone)
	return res, err
}

// Cancel sends a session/cancel notification directly, outside of an
// in-flight Prompt call's own cancellation watch (for callers that want to
// cancel a turn without having structured the original Prompt call around a
// context).
func (cc *ClientConn) Cancel(sessionID string) error {
	return cc.conn.notify(MethodSessionCancel, SessionCancelParams{SessionID: sessionID})
}
