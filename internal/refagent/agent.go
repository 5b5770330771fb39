// Package refagent is acpkit's reference Agent implementation: a
// deterministic, LLM-free agent that turns a prompt into a scripted
// session/update stream (an agent_message_chunk, one execute tool call run
// as a real subprocess, and a closing plan), suitable for exercising a
// Client implementation end-to-end without any external model dependency.
package refagent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"acpkit/acp"
	"acpkit/internal/agentsession"
	"acpkit/internal/logging"

	"github.com/google/uuid"
)

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Agent is acpkit's reference Agent. It answers the full acp.AgentHandlers
// surface against a SQLite-backed agentsession.Store.
type Agent struct {
	store *agentsession.Store
	conn  *acp.AgentConn
	log   *logging.Logger
}

// NewAgent builds a reference Agent over store. Call SetConn once the
// surrounding acp.AgentConn exists, since the agent needs it to stream
// session/update notifications and request permissions.
func NewAgent(store *agentsession.Store) *Agent {
	return &Agent{store: store, log: logging.Default}
}

// SetConn wires the AgentConn the agent uses for outbound calls. Must be
// called before any inbound handler fires.
func (a *Agent) SetConn(conn *acp.AgentConn) { a.conn = conn }

// Handlers returns the acp.AgentHandlers bound to this agent's methods.
func (a *Agent) Handlers() acp.AgentHandlers {
	return acp.AgentHandlers{
		OnInitialize:      a.onInitialize,
		OnAuthenticate:    a.onAuthenticate,
		OnSessionNew:      a.onSessionNew,
		OnSessionLoad:     a.onSessionLoad,
		OnSessionPrompt:   a.onSessionPrompt,
		OnSessionSetMode:  a.onSessionSetMode,
		OnSessionSetModel: a.onSessionSetModel,
		OnSessionCancel:   a.onSessionCancel,
	}
}

func (a *Agent) onInitialize(ctx context.Context, p acp.InitializeParams) (acp.InitializeResult, error) {
	return acp.InitializeResult{
		ProtocolVersion:  acp.ProtocolVersion,
		AgentCapabilities: acp.AgentCapabilities{
			LoadSession: true,
		},
		AuthMethods: []acp.AuthMethod{},
	}, nil
}

// onAuthenticate is a no-op: the reference agent requires no authentication,
// so it never advertises an auth method and never expects this to be called.
func (a *Agent) onAuthenticate(ctx context.Context, p acp.AuthenticateParams) (acp.AuthenticateResult, error) {
	return acp.AuthenticateResult{}, nil
}

// onSessionSetMode and onSessionSetModel are no-ops: the reference agent
// advertises no alternative modes or models, so there is nothing to switch
// to. They still answer {} rather than falling through to -32601, since the
// client only calls these after seeing them listed in session/new's result.
func (a *Agent) onSessionSetMode(ctx context.Context, p acp.SessionSetModeParams) (acp.SessionSetModeResult, error) {
	return acp.SessionSetModeResult{}, nil
}

func (a *Agent) onSessionSetModel(ctx context.Context, p acp.SessionSetModelParams) (acp.SessionSetModelResult, error) {
	return acp.SessionSetModelResult{}, nil
}

func (a *Agent) onSessionNew(ctx context.Context, p acp.SessionNewParams) (acp.SessionNewResult, error) {
	id := uuid.New().String()
	if err := a.store.Create(ctx, id, p.CWD); err != nil {
		return acp.SessionNewResult{}, fmt.Errorf("refagent: create session: %w", err)
	}
	for _, srv := range p.MCPServers {
		a.log.Info("refagent: session %s: MCP server %q configured (not launched)", id, srv.Name)
	}
	return acp.SessionNewResult{SessionID: id}, nil
}

// onSessionLoad replays a previously stored session's history back to the
// client as a sequence of session/update notifications (spec.md §4.6
// session/load): first every message in recorded order, then every tool
// call in recorded order, each as a tool_call followed by a tool_call_update
// carrying its stored status, so a tool_call_update always follows the
// tool_call that introduced its toolCallId. Messages and tool calls are not
// interleaved by the time they were recorded.
func (a *Agent) onSessionLoad(ctx context.Context, p acp.SessionLoadParams) (acp.SessionLoadResult, error) {
	rec, err := a.store.Get(ctx, p.SessionID)
	if err != nil {
		return acp.SessionLoadResult{}, fmt.Errorf("refagent: load session %s: %w", p.SessionID, err)
	}
	if rec == nil {
		return acp.SessionLoadResult{}, &acp.JSONRPCError{
			Code:    acp.ErrCodeInvalidParams,
			Message: "unknown session",
		}
	}
	for _, srv := range p.MCPServers {
		a.log.Info("refagent: session %s: MCP server %q configured (not launched)", p.SessionID, srv.Name)
	}

	for _, msg := range rec.Messages {
		var update acp.SessionUpdate
		switch msg.Role {
		case "user":
			update = acp.NewUserMessageChunk(acp.NewTextBlock(msg.Content))
		default:
			update = acp.NewAgentMessageChunk(acp.NewTextBlock(msg.Content))
		}
		if err := a.conn.SessionUpdate(p.SessionID, update); err != nil {
			return acp.SessionLoadResult{}, fmt.Errorf("refagent: replay message: %w", err)
		}
	}

	for _, tc := range rec.ToolCalls {
		full := acp.ToolCall{
			ToolCallID: tc.ToolCallID,
			Title:      tc.Title,
			Kind:       acp.ToolKind(tc.Kind),
			Status:     acp.ToolCallStatusPending,
		}
		if err := a.conn.SessionUpdate(p.SessionID, acp.NewToolCallFull(full)); err != nil {
			return acp.SessionLoadResult{}, fmt.Errorf("refagent: replay tool call: %w", err)
		}

		status := acp.ToolCallStatus(tc.Status)
		content := []acp.ToolCallContent{{Type: acp.ToolCallContentTypeContent, Content: textBlockPtr(tc.Content)}}
		update := acp.ToolCallUpdate{ToolCallID: tc.ToolCallID, Status: &status, Content: content}
		if err := a.conn.SessionUpdate(p.SessionID, acp.NewToolCallUpdate(update)); err != nil {
			return acp.SessionLoadResult{}, fmt.Errorf("refagent: replay tool call update: %w", err)
		}
	}

	return acp.SessionLoadResult{}, nil
}

func textBlockPtr(text string) *acp.ContentBlock {
	b := acp.NewTextBlock(text)
	return &b
}

// onSessionPrompt runs the reference agent's scripted turn: it narrates
// receipt of the prompt, asks the client for permission to run a command
// derived from the prompt text, executes it as a subprocess if granted, and
// closes with a one-step plan. ctx is cancelled the moment a session/cancel
// notification arrives for this session (acp.AgentConn.wire derives it from
// the connection's turnState), and every outbound call made with it returns
// promptly once that happens.
func (a *Agent) onSessionPrompt(ctx context.Context, p acp.SessionPromptParams) (acp.SessionPromptResult, error) {
	// The reference agent never advertises promptCapabilities.embeddedContext
	// (onInitialize leaves it false), so an embedded `resource` block is a
	// capability violation rather than content to narrate (spec.md §4.6
	// Capability gating).
	for _, b := range p.Prompt {
		if b.Type == acp.ContentTypeResource {
			return acp.SessionPromptResult{}, &acp.JSONRPCError{
				Code:    acp.ErrCodeInvalidParams,
				Message: "embedded context not supported",
				Data:    mustJSON(map[string]string{"sessionId": p.SessionID}),
			}
		}
	}

	text := extractText(p.Prompt)
	if err := a.store.AddMessage(ctx, p.SessionID, agentsession.Message{Role: "user", Content: text}); err != nil {
		return acp.SessionPromptResult{}, fmt.Errorf("refagent: record prompt: %w", err)
	}

	chunk := fmt.Sprintf("Received prompt: %s", text)
	if err := a.conn.SessionUpdate(p.SessionID, acp.NewAgentMessageChunk(acp.NewTextBlock(chunk))); err != nil {
		return acp.SessionPromptResult{}, fmt.Errorf("refagent: send message chunk: %w", err)
	}
	_ = a.store.AddMessage(ctx, p.SessionID, agentsession.Message{Role: "agent", Content: chunk})

	command, args := commandFor(text)
	toolCallID := uuid.New().String()
	title := fmt.Sprintf("Run `%s`", strings.Join(append([]string{command}, args...), " "))

	if err := a.store.AddToolCall(ctx, p.SessionID, agentsession.ToolCallRecord{
		ToolCallID: toolCallID, Title: title, Kind: string(acp.ToolKindExecute), Status: "pending",
	}); err != nil {
		return acp.SessionPromptResult{}, fmt.Errorf("refagent: record tool call: %w", err)
	}

	if err := a.conn.SessionUpdate(p.SessionID, acp.NewToolCallFull(acp.ToolCall{
		ToolCallID: toolCallID, Title: title, Kind: acp.ToolKindExecute, Status: acp.ToolCallStatusPending,
	})); err != nil {
		return acp.SessionPromptResult{}, fmt.Errorf("refagent: stream tool call: %w", err)
	}

	outcome, err := a.conn.RequestPermission(ctx, acp.RequestPermissionParams{
		SessionID: p.SessionID,
		ToolCall:  acp.ToolCallUpdate{ToolCallID: toolCallID},
		Options: []acp.PermissionOption{
			{OptionID: "allow", Name: "Allow", Kind: acp.PermissionOptionAllowOnce},
			{OptionID: "reject", Name: "Reject", Kind: acp.PermissionOptionRejectOnce},
		},
	})
	if err != nil {
		// ctx was cancelled by an in-flight session/cancel notification, or
		// the connection went away. Either way the turn ends as cancelled.
		a.failToolCall(p.SessionID, toolCallID, "turn cancelled before permission was granted")
		return acp.SessionPromptResult{StopReason: acp.StopReasonCancelled}, nil
	}
	if outcome.Outcome.Outcome == acp.PermissionOutcomeCancelled || outcome.Outcome.OptionID != "allow" {
		a.failToolCall(p.SessionID, toolCallID, "permission denied")
		return acp.SessionPromptResult{StopReason: acp.StopReasonCancelled}, nil
	}

	output, runErr := runCommand(ctx, command, args)
	status := acp.ToolCallStatusCompleted
	resultText := output
	if runErr != nil {
		status = acp.ToolCallStatusFailed
		resultText = runErr.Error()
	}

	_ = a.store.UpdateToolCall(ctx, p.SessionID, toolCallID, string(status), resultText)
	if err := a.conn.SessionUpdate(p.SessionID, acp.NewToolCallUpdate(acp.ToolCallUpdate{
		ToolCallID: toolCallID,
		Status:     &status,
		Content:    []acp.ToolCallContent{{Type: acp.ToolCallContentTypeContent, Content: textBlockPtr(resultText)}},
	})); err != nil {
		return acp.SessionPromptResult{}, fmt.Errorf("refagent: stream tool call update: %w", err)
	}

	plan := []acp.PlanEntry{{Content: title, Priority: acp.PlanPriorityMedium, Status: acp.PlanStatusCompleted}}
	if err := a.conn.SessionUpdate(p.SessionID, acp.NewPlanUpdate(plan)); err != nil {
		return acp.SessionPromptResult{}, fmt.Errorf("refagent: stream plan: %w", err)
	}

	return acp.SessionPromptResult{StopReason: acp.StopReasonEndTurn}, nil
}

func (a *Agent) failToolCall(sessionID, toolCallID, reason string) {
	status := acp.ToolCallStatusFailed
	_ = a.store.UpdateToolCall(context.Background(), sessionID, toolCallID, string(status), reason)
	_ = a.conn.SessionUpdate(sessionID, acp.NewToolCallUpdate(acp.ToolCallUpdate{
		ToolCallID: toolCallID,
		Status:     &status,
		Content:    []acp.ToolCallContent{{Type: acp.ToolCallContentTypeContent, Content: textBlockPtr(reason)}},
	}))
}

// onSessionCancel is bookkeeping only: the engine has already cancelled the
// turn's context by the time this fires, which is what actually unblocks
// onSessionPrompt.
func (a *Agent) onSessionCancel(ctx context.Context, p acp.SessionCancelParams) {
	a.log.Debug("refagent: session %s cancelled", p.SessionID)
}

func extractText(blocks []acp.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == acp.ContentTypeText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// commandFor derives a shell command to run from the prompt text. The
// reference agent is deliberately simple: it never executes the prompt text
// itself as a shell command (that would make the "reference" agent a
// generic command runner); it always runs `echo` over the prompt so the
// demonstrated tool-call loop is safe to exercise against any input.
func commandFor(text string) (string, []string) {
	return "echo", []string{text}
}

func runCommand(ctx context.Context, command string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("refagent: run %s: %w", command, err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}
