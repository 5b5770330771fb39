package acp

import (
	"encoding/json"
	"fmt"
)

// ToolKind enumerates the kinds of action a tool call may represent
// (spec.md §3).
type ToolKind string

const (
	ToolKindRead       ToolKind = "read"
	ToolKindEdit       ToolKind = "edit"
	ToolKindDelete     ToolKind = "delete"
	ToolKindMove       ToolKind = "move"
	ToolKindSearch     ToolKind = "search"
	ToolKindExecute    ToolKind = "execute"
	ToolKindThink      ToolKind = "think"
	ToolKindFetch      ToolKind = "fetch"
	ToolKindSwitchMode ToolKind = "switch_mode"
	ToolKindOther      ToolKind = "other"
)

// ToolCallStatus enumerates the lifecycle states of a tool call.
type ToolCallStatus string

const (
	ToolCallStatusPending    ToolCallStatus = "pending"
	ToolCallStatusInProgress ToolCallStatus = "in_progress"
	ToolCallStatusCompleted  ToolCallStatus = "completed"
	ToolCallStatusFailed     ToolCallStatus = "failed"
)

// ToolCallLocation is one file (and optional line) a tool call touches.
type ToolCallLocation struct {
	Path string `json:"path"`
	Line *int   `json:"line,omitempty"`
}

// ToolCallContent is the tagged union of content a tool call streams,
// discriminated on "type" ∈ {content, diff, terminal} (spec.md §3).
type ToolCallContent struct {
	Type string `json:"type"`

	// content
	Content *ContentBlock `json:"content,omitempty"`

	// diff
	Path    string `json:"path,omitempty"`
	OldText string `json:"oldText,omitempty"`
	NewText string `json:"newText,omitempty"`

	// terminal
	TerminalID string `json:"terminalId,omitempty"`
}

// ToolCallContent type discriminator values.
const (
	ToolCallContentTypeContent  = "content"
	ToolCallContentTypeDiff     = "diff"
	ToolCallContentTypeTerminal = "terminal"
)

// ToolCall is the full record of an agent-initiated action (spec.md §3).
type ToolCall struct {
	ToolCallID string            `json:"toolCallId"`
	Title      string            `json:"title"`
	Kind       ToolKind          `json:"kind"`
	Status     ToolCallStatus    `json:"status"`
	Content    []ToolCallContent `json:"content,omitempty"`
	Locations  []ToolCallLocation `json:"locations,omitempty"`
	RawInput   json.RawMessage   `json:"rawInput,omitempty"`
	RawOutput  json.RawMessage   `json:"rawOutput,omitempty"`
}

// ToolCallUpdate is an incremental update to a previously introduced
// ToolCall (spec.md invariant 5: ToolCallID must name a tool call already
// introduced by a `tool_call` update within the session). Every field but
// ToolCallID is optional; a nil pointer/slice means "unchanged".
type ToolCallUpdate struct {
	ToolCallID string             `json:"toolCallId"`
	Title      *string            `json:"title,omitempty"`
	Kind       *ToolKind          `json:"kind,omitempty"`
	Status     *ToolCallStatus    `json:"status,omitempty"`
	Content    []ToolCallContent  `json:"content,omitempty"`
	Locations  []ToolCallLocation `json:"locations,omitempty"`
	RawInput   json.RawMessage    `json:"rawInput,omitempty"`
	RawOutput  json.RawMessage    `json:"rawOutput,omitempty"`
}

// PlanEntryPriority enumerates plan entry priorities.
type PlanEntryPriority string

const (
	PlanPriorityHigh   PlanEntryPriority = "high"
	PlanPriorityMedium PlanEntryPriority = "medium"
	PlanPriorityLow    PlanEntryPriority = "low"
)

// PlanEntryStatus enumerates plan entry lifecycle states.
type PlanEntryStatus string

const (
	PlanStatusPending    PlanEntryStatus = "pending"
	PlanStatusInProgress PlanEntryStatus = "in_progress"
	PlanStatusCompleted  PlanEntryStatus = "completed"
)

// PlanEntry is one step of an agent's plan.
type PlanEntry struct {
	Content  string            `json:"content"`
	Priority PlanEntryPriority `json:"priority"`
	Status   PlanEntryStatus   `json:"status"`
}

// AvailableCommandInput describes the input shape of a command the agent
// currently accepts, if any.
type AvailableCommandInput struct {
	Hint string `json:"hint,omitempty"`
}

// AvailableCommand is one entry of an `available_commands_update` session
// update.
type AvailableCommand struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Input       *AvailableCommandInput `json:"input,omitempty"`
}

// SessionUpdate is the tagged union streamed during a prompt turn (spec.md
// §3), discriminated on "sessionUpdate". Build one via the NewXxxUpdate
// helpers rather than populating fields by hand.
type SessionUpdate struct {
	Kind string

	Content           *ContentBlock      // user_message_chunk, agent_message_chunk, agent_thought_chunk
	ToolCall          *ToolCall          // tool_call
	ToolCallUpdate    *ToolCallUpdate    // tool_call_update
	Entries           []PlanEntry        // plan
	AvailableCommands []AvailableCommand // available_commands_update
	CurrentModeID     string             // current_mode_update
}

// Session update discriminator values.
const (
	SessionUpdateUserMessageChunk        = "user_message_chunk"
	SessionUpdateAgentMessageChunk       = "agent_message_chunk"
	SessionUpdateAgentThoughtChunk       = "agent_thought_chunk"
	SessionUpdateToolCall                = "tool_call"
	SessionUpdateToolCallUpdate          = "tool_call_update"
	SessionUpdatePlan                    = "plan"
	SessionUpdateAvailableCommandsUpdate = "available_commands_update"
	SessionUpdateCurrentModeUpdate       = "current_mode_update"
)

// NewAgentMessageChunk builds an agent_message_chunk session update.
func NewAgentMessageChunk(content ContentBlock) SessionUpdate {
	return SessionUpdate{Kind: SessionUpdateAgentMessageChunk, Content: &content}
}

// NewUserMessageChunk builds a user_message_chunk session update.
func NewUserMessageChunk(content ContentBlock) SessionUpdate {
	return SessionUpdate{Kind: SessionUpdateUserMessageChunk, Content: &content}
}

// NewAgentThoughtChunk builds an agent_thought_chunk session update.
func NewAgentThoughtChunk(content ContentBlock) SessionUpdate {
	return SessionUpdate{Kind: SessionUpdateAgentThoughtChunk, Content: &content}
}

// NewToolCallFull builds a tool_call session update (the full record,
// introducing toolCallId for later tool_call_update references).
func NewToolCallFull(tc ToolCall) SessionUpdate {
	return SessionUpdate{Kind: SessionUpdateToolCall, ToolCall: &tc}
}

// NewToolCallUpdate builds a tool_call_update session update.
func NewToolCallUpdate(u ToolCallUpdate) SessionUpdate {
	return SessionUpdate{Kind: SessionUpdateToolCallUpdate, ToolCallUpdate: &u}
}

// NewPlanUpdate builds a plan session update.
func NewPlanUpdate(entries []PlanEntry) SessionUpdate {
	return SessionUpdate{Kind: SessionUpdatePlan, Entries: entries}
}

// NewAvailableCommandsUpdate builds an available_commands_update session
// update.
func NewAvailableCommandsUpdate(cmds []AvailableCommand) SessionUpdate {
	return SessionUpdate{Kind: SessionUpdateAvailableCommandsUpdate, AvailableCommands: cmds}
}

// NewCurrentModeUpdate builds a current_mode_update session update.
func NewCurrentModeUpdate(modeID string) SessionUpdate {
	return SessionUpdate{Kind: SessionUpdateCurrentModeUpdate, CurrentModeID: modeID}
}

// MarshalJSON encodes SessionUpdate according to its Kind discriminator.
// The wire shape overloads "content" across the three chunk kinds and gives
// every other discriminator its own field, exactly as the teacher's
// SessionUpdateParams custom marshaling resolves the same ambiguity.
func (u SessionUpdate) MarshalJSON() ([]byte, error) {
	switch u.Kind {
	case SessionUpdateUserMessageChunk, SessionUpdateAgentMessageChunk, SessionUpdateAgentThoughtChunk:
		if u.Content == nil {
			return nil, fmt.Errorf("acp: session update %q requires Content", u.Kind)
		}
		return json.Marshal(struct {
			SessionUpdate string       `json:"sessionUpdate"`
			Content       ContentBlock `json:"content"`
		}{u.Kind, *u.Content})

	case SessionUpdateToolCall:
		if u.ToolCall == nil {
			return nil, fmt.Errorf("acp: session update %q requires ToolCall", u.Kind)
		}
		type wire struct {
			SessionUpdate string `json:"sessionUpdate"`
			ToolCall
		}
		return json.Marshal(wire{u.Kind, *u.ToolCall})

	case SessionUpdateToolCallUpdate:
		if u.ToolCallUpdate == nil {
			return nil, fmt.Errorf("acp: session update %q requires ToolCallUpdate", u.Kind)
		}
		type wire struct {
			SessionUpdate string `json:"sessionUpdate"`
			ToolCallUpdate
		}
		return json.Marshal(wire{u.Kind, *u.ToolCallUpdate})

	case SessionUpdatePlan:
		return json.Marshal(struct {
			SessionUpdate string      `json:"sessionUpdate"`
			Entries       []PlanEntry `json:"entries"`
		}{u.Kind, u.Entries})

	case SessionUpdateAvailableCommandsUpdate:
		return json.Marshal(struct {
			SessionUpdate     string             `json:"sessionUpdate"`
			AvailableCommands []AvailableCommand `json:"availableCommands"`
		}{u.Kind, u.AvailableCommands})

	case SessionUpdateCurrentModeUpdate:
		return json.Marshal(struct {
			SessionUpdate string `json:"sessionUpdate"`
			CurrentModeID string `json:"currentModeId"`
		}{u.Kind, u.CurrentModeID})

	default:
		return nil, fmt.Errorf("acp: session update has unknown sessionUpdate %q", u.Kind)
	}
}

// sessionUpdateEnvelope is used only to sniff the discriminator before
// decoding into the concrete shape; unknown fields are ignored (spec.md
// §9).
type sessionUpdateEnvelope struct {
	SessionUpdate string `json:"sessionUpdate"`
}

// UnmarshalJSON decodes SessionUpdate by first reading its discriminator,
// then unmarshaling into the matching concrete shape.
func (u *SessionUpdate) UnmarshalJSON(data []byte) error {
	var env sessionUpdateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	switch env.SessionUpdate {
	case SessionUpdateUserMessageChunk, SessionUpdateAgentMessageChunk, SessionUpdateAgentThoughtChunk:
		var w struct {
			Content ContentBlock `json:"content"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*u = SessionUpdate{Kind: env.SessionUpdate, Content: &w.Content}

	case SessionUpdateToolCall:
		var tc ToolCall
		if err := json.Unmarshal(data, &tc); err != nil {
			return err
		}
		*u = SessionUpdate{Kind: env.SessionUpdate, ToolCall: &tc}

	case SessionUpdateToolCallUpdate:
		var tcu ToolCallUpdate
		if err := json.Unmarshal(data, &tcu); err != nil {
			return err
		}
		*u = SessionUpdate{Kind: env.SessionUpdate, ToolCallUpdate: &tcu}

	case SessionUpdatePlan:
		var w struct {
			Entries []PlanEntry `json:"entries"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*u = SessionUpdate{Kind: env.SessionUpdate, Entries: w.Entries}

	case SessionUpdateAvailableCommandsUpdate:
		var w struct {
			AvailableCommands []AvailableCommand `json:"availableCommands"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*u = SessionUpdate{Kind: env.SessionUpdate, AvailableCommands: w.AvailableCommands}

	case SessionUpdateCurrentModeUpdate:
		var w struct {
			CurrentModeID string `json:"currentModeId"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*u = SessionUpdate{Kind: env.SessionUpdate, CurrentModeID: w.CurrentModeID}

	default:
		return fmt.Errorf("acp: session update has unknown sessionUpdate %q", env.SessionUpdate)
	}
	return nil
}
