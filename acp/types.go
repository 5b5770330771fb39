package acp

// Method name constants (spec.md §4.6, §6). These are the exact wire
// strings; handler registries and typed callers both key off these.
const (
	MethodInitialize     = "initialize"
	MethodAuthenticate   = "authenticate"
	MethodSessionNew     = "session/new"
	MethodSessionLoad    = "session/load"
	MethodSessionPrompt  = "session/prompt"
	MethodSessionCancel  = "session/cancel"
	MethodSessionSetMode = "session/set_mode"
	// MethodSessionSetModel is unstable (spec.md §4.6).
	MethodSessionSetModel = "session/set_model"

	MethodSessionUpdate        = "session/update"
	MethodSessionRequestPerm   = "session/request_permission"
	MethodFSReadTextFile       = "fs/read_text_file"
	MethodFSWriteTextFile      = "fs/write_text_file"
	MethodTerminalCreate       = "terminal/create"
	MethodTerminalOutput       = "terminal/output"
	MethodTerminalRelease      = "terminal/release"
	MethodTerminalWaitForExit  = "terminal/wait_for_exit"
	MethodTerminalKill         = "terminal/kill"
)

// StopReason is the terminal state of a prompt turn (spec.md §4.6).
type StopReason string

const (
	StopReasonEndTurn           StopReason = "end_turn"
	StopReasonMaxTokens         StopReason = "max_tokens"
	StopReasonMaxTurnRequests   StopReason = "max_turn_requests"
	StopReasonRefusal           StopReason = "refusal"
	StopReasonCancelled         StopReason = "cancelled"
)

// FSCapabilities describes the client's file-system sub-capabilities.
type FSCapabilities struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

// ClientCapabilities is exchanged at initialize (spec.md §3). Absent
// sub-records default to all-false.
type ClientCapabilities struct {
	FS       FSCapabilities `json:"fs"`
	Terminal bool           `json:"terminal"`
}

// DefaultClientCapabilities returns the all-false default materialization
// (spec.md §9 Default materialization).
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{}
}

// MCPCapabilities describes which MCP transports the agent supports.
type MCPCapabilities struct {
	HTTP bool `json:"http"`
	SSE  bool `json:"sse"`
}

// PromptCapabilities describes which content-block kinds a prompt may
// contain beyond plain text.
type PromptCapabilities struct {
	Image           bool `json:"image"`
	Audio           bool `json:"audio"`
	EmbeddedContext bool `json:"embeddedContext"`
}

// AgentCapabilities is exchanged at initialize (spec.md §3).
type AgentCapabilities struct {
	LoadSession        bool               `json:"loadSession"`
	MCPCapabilities    MCPCapabilities    `json:"mcpCapabilities"`
	PromptCapabilities PromptCapabilities `json:"promptCapabilities"`
}

// DefaultAgentCapabilities returns the all-false default materialization.
func DefaultAgentCapabilities() AgentCapabilities {
	return AgentCapabilities{}
}

// AuthMethod describes one way a client may authenticate with an agent.
type AuthMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// InitializeParams is the request body of `initialize`.
type InitializeParams struct {
	ProtocolVersion   int                `json:"protocolVersion"`
	ClientCapabilities ClientCapabilities `json:"clientCapabilities"`
}

// InitializeResult is the response body of `initialize`. AuthMethods MUST be
// materialized as an empty (non-nil) slice when absent or null on decode
// (spec.md §9).
type InitializeResult struct {
	ProtocolVersion   int                `json:"protocolVersion"`
	AgentCapabilities AgentCapabilities  `json:"agentCapabilities"`
	AuthMethods       []AuthMethod       `json:"authMethods"`
}

// AuthenticateParams is the request body of `authenticate`.
type AuthenticateParams struct {
	MethodID string `json:"methodId"`
}

// AuthenticateResult is the (empty) response body of `authenticate`.
type AuthenticateResult struct{}

// MCPServer is an opaque MCP server configuration carried through
// session/new and session/load (spec.md §1 treats MCP launching as an
// external collaborator; acpkit's reference agent only logs these).
type MCPServer struct {
	Name    string            `json:"name"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     []EnvVariable     `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers []HTTPHeader      `json:"headers,omitempty"`
}

// EnvVariable is a single environment variable entry for an MCP server.
type EnvVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HTTPHeader is a single HTTP header entry for an MCP server reached over
// HTTP/SSE.
type HTTPHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionMode is one entry of the optional mode list a session may expose.
type SessionMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionModelInfo is one entry of the optional model list a session may
// expose.
type SessionModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionNewParams is the request body of `session/new`.
type SessionNewParams struct {
	CWD        string      `json:"cwd"`
	MCPServers []MCPServer `json:"mcpServers"`
}

// SessionNewResult is the response body of `session/new`.
type SessionNewResult struct {
	SessionID string             `json:"sessionId"`
	Modes     []SessionMode      `json:"modes,omitempty"`
	Models    []SessionModelInfo `json:"models,omitempty"`
}

// SessionLoadParams is the request body of `session/load`.
type SessionLoadParams struct {
	SessionID  string      `json:"sessionId"`
	CWD        string      `json:"cwd"`
	MCPServers []MCPServer `json:"mcpServers"`
}

// SessionLoadResult is the response body of `session/load`.
type SessionLoadResult struct {
	Modes  []SessionMode      `json:"modes,omitempty"`
	Models []SessionModelInfo `json:"models,omitempty"`
}

// SessionSetModeParams is the request body of `session/set_mode`.
type SessionSetModeParams struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// SessionSetModeResult is the (empty) response body of `session/set_mode`.
type SessionSetModeResult struct{}

// SessionSetModelParams is the request body of the unstable
// `session/set_model`.
type SessionSetModelParams struct {
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
}

// SessionSetModelResult is the (empty) response body of `session/set_model`.
type SessionSetModelResult struct{}

// SessionPromptParams is the request body of `session/prompt`.
type SessionPromptParams struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// SessionPromptResult is the response body of `session/prompt`.
type SessionPromptResult struct {
	StopReason StopReason `json:"stopReason"`
}

// SessionCancelParams is the body of the `session/cancel` notification.
type SessionCancelParams struct {
	SessionID string `json:"sessionId"`
}

// SessionUpdateParams is the body of the `session/update` notification.
type SessionUpdateParams struct {
	SessionID string        `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
}
