// Package acp implements the Agent Client Protocol (ACP): a bidirectional
// JSON-RPC 2.0 engine plus the protocol state machine layered on top of it
// (initialize, authenticate, session lifecycle, prompt turns with streamed
// updates and in-turn peer requests). It is spoken over a byte-oriented
// duplex transport, typically a child process's stdin/stdout, between a
// Client (an editor/IDE host) and an Agent (an AI coding assistant).
package acp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the protocol version this module implements.
const ProtocolVersion = 1

// JSONRPCMessage represents a JSON-RPC 2.0 message. It can be a request,
// response, or notification depending on which fields are populated.
//
//   - A request has Method and ID, plus optional Params.
//   - A notification has Method but no ID, plus optional Params.
//   - A response has ID and exactly one of Result or Error.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// IsRequest reports whether the message is a request (method and ID set).
func (m *JSONRPCMessage) IsRequest() bool {
	return m.Method != "" && m.ID != nil
}

// IsNotification reports whether the message is a notification (method set,
// no ID).
func (m *JSONRPCMessage) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// IsResponse reports whether the message is a response (ID set, no method).
func (m *JSONRPCMessage) IsResponse() bool {
	return m.Method == "" && m.ID != nil
}

// idKey returns the string-form of the encoded ID, used as the correlation
// table key so that numeric and string IDs never collide or get confused.
func (m *JSONRPCMessage) idKey() (string, bool) {
	if m.ID == nil {
		return "", false
	}
	return string(*m.ID), true
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("acp: jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC 2.0 error codes (spec.md §3).
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// Domain error codes in the -32000 range.
const (
	ErrCodeAuthRequired = -32000
)

func newRawID(n int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%d", n))
}

func errorData(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
