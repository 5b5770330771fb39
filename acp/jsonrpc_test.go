package acp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageClassification(t *testing.T) {
	id := json.RawMessage("1")

	req := &JSONRPCMessage{JSONRPC: "2.0", ID: &id, Method: "initialize"}
	require.True(t, req.IsRequest())
	require.False(t, req.IsNotification())
	require.False(t, req.IsResponse())

	notif := &JSONRPCMessage{JSONRPC: "2.0", Method: "session/cancel"}
	require.False(t, notif.IsRequest())
	require.True(t, notif.IsNotification())
	require.False(t, notif.IsResponse())

	resp := &JSONRPCMessage{JSONRPC: "2.0", ID: &id, Result: json.RawMessage(`{"ok":true}`)}
	require.False(t, resp.IsRequest())
	require.False(t, resp.IsNotification())
	require.True(t, resp.IsResponse())
}

func TestJSONRPCErrorImplementsError(t *testing.T) {
	var err error = &JSONRPCError{Code: ErrCodeInternal, Message: "boom"}
	require.Contains(t, err.Error(), "boom")
	require.Contains(t, err.Error(), "-32603")
}

func TestCoerceErrorPassesThroughDomainError(t *testing.T) {
	domain := &JSONRPCError{Code: ErrCodeAuthRequired, Message: "authentication required"}
	got := coerceError(domain)
	require.Same(t, domain, got)
}

func TestCoerceErrorWrapsGenericError(t *testing.T) {
	got := coerceError(errNotADomainError{})
	require.Equal(t, ErrCodeInternal, got.Code)
	require.NotEmpty(t, got.Data)
}

type errNotADomainError struct{}

func (errNotADomainError) Error() string { return "something went wrong" }
