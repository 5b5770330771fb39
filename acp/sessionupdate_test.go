package acp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionUpdateRoundTrip(t *testing.T) {
	title := "Run tests"
	status := ToolCallStatusInProgress
	line := 42

	cases := []SessionUpdate{
		NewUserMessageChunk(NewTextBlock("hi")),
		NewAgentMessageChunk(NewTextBlock("hello")),
		NewAgentThoughtChunk(NewTextBlock("thinking...")),
		NewToolCallFull(ToolCall{
			ToolCallID: "tc-1",
			Title:      "Run tests",
			Kind:       ToolKindExecute,
			Status:     ToolCallStatusPending,
			Content: []ToolCallContent{
				{Type: ToolCallContentTypeTerminal, TerminalID: "term-1"},
			},
			Locations: []ToolCallLocation{{Path: "/main.go", Line: &line}},
		}),
		NewToolCallUpdate(ToolCallUpdate{
			ToolCallID: "tc-1",
			Title:      &title,
			Status:     &status,
		}),
		NewPlanUpdate([]PlanEntry{
			{Content: "write tests", Priority: PlanPriorityHigh, Status: PlanStatusInProgress},
		}),
		NewAvailableCommandsUpdate([]AvailableCommand{
			{Name: "build", Description: "build the project"},
		}),
		NewCurrentModeUpdate("mode-a"),
	}

	for _, u := range cases {
		b, err := json.Marshal(u)
		require.NoError(t, err)

		var got SessionUpdate
		require.NoError(t, json.Unmarshal(b, &got))
		require.Equal(t, u, got)
	}
}

func TestSessionUpdateToolCallInvariantFieldPresent(t *testing.T) {
	u := NewToolCallUpdate(ToolCallUpdate{ToolCallID: "tc-42"})
	b, err := json.Marshal(u)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Equal(t, "tc-42", raw["toolCallId"])
	require.Equal(t, SessionUpdateToolCallUpdate, raw["sessionUpdate"])
}

func TestPermissionOutcomeRoundTrip(t *testing.T) {
	cases := []PermissionOutcome{
		NewSelectedOutcome("opt-1"),
		CancelledOutcome,
	}
	for _, o := range cases {
		b, err := json.Marshal(o)
		require.NoError(t, err)

		var got PermissionOutcome
		require.NoError(t, json.Unmarshal(b, &got))
		require.Equal(t, o, got)
	}
}

func TestSessionUpdateUnmarshalUnknownDiscriminant(t *testing.T) {
	var u SessionUpdate
	err := json.Unmarshal([]byte(`{"sessionUpdate":"something_new"}`), &u)
	require.Error(t, err)
}
