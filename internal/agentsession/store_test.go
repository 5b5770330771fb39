package agentsession

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "sess-1", "/tmp/work"))

	rec, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "/tmp/work", rec.CWD)
	require.Empty(t, rec.Messages)
	require.Empty(t, rec.ToolCalls)
}

func TestGetMissingSessionReturnsNil(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestAddMessagePreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "sess-1", "/tmp"))

	require.NoError(t, s.AddMessage(ctx, "sess-1", Message{Role: "user", Content: "hello"}))
	require.NoError(t, s.AddMessage(ctx, "sess-1", Message{Role: "agent", Content: "world"}))

	rec, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, rec.Messages, 2)
	require.Equal(t, "hello", rec.Messages[0].Content)
	require.Equal(t, "world", rec.Messages[1].Content)
}

func TestToolCallLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "sess-1", "/tmp"))

	require.NoError(t, s.AddToolCall(ctx, "sess-1", ToolCallRecord{
		ToolCallID: "tc-1", Title: "run ls", Kind: "execute", Status: "pending",
	}))
	require.NoError(t, s.UpdateToolCall(ctx, "sess-1", "tc-1", "completed", "file1\nfile2"))

	rec, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, rec.ToolCalls, 1)
	require.Equal(t, "completed", rec.ToolCalls[0].Status)
	require.Equal(t, "file1\nfile2", rec.ToolCalls[0].Content)
}

func TestUpdateToolCallUnknownIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "sess-1", "/tmp"))
	require.NoError(t, s.UpdateToolCall(ctx, "sess-1", "missing", "completed", "x"))
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "sess-1", "/tmp"))
	require.NoError(t, s.Create(ctx, "sess-2", "/tmp"))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sess-1", "sess-2"}, ids)

	require.NoError(t, s.Delete(ctx, "sess-1"))
	ids, err = s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"sess-2"}, ids)

	rec, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Nil(t, rec)
}
