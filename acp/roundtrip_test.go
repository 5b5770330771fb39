package acp

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipePair builds two Transports connected back to back over in-memory
// pipes, standing in for a subprocess's stdin/stdout pair in tests.
func pipePair(t *testing.T) (*Transport, *Transport) {
	t.Helper()
	ar, aw := io.Pipe()
	br, bw := io.Pipe()

	// side A reads what side B writes, and writes what side B reads.
	a := NewTransport(br, aw, pipeCloser{br, aw})
	b := NewTransport(ar, bw, pipeCloser{ar, bw})
	return a, b
}

// pipeCloser closes both pipe ends one Transport uses, so that Close ends
// that transport's own read loop without waiting for the peer to close
// first (unlike a subprocess, an io.Pipe peer does not exit on its own).
type pipeCloser struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p pipeCloser) Close() error {
	err := p.w.Close()
	_ = p.r.Close()
	return err
}

func newLinkedConns(t *testing.T, agentHandlers AgentHandlers, clientHandlers ClientHandlers) (*AgentConn, *ClientConn) {
	t.Helper()
	agentSide, clientSide := pipePair(t)

	ac := NewAgentConn(agentSide, agentHandlers)
	cc := NewClientConn(clientSide, clientHandlers)
	ac.Start()
	cc.Start()

	t.Cleanup(func() {
		_ = ac.Close()
		_ = cc.Close()
	})
	return ac, cc
}

func TestS1HappyPathInitialize(t *testing.T) {
	_, cc := newLinkedConns(t, AgentHandlers{
		OnInitialize: func(ctx context.Context, p InitializeParams) (InitializeResult, error) {
			return InitializeResult{
				ProtocolVersion:   1,
				AgentCapabilities: AgentCapabilities{LoadSession: true},
				AuthMethods: []AuthMethod{
					{ID: "oauth", Name: "OAuth", Description: "Authenticate with OAuth"},
				},
			}, nil
		},
	}, ClientHandlers{})

	res, err := cc.Initialize(context.Background(), InitializeParams{
		ProtocolVersion:    1,
		ClientCapabilities: ClientCapabilities{FS: FSCapabilities{ReadTextFile: true, WriteTextFile: true}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.ProtocolVersion)
	require.True(t, res.AgentCapabilities.LoadSession)
	require.Len(t, res.AuthMethods, 1)
	require.Equal(t, "oauth", res.AuthMethods[0].ID)
}

func TestS2BidirectionalErrors(t *testing.T) {
	ac, _ := newLinkedConns(t, AgentHandlers{}, ClientHandlers{
		OnWriteTextFile: func(ctx context.Context, p FSWriteTextFileParams) (FSWriteTextFileResult, error) {
			return FSWriteTextFileResult{}, &JSONRPCError{Code: ErrCodeInternal, Message: "Write failed"}
		},
	})

	_, err := ac.WriteTextFile(context.Background(), FSWriteTextFileParams{
		Path: "/test.txt", Content: "test", SessionID: "test-session",
	})
	require.Error(t, err)
	rpcErr, ok := err.(*JSONRPCError)
	require.True(t, ok, "expected *JSONRPCError, got %T: %v", err, err)
	require.Equal(t, ErrCodeInternal, rpcErr.Code)
	require.Equal(t, "Write failed", rpcErr.Message)
}

func TestS3ConcurrentRequests(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	ac, _ := newLinkedConns(t, AgentHandlers{}, ClientHandlers{
		OnWriteTextFile: func(ctx context.Context, p FSWriteTextFileParams) (FSWriteTextFileResult, error) {
			time.Sleep(40 * time.Millisecond)
			mu.Lock()
			seen = append(seen, p.Path)
			mu.Unlock()
			return FSWriteTextFileResult{}, nil
		},
	})

	paths := []string{"/file1.txt", "/file2.txt", "/file3.txt"}
	var wg sync.WaitGroup
	errs := make([]error, len(paths))
	for i, p := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			_, err := ac.WriteTextFile(context.Background(), FSWriteTextFileParams{Path: path, Content: "x"})
			errs[i] = err
		}(i, p)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
}

func TestS4MessageOrderingAcrossMethods(t *testing.T) {
	var mu sync.Mutex
	var entries []string

	ac, cc := newLinkedConns(t, AgentHandlers{
		OnInitialize: func(ctx context.Context, p InitializeParams) (InitializeResult, error) {
			return InitializeResult{ProtocolVersion: 1}, nil
		},
		OnSessionNew: func(ctx context.Context, p SessionNewParams) (SessionNewResult, error) {
			mu.Lock()
			entries = append(entries, "session/new")
			mu.Unlock()
			return SessionNewResult{SessionID: "s-1"}, nil
		},
	}, ClientHandlers{
		OnWriteTextFile: func(ctx context.Context, p FSWriteTextFileParams) (FSWriteTextFileResult, error) {
			mu.Lock()
			entries = append(entries, "fs/write_text_file")
			mu.Unlock()
			return FSWriteTextFileResult{}, nil
		},
		OnReadTextFile: func(ctx context.Context, p FSReadTextFileParams) (FSReadTextFileResult, error) {
			mu.Lock()
			entries = append(entries, "fs/read_text_file")
			mu.Unlock()
			return FSReadTextFileResult{Content: "hi"}, nil
		},
		OnRequestPermission: func(ctx context.Context, p RequestPermissionParams) (RequestPermissionResult, error) {
			mu.Lock()
			entries = append(entries, "session/request_permission:"+p.ToolCall.Title)
			mu.Unlock()
			return RequestPermissionResult{Outcome: NewSelectedOutcome("opt-1")}, nil
		},
	})

	// The order is enforced by issuing each call sequentially and awaiting
	// its response before issuing the next; the dispatcher spawns handlers
	// independently but the test only proceeds once each has observably run.
	// session/new is a Client-to-Agent request, and the agent rejects it
	// until initialize has completed.
	_, err := cc.Initialize(context.Background(), InitializeParams{ProtocolVersion: 1})
	require.NoError(t, err)
	_, err = cc.NewSession(context.Background(), SessionNewParams{CWD: "/test", MCPServers: []MCPServer{}})
	require.NoError(t, err)

	_, werr := ac.WriteTextFile(context.Background(), FSWriteTextFileParams{Path: "/test.txt"})
	require.NoError(t, werr)

	_, rerr := ac.ReadTextFile(context.Background(), FSReadTextFileParams{Path: "/test.txt"})
	require.NoError(t, rerr)

	title := "Execute command"
	_, perr := ac.RequestPermission(context.Background(), RequestPermissionParams{
		ToolCall: ToolCallUpdate{ToolCallID: "tc-1", Title: &title},
		Options:  []PermissionOption{{OptionID: "opt-1", Name: "Allow", Kind: PermissionOptionAllowOnce}},
	})
	require.NoError(t, perr)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		"session/new",
		"fs/write_text_file",
		"fs/read_text_file",
		"session/request_permission:Execute command",
	}, entries)
}

func TestS5PromptCancellation(t *testing.T) {
	cancelReceived := make(chan string, 1)

	_, cc := newLinkedConns(t, AgentHandlers{
		OnInitialize: func(ctx context.Context, p InitializeParams) (InitializeResult, error) {
			return InitializeResult{ProtocolVersion: 1}, nil
		},
		OnSessionNew: func(ctx context.Context, p SessionNewParams) (SessionNewResult, error) {
			return SessionNewResult{SessionID: "s-1"}, nil
		},
		OnSessionPrompt: func(ctx context.Context, p SessionPromptParams) (SessionPromptResult, error) {
			<-ctx.Done()
			return SessionPromptResult{StopReason: StopReasonCancelled}, nil
		},
		OnSessionCancel: func(ctx context.Context, p SessionCancelParams) {
			cancelReceived <- p.SessionID
		},
	}, ClientHandlers{})

	_, err := cc.Initialize(context.Background(), InitializeParams{ProtocolVersion: 1})
	require.NoError(t, err)

	promptCtx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res, err := cc.Prompt(promptCtx, SessionPromptParams{
		SessionID: "s-1",
		Prompt:    []ContentBlock{NewTextBlock("hello")},
	})
	require.NoError(t, err)
	require.Equal(t, StopReasonCancelled, res.StopReason)

	select {
	case sid := <-cancelReceived:
		require.Equal(t, "s-1", sid)
	case <-time.After(time.Second):
		t.Fatal("agent never observed session/cancel")
	}

	_, err = cc.NewSession(context.Background(), SessionNewParams{CWD: "/test"})
	require.NoError(t, err, "connection must remain usable after a cancelled turn")
}

func TestS6NotificationStream(t *testing.T) {
	updateReceived := make(chan SessionUpdateParams, 1)
	cancelReceived := make(chan SessionCancelParams, 1)

	ac, cc := newLinkedConns(t, AgentHandlers{
		OnSessionCancel: func(ctx context.Context, p SessionCancelParams) {
			cancelReceived <- p
		},
	}, ClientHandlers{
		OnSessionUpdate: func(ctx context.Context, p SessionUpdateParams) {
			updateReceived <- p
		},
	})

	err := ac.SessionUpdate("test-session", NewAgentMessageChunk(NewTextBlock("Hello from agent")))
	require.NoError(t, err)

	select {
	case p := <-updateReceived:
		require.Equal(t, "test-session", p.SessionID)
		require.Equal(t, SessionUpdateAgentMessageChunk, p.Update.Kind)
		require.Equal(t, "Hello from agent", p.Update.Content.Text)
	case <-time.After(time.Second):
		t.Fatal("client never observed session/update")
	}

	err = cc.Cancel("test-session")
	require.NoError(t, err)

	select {
	case p := <-cancelReceived:
		require.Equal(t, "test-session", p.SessionID)
	case <-time.After(time.Second):
		t.Fatal("agent never observed session/cancel")
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	ac, _ := newLinkedConns(t, AgentHandlers{}, ClientHandlers{})

	var res struct{}
	err := ac.conn.call(context.Background(), "does/not_exist", nil, &res)
	require.Error(t, err)
	rpcErr, ok := err.(*JSONRPCError)
	require.True(t, ok)
	require.Equal(t, ErrCodeMethodNotFound, rpcErr.Code)

	var data struct {
		Method string `json:"method"`
	}
	require.NoError(t, json.Unmarshal(rpcErr.Data, &data))
	require.Equal(t, "does/not_exist", data.Method)
}
