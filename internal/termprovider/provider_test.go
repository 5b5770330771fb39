package termprovider

import (
	"context"
	"strings"
	"testing"
	"time"

	"acpkit/acp"

	"github.com/stretchr/testify/require"
)

func TestHandleCreateAndWaitForExit(t *testing.T) {
	p := NewProvider()

	created, err := p.HandleCreate(context.Background(), acp.TerminalCreateParams{
		Command: "echo", Args: []string{"hello acpkit"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.TerminalID)

	waited, err := p.HandleWaitForExit(context.Background(), acp.TerminalWaitForExitParams{TerminalID: created.TerminalID})
	require.NoError(t, err)
	require.NotNil(t, waited.ExitStatus.ExitCode)
	require.Equal(t, 0, *waited.ExitStatus.ExitCode)

	out, err := p.HandleOutput(context.Background(), acp.TerminalOutputParams{TerminalID: created.TerminalID})
	require.NoError(t, err)
	require.True(t, strings.Contains(out.Output, "hello acpkit"))
}

func TestHandleKillTerminatesLongRunningProcess(t *testing.T) {
	p := NewProvider()

	created, err := p.HandleCreate(context.Background(), acp.TerminalCreateParams{
		Command: "sleep", Args: []string{"30"},
	})
	require.NoError(t, err)

	_, err = p.HandleKill(context.Background(), acp.TerminalKillParams{TerminalID: created.TerminalID})
	require.NoError(t, err)

	term, err := p.get(created.TerminalID)
	require.NoError(t, err)
	select {
	case <-time.After(6 * time.Second):
		t.Fatal("terminal did not exit after kill")
	case <-term.done:
	}

	waited, err := p.HandleWaitForExit(context.Background(), acp.TerminalWaitForExitParams{TerminalID: created.TerminalID})
	require.NoError(t, err)
	require.NotNil(t, waited.ExitStatus)
}

func TestHandleOutputUnknownTerminal(t *testing.T) {
	p := NewProvider()
	_, err := p.HandleOutput(context.Background(), acp.TerminalOutputParams{TerminalID: "missing"})
	require.Error(t, err)
}

func TestHandleReleaseRemovesTerminal(t *testing.T) {
	p := NewProvider()
	created, err := p.HandleCreate(context.Background(), acp.TerminalCreateParams{Command: "echo", Args: []string{"x"}})
	require.NoError(t, err)

	_, err = p.HandleRelease(context.Background(), acp.TerminalReleaseParams{TerminalID: created.TerminalID})
	require.NoError(t, err)

	_, err = p.HandleOutput(context.Background(), acp.TerminalOutputParams{TerminalID: created.TerminalID})
	require.Error(t, err, "terminal should be gone after release")
}
