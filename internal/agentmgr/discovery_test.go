package agentmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsInstalledFalseForNonsenseCommand(t *testing.T) {
	require.False(t, IsInstalled("definitely-not-a-real-binary-acpkit-test"))
}

func TestWellKnownAgentsNonEmpty(t *testing.T) {
	agents := WellKnownAgents()
	require.NotEmpty(t, agents)
	for _, a := range agents {
		require.NotEmpty(t, a.Name)
		require.NotEmpty(t, a.Command)
		require.True(t, a.AutoDetect)
	}
}
