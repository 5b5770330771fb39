package agentmgr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Agents)
	require.Equal(t, "dark", cfg.Settings.Theme)

	// the file now exists and round-trips.
	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestSaveConfigCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.json")
	cfg := DefaultConfig()
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestDefaultConfigIncludesReferenceAgent(t *testing.T) {
	cfg := DefaultConfig()
	var found bool
	for _, a := range cfg.Agents {
		if a.Name == "acp-agent" {
			found = true
		}
	}
	require.True(t, found, "default config should list acpkit's own reference agent")
}
