// Command acp-agent is acpkit's reference Agent: a standalone subprocess
// speaking ACP over stdio, backed by internal/refagent and a SQLite session
// store under internal/agentsession. It is meant to be launched by a Client
// (e.g. cmd/acp-client) exactly the way any other ACP agent would be.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"acpkit/acp"
	"acpkit/internal/agentsession"
	"acpkit/internal/logging"
	"acpkit/internal/refagent"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "acp-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dbPath, err := sessionDBPath()
	if err != nil {
		return err
	}

	store, err := agentsession.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	ra := refagent.NewAgent(store)

	transport := acp.NewTransport(os.Stdin, os.Stdout, os.Stdin)
	conn := acp.NewAgentConn(transport, ra.Handlers())
	ra.SetConn(conn)
	conn.Start()

	logging.Default.Info("acp-agent: ready")

	<-conn.Context().Done()
	return nil
}

func sessionDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ":memory:", nil
	}
	full := filepath.Join(dir, "acpkit")
	if err := os.MkdirAll(full, 0o755); err != nil {
		return ":memory:", nil
	}
	return filepath.Join(full, "agent-sessions.db"), nil
}
