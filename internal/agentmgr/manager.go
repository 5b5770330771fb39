package agentmgr

import (
	"context"
	"fmt"
	"sync"

	"acpkit/acp"
	"acpkit/internal/logging"

	"github.com/google/uuid"
)

// Connection represents a live connection to an agent subprocess.
type Connection struct {
	ID        string
	Agent     AgentConfig
	Client    *acp.ClientConn
	Transport *acp.StdioTransport
	Sessions  []string

	mu sync.Mutex
}

// AddSession records a session ID opened on this connection.
func (c *Connection) AddSession(sessionID string) {
	c.mu.Lock()
	c.Sessions = append(c.Sessions, sessionID)
	c.mu.Unlock()
}

// Manager handles the lifecycle of multiple agent connections.
type Manager struct {
	connections map[string]*Connection
	config      *Config
	handlers    acp.ClientHandlers
	mu          sync.RWMutex
	log         *logging.Logger
}

// NewManager creates a Manager with the given configuration. handlers are
// installed on every connection's ClientConn (fs/terminal/permission/
// session-update callbacks); the same handler set is shared across all
// connections.
func NewManager(config *Config, handlers acp.ClientHandlers) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		config:      config,
		handlers:    handlers,
		log:         logging.Default,
	}
}

func (m *Manager) findAgent(name string) (AgentConfig, bool) {
	for _, a := range m.config.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// Connect starts an agent subprocess, sets up the ACP transport and client,
// performs the initialize handshake, and registers the connection.
func (m *Manager) Connect(ctx context.Context, agentName string, cwd string, clientCaps acp.ClientCapabilities) (*Connection, error) {
	agent, ok := m.findAgent(agentName)
	if !ok {
		return nil, fmt.Errorf("agentmgr: unknown agent %q", agentName)
	}

	var env []string
	for k, v := range agent.Env {
		env = append(env, k+"="+v)
	}

	transport, err := acp.NewStdioTransport(agent.Command, agent.Args, env, cwd)
	if err != nil {
		return nil, fmt.Errorf("agentmgr: launch %s: %w", agentName, err)
	}

	client := acp.NewClientConn(transport.Transport, m.handlers)
	client.Start()

	if _, err := client.Initialize(ctx, acp.InitializeParams{
		ProtocolVersion:    acp.ProtocolVersion,
		ClientCapabilities: clientCaps,
	}); err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("agentmgr: initialize %s: %w", agentName, err)
	}

	conn := &Connection{
		ID:        uuid.New().String(),
		Agent:     agent,
		Client:    client,
		Transport: transport,
		Sessions:  make([]string, 0),
	}

	go m.forwardStderr(conn)

	m.mu.Lock()
	m.connections[conn.ID] = conn
	m.mu.Unlock()

	return conn, nil
}

func (m *Manager) forwardStderr(conn *Connection) {
	for line := range conn.Transport.StderrCh() {
		m.log.Debug("agentmgr: %s[%s] stderr: %s", conn.Agent.Name, conn.ID, line)
	}
}

// Disconnect gracefully shuts down a single connection by ID.
func (m *Manager) Disconnect(connectionID string) error {
	m.mu.Lock()
	conn, ok := m.connections[connectionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("agentmgr: connection %q not found", connectionID)
	}
	delete(m.connections, connectionID)
	m.mu.Unlock()

	// Close the subprocess transport directly rather than through
	// conn.Client.Close(): StdioTransport.Close overrides the base
	// Transport.Close to also reap the child process, avoiding zombies.
	if err := conn.Transport.Close(); err != nil {
		return fmt.Errorf("agentmgr: close connection %s: %w", connectionID, err)
	}
	return nil
}

// GetConnection returns the connection with the given ID, or nil if not
// found.
func (m *Manager) GetConnection(connectionID string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connections[connectionID]
}

// ListConnections returns a snapshot of all active connections.
func (m *Manager) ListConnections() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		result = append(result, c)
	}
	return result
}

// DisconnectAll shuts down every active connection. Errors are logged and
// swallowed so the method is safe to use in defer/cleanup paths.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Disconnect(id); err != nil {
			m.log.Warn("agentmgr: disconnect %s: %v", id, err)
		}
	}
}
