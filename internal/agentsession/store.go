// Package agentsession is the agent-side session store: it persists
// sessions, their conversation history, and tool-call records to SQLite so
// that session/load can replay real history across process restarts,
// rather than the in-memory map a minimal implementation would use.
package agentsession

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Message is a single entry in a session's conversation history.
type Message struct {
	Role      string // "user" or "agent"
	Content   string
	Timestamp time.Time
}

// ToolCallRecord tracks a tool invocation made during a session.
type ToolCallRecord struct {
	ToolCallID string
	Title      string
	Kind       string
	Status     string
	Content    string // summary of the result
	Timestamp  time.Time
}

// SessionRecord holds the full state of a single agent session.
type SessionRecord struct {
	ID        string
	CWD       string
	Messages  []Message
	ToolCalls []ToolCallRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a SQLite-backed session store, safe for concurrent use (the
// underlying *sql.DB pools and serializes its own connections).
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if necessary) a SQLite database at path and
// ensures its schema exists. Use ":memory:" for an ephemeral store, as
// reference-agent tests do.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("agentsession: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	cwd        TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	timestamp  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tool_calls (
	session_id   TEXT NOT NULL,
	tool_call_id TEXT NOT NULL,
	title        TEXT NOT NULL,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL,
	content      TEXT NOT NULL,
	timestamp    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id, timestamp);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("agentsession: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Create initializes a new SessionRecord row. If a session with the given ID
// already exists it is silently overwritten (matching acpkit's session/new
// semantics: a fresh session always starts clean).
func (s *Store) Create(ctx context.Context, id, cwd string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, cwd, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET cwd=excluded.cwd, created_at=excluded.created_at, updated_at=excluded.updated_at`,
		id, cwd, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("agentsession: create session %s: %w", id, err)
	}
	for _, table := range []string{"messages", "tool_calls"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id=?`, id); err != nil {
			return fmt.Errorf("agentsession: reset %s for %s: %w", table, id, err)
		}
	}
	return nil
}

func (s *Store) touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at=? WHERE id=?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

// AddMessage appends a message to the session's conversation history.
func (s *Store) AddMessage(ctx context.Context, sessionID string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	var seq int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE session_id=?`, sessionID)
	if err := row.Scan(&seq); err != nil {
		return fmt.Errorf("agentsession: next seq for %s: %w", sessionID, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		sessionID, seq, msg.Role, msg.Content, msg.Timestamp.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("agentsession: add message to %s: %w", sessionID, err)
	}
	return s.touch(ctx, sessionID)
}

// AddToolCall appends a tool call record to the session.
func (s *Store) AddToolCall(ctx context.Context, sessionID string, tc ToolCallRecord) error {
	if tc.Timestamp.IsZero() {
		tc.Timestamp = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (session_id, tool_call_id, title, kind, status, content, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, tc.ToolCallID, tc.Title, tc.Kind, tc.Status, tc.Content, tc.Timestamp.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("agentsession: add tool call to %s: %w", sessionID, err)
	}
	return s.touch(ctx, sessionID)
}

// UpdateToolCall updates the status and content of the most recent record
// for toolCallID within the session. It is a no-op if no such record exists.
func (s *Store) UpdateToolCall(ctx context.Context, sessionID, toolCallID, status, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tool_calls SET status=?, content=? WHERE rowid = (
			SELECT rowid FROM tool_calls WHERE session_id=? AND tool_call_id=? ORDER BY rowid DESC LIMIT 1
		 )`, status, content, sessionID, toolCallID)
	if err != nil {
		return fmt.Errorf("agentsession: update tool call %s: %w", toolCallID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return s.touch(ctx, sessionID)
	}
	return nil
}

// Get loads a session's full record, including its conversation history and
// tool call records in insertion order. It returns (nil, nil) if no such
// session exists.
func (s *Store) Get(ctx context.Context, id string) (*SessionRecord, error) {
	rec := &SessionRecord{ID: id}
	var createdAt, updatedAt string
	row := s.db.QueryRowContext(ctx, `SELECT cwd, created_at, updated_at FROM sessions WHERE id=?`, id)
	if err := row.Scan(&rec.CWD, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("agentsession: get session %s: %w", id, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	msgRows, err := s.db.QueryContext(ctx,
		`SELECT role, content, timestamp FROM messages WHERE session_id=? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("agentsession: list messages for %s: %w", id, err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var m Message
		var ts string
		if err := msgRows.Scan(&m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("agentsession: scan message: %w", err)
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		rec.Messages = append(rec.Messages, m)
	}

	tcRows, err := s.db.QueryContext(ctx,
		`SELECT tool_call_id, title, kind, status, content, timestamp FROM tool_calls WHERE session_id=? ORDER BY rowid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("agentsession: list tool calls for %s: %w", id, err)
	}
	defer tcRows.Close()
	for tcRows.Next() {
		var tc ToolCallRecord
		var ts string
		if err := tcRows.Scan(&tc.ToolCallID, &tc.Title, &tc.Kind, &tc.Status, &tc.Content, &ts); err != nil {
			return nil, fmt.Errorf("agentsession: scan tool call: %w", err)
		}
		tc.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		rec.ToolCalls = append(rec.ToolCalls, tc)
	}

	return rec, nil
}

// List returns every session ID known to the store, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("agentsession: list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("agentsession: scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes a session and its history.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id); err != nil {
		return fmt.Errorf("agentsession: delete session %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id=?`, id); err != nil {
		return fmt.Errorf("agentsession: delete messages for %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tool_calls WHERE session_id=?`, id); err != nil {
		return fmt.Errorf("agentsession: delete tool calls for %s: %w", id, err)
	}
	return nil
}
