// ABOUTME: SQLite store for development memos and the optional protocol audit log
// ABOUTME: Creates the database file and schema on first open

package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kyhei/local-dev-insights/internal/errors"
	"github.com/kyhei/local-dev-insights/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
	conn *sql.DB
}

type MessageDirection string

const (
	DirectionClientToServer MessageDirection = "client_to_server"
	DirectionServerToClient MessageDirection = "server_to_client"
)

// Memo is one free-form development note.
type Memo struct {
	ID        int64
	Content   string
	Tags      []string
	CreatedAt time.Time
}

// Open opens or creates the SQLite database, creating parent directories as needed.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.NewDirectoryError("database", dir, err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode so readers never block the single writer
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Debug("Database initialized at %s", dbPath)
	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// AddMemo stores a memo and returns its id.
func (db *DB) AddMemo(ctx context.Context, content string, tags []string) (int64, error) {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, fmt.Errorf("failed to encode tags: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO memos (content, tags) VALUES (?, ?)",
		content, string(tagsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add memo: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read memo id: %w", err)
	}
	return id, nil
}

// ListMemos returns every memo, newest first.
func (db *DB) ListMemos(ctx context.Context) ([]Memo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, content, tags, created_at
		 FROM memos ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query memos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	memos := []Memo{}
	for rows.Next() {
		var m Memo
		var tagsJSON string

		if err := rows.Scan(&m.ID, &m.Content, &tagsJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memo: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for memo %d: %w", m.ID, err)
		}

		memos = append(memos, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memos: %w", err)
	}

	return memos, nil
}

// CreateSession logs a new server session
func (db *DB) CreateSession(sessionID, workingDir string) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (id, working_directory) VALUES (?, ?)",
		sessionID, workingDir,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// CloseSession marks a session as closed
func (db *DB) CloseSession(sessionID string) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET closed_at = CURRENT_TIMESTAMP WHERE id = ?",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// LogMessage logs a raw protocol line with direction and parsed details
func (db *DB) LogMessage(sessionID string, direction MessageDirection, rawMessage []byte) error {
	var msg map[string]json.RawMessage
	var messageType, method, jsonrpcID sql.NullString

	if err := json.Unmarshal(rawMessage, &msg); err == nil {
		_, hasID := msg["id"]
		if rawMethod, hasMethod := msg["method"]; hasMethod {
			if hasID {
				messageType = sql.NullString{String: "request", Valid: true}
			} else {
				messageType = sql.NullString{String: "notification", Valid: true}
			}
			var m string
			if json.Unmarshal(rawMethod, &m) == nil {
				method = sql.NullString{String: m, Valid: true}
			}
		} else if _, hasResult := msg["result"]; hasResult {
			messageType = sql.NullString{String: "response", Valid: true}
		} else if _, hasError := msg["error"]; hasError {
			messageType = sql.NullString{String: "error", Valid: true}
		}

		// Kept as raw JSON so string, number and null ids stay distinguishable
		if id, ok := msg["id"]; ok {
			jsonrpcID = sql.NullString{String: string(id), Valid: true}
		}
	}

	_, err := db.conn.Exec(
		`INSERT INTO messages (session_id, direction, message_type, method, jsonrpc_id, raw_message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, direction, messageType, method, jsonrpcID, string(rawMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}

// GetSessionMessages retrieves all messages for a session in arrival order
func (db *DB) GetSessionMessages(sessionID string) ([]Message, error) {
	rows, err := db.conn.Query(
		`SELECT id, session_id, direction, message_type, method, jsonrpc_id, raw_message, timestamp
		 FROM messages WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var m Message
		var jsonrpcID, method, messageType sql.NullString

		err := rows.Scan(&m.ID, &m.SessionID, &m.Direction, &messageType, &method, &jsonrpcID, &m.RawMessage, &m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		m.JSONRPCID = jsonrpcID.String
		m.Method = method.String
		m.MessageType = messageType.String

		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// Message represents a logged protocol line
type Message struct {
	ID          int64
	SessionID   string
	Direction   MessageDirection
	MessageType string
	Method      string
	JSONRPCID   string
	RawMessage  string
	Timestamp   time.Time
}

// GetAllSessions retrieves all sessions, newest first
func (db *DB) GetAllSessions() ([]Session, error) {
	rows, err := db.conn.Query(
		`SELECT id, working_directory, created_at, closed_at
		 FROM sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var s Session
		var closedAt sql.NullTime

		if err := rows.Scan(&s.ID, &s.WorkingDirectory, &s.CreatedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		if closedAt.Valid {
			s.ClosedAt = &closedAt.Time
		}

		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Session represents a logged server run
type Session struct {
	ID               string
	WorkingDirectory string
	CreatedAt        time.Time
	ClosedAt         *time.Time
}
