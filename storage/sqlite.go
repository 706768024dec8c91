package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marendel/skein/llm"
)

// SqliteStore persists conversations and memory entries in a SQLite
// database file. Thread-safe: sql.DB handles pooling and concurrent
// access.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path,
// creating parent directories as needed.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return initStore(db)
}

// NewSqliteInMemory creates an in-memory database, useful for tests.
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory sqlite: %w", err)
	}
	return initStore(db)
}

func initStore(db *sql.DB) (*SqliteStore, error) {
	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			session_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT,
			PRIMARY KEY (session_id, turn_index)
		);

		CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			request TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reflection TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_memory_created
		ON memory_entries(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the stored history for a session.
func (s *SqliteStore) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	for i, msg := range history {
		var toolCalls []byte
		if len(msg.ToolCalls) > 0 {
			toolCalls, err = json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("encode tool calls: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO conversations (session_id, turn_index, role, content, tool_calls, tool_call_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, i, msg.Role, msg.Content, string(toolCalls), msg.ToolCallID)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Load returns the stored history, or an empty slice for an unknown
// session.
func (s *SqliteStore) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id FROM conversations
		 WHERE session_id = ? ORDER BY turn_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	history := []llm.ChatMessage{}
	for rows.Next() {
		var msg llm.ChatMessage
		var toolCalls, toolCallID sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &toolCallID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		msg.ToolCallID = toolCallID.String
		history = append(history, msg)
	}
	return history, rows.Err()
}

// Delete removes a session and its history.
func (s *SqliteStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID)
	return err
}

// Sessions lists known session IDs.
func (s *SqliteStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM conversations ORDER BY session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AppendEntry stores a memory entry durably.
func (s *SqliteStore) AppendEntry(ctx context.Context, entry MemoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_entries (id, request, outcome, reflection, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Request, entry.Outcome, entry.Reflection, entry.Timestamp.Unix())
	return err
}

// RecentEntries returns up to n persisted entries, newest first.
func (s *SqliteStore) RecentEntries(ctx context.Context, n int) ([]MemoryEntry, error) {
	if n <= 0 {
		n = DefaultRingCapacity
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request, outcome, reflection, created_at FROM memory_entries
		 ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		var entry MemoryEntry
		var reflection sql.NullString
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.Request, &entry.Outcome, &reflection, &createdAt); err != nil {
			return nil, err
		}
		entry.Reflection = reflection.String
		entry.Timestamp = time.Unix(createdAt, 0).UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Verify SqliteStore implements both storage roles
var (
	_ ConversationStore = (*SqliteStore)(nil)
	_ EntrySink         = (*SqliteStore)(nil)
)
