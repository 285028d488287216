package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kzidane/askbook/internal/conversation"
)

// Store records committed messages and serves the session history API.
type Store struct {
	db *DB
}

// NewStore creates a transcript store over an opened database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// StoredMessage is one persisted message as returned by ListMessages.
type StoredMessage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	TokenCount  int       `json:"token_count"`
	CitationIDs []string  `json:"citation_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session summarizes one persisted session.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Record persists a committed message, creating the session row on
// first use.
func (s *Store) Record(ctx context.Context, sessionID string, msg conversation.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_sessions (id) VALUES (?) ON CONFLICT(id) DO UPDATE SET updated_at = datetime('now')`,
		sessionID,
	); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	citations, err := json.Marshal(msg.CitationIDs)
	if err != nil {
		return fmt.Errorf("encoding citation ids: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, token_count, citation_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Role), msg.Content, msg.TokenCount, string(citations),
		msg.CreatedAt.UTC().Format(time.DateTime),
	); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	return tx.Commit()
}

// ListMessages returns a session's messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, token_count, citation_ids, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		var citations, created string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.TokenCount, &citations, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if err := json.Unmarshal([]byte(citations), &msg.CitationIDs); err != nil {
			return nil, fmt.Errorf("decoding citation ids: %w", err)
		}
		msg.CreatedAt = parseTimestamp(created)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ListSessions returns all persisted sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.created_at, s.updated_at, COUNT(m.id)
		 FROM chat_sessions s LEFT JOIN chat_messages m ON m.session_id = s.id
		 GROUP BY s.id ORDER BY s.updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var created, updated string
		if err := rows.Scan(&sess.ID, &created, &updated, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.CreatedAt = parseTimestamp(created)
		sess.UpdatedAt = parseTimestamp(updated)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// DeleteSession removes a session and its messages. Returns
// sql.ErrNoRows if the session does not exist.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}
