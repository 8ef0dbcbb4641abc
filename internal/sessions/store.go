package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/osbuddy/internal/db"
)

// Store persists sessions and their messages.
type Store struct {
	db *db.DB
}

// NewStore creates a session store on database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create starts an empty session owned by userID.
func (s *Store) Create(ctx context.Context, userID string) (*Session, error) {
	now := time.Now().UTC()
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &sess, nil
}

// Get returns the session if it exists and belongs to userID.
func (s *Store) Get(ctx context.Context, id, userID string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &sess, nil
}

// List returns userID's sessions, most recently active first.
func (s *Store) List(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions
		 WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Delete removes the session and its messages. It reports whether a session
// owned by userID was removed.
func (s *Store) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return n > 0, nil
}

// SetTitle renames a session.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("setting title: %w", err)
	}
	return nil
}

// Messages returns the session's messages in order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, role, content, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Append adds messages to the end of a session in one transaction and marks
// the session active.
func (s *Store) Append(ctx context.Context, sessionID string, msgs ...Message) ([]Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	out, err := appendTx(ctx, tx, sessionID, time.Now().UTC(), msgs)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing messages: %w", err)
	}
	return out, nil
}

// CreateWith starts a session owned by userID that already holds msgs. The
// session only exists once all of them are stored.
func (s *Store) CreateWith(ctx context.Context, userID, title string, msgs ...Message) (*Session, error) {
	now := time.Now().UTC()
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, sess.CreatedAt, sess.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if _, err := appendTx(ctx, tx, sess.ID, now, msgs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session: %w", err)
	}
	return &sess, nil
}

func appendTx(ctx context.Context, tx *sql.Tx, sessionID string, now time.Time, msgs []Message) ([]Message, error) {
	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE session_id = ?`, sessionID,
	).Scan(&last); err != nil {
		return nil, fmt.Errorf("reading last message: %w", err)
	}

	out := make([]Message, len(msgs))
	for i, m := range msgs {
		last++
		m.ID = uuid.New().String()
		m.SessionID = sessionID
		m.Seq = last
		m.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (id, session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.SessionID, m.Seq, m.Role, m.Content, m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("adding message: %w", err)
		}
		out[i] = m
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, now, sessionID,
	); err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}
	return out, nil
}

// Count returns the number of sessions across all users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`).Scan(&count)
	return count, err
}
