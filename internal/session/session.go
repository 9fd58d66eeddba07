// Package session persists browser credentials locally. The remote API
// owns identity; we only hold the bearer token, display name and user
// id a visitor entered, keyed by an opaque session id kept in a cookie.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// TTL is how long a stored credential stays valid.
const TTL = 7 * 24 * time.Hour

// Session is one stored credential set.
type Session struct {
	ID        string
	Token     string
	Name      string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store wraps the sessions table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the session database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		name TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create stores a credential set and returns the new session.
func (s *Store) Create(ctx context.Context, token, name, userID string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Token:     token,
		Name:      name,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, name, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Token, sess.Name, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Get returns the session with the given id, or nil when it is unknown
// or expired. Expired rows are deleted on the way out.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	sess := &Session{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, name, user_id, created_at, expires_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Token, &sess.Name, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		_ = s.Delete(ctx, sess.ID)
		return nil, nil
	}
	return sess, nil
}

// Delete removes a session. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired session and reports how many went.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
