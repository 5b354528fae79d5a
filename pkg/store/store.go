// Package store keeps a SQLite history of finished recording sessions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session id is not in the history.
var ErrNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	started_at       INTEGER NOT NULL,
	ended_at         INTEGER NOT NULL,
	termination      TEXT    NOT NULL,
	clicks           INTEGER NOT NULL DEFAULT 0,
	typing           INTEGER NOT NULL DEFAULT 0,
	key_presses      INTEGER NOT NULL DEFAULT 0,
	audio_commands   INTEGER NOT NULL DEFAULT 0,
	failed_writes    INTEGER NOT NULL DEFAULT 0,
	capture_failures INTEGER NOT NULL DEFAULT 0,
	join_timeouts    TEXT    NOT NULL DEFAULT '[]' CHECK (json_valid(join_timeouts)),
	log_path         TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`

// Session is one row of history.
type Session struct {
	ID              string
	StartedAt       time.Time
	EndedAt         time.Time
	Termination     string
	Clicks          int
	Typing          int
	KeyPresses      int
	AudioCommands   int
	FailedWrites    int
	CaptureFailures int
	JoinTimeouts    []string
	LogPath         string
}

// Duration is how long the session recorded.
func (s Session) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// Events is the total number of logged events.
func (s Session) Events() int {
	return s.Clicks + s.Typing + s.KeyPresses + s.AudioCommands
}

// Store provides SQLite operations for session history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts or replaces a session row.
func (s *Store) Record(ctx context.Context, sess Session) error {
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("session id must not be empty")
	}
	timeouts := sess.JoinTimeouts
	if timeouts == nil {
		timeouts = []string{}
	}
	encoded, err := json.Marshal(timeouts)
	if err != nil {
		return fmt.Errorf("encode join timeouts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (
			id, started_at, ended_at, termination, clicks, typing, key_presses,
			audio_commands, failed_writes, capture_failures, join_timeouts, log_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.StartedAt.UTC().UnixMilli(),
		sess.EndedAt.UTC().UnixMilli(),
		sess.Termination,
		sess.Clicks,
		sess.Typing,
		sess.KeyPresses,
		sess.AudioCommands,
		sess.FailedWrites,
		sess.CaptureFailures,
		string(encoded),
		sess.LogPath,
	)
	if err != nil {
		return fmt.Errorf("record session %s: %w", sess.ID, err)
	}
	return nil
}

const selectColumns = `id, started_at, ended_at, termination, clicks, typing, key_presses,
	audio_commands, failed_writes, capture_failures, join_timeouts, log_path`

// List returns the most recent sessions first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	query := "SELECT " + selectColumns + " FROM sessions ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Get returns a single session by id.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess           Session
		started, ended int64
		timeouts       string
	)
	err := row.Scan(
		&sess.ID,
		&started,
		&ended,
		&sess.Termination,
		&sess.Clicks,
		&sess.Typing,
		&sess.KeyPresses,
		&sess.AudioCommands,
		&sess.FailedWrites,
		&sess.CaptureFailures,
		&timeouts,
		&sess.LogPath,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.StartedAt = time.UnixMilli(started).UTC()
	sess.EndedAt = time.UnixMilli(ended).UTC()
	if err := json.Unmarshal([]byte(timeouts), &sess.JoinTimeouts); err != nil {
		return Session{}, fmt.Errorf("decode join timeouts: %w", err)
	}
	if len(sess.JoinTimeouts) == 0 {
		sess.JoinTimeouts = nil
	}
	return sess, nil
}
