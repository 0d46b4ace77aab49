// Package session persists CLI session state: which users have been seen and
// who was active last, so restarting the agent resumes the same memory group.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite"
)

// userIDPattern constrains user identifiers: they become memory group IDs and
// graph query parameters, so only a conservative charset is allowed.
var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// ErrInvalidUserID is returned for identifiers outside the allowed charset or
// length.
var ErrInvalidUserID = errors.New("user id must be 1-50 characters of letters, digits, '_' or '-'")

// ValidateUserID checks an identifier against the allowed pattern.
func ValidateUserID(id string) error {
	if !userIDPattern.MatchString(id) {
		return ErrInvalidUserID
	}
	return nil
}

// User is one known user of the agent.
type User struct {
	ID        string
	FirstSeen time.Time
	LastSeen  time.Time
}

// Store is the SQLite-backed session store.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the session database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session schema migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			first_seen INTEGER NOT NULL,
			last_seen  INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Touch records activity for a user, creating it on first sight, and marks it
// as the last active user.
func (s *Store) Touch(userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	now := time.Now().Unix()

	_, err := s.db.Exec(
		`INSERT INTO users (id, first_seen, last_seen) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`,
		userID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record user: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO state (key, value) VALUES ('last_user', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to record last user: %w", err)
	}
	return nil
}

// LastUser returns the most recently active user ID, or "" when none is
// recorded yet.
func (s *Store) LastUser() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM state WHERE key = 'last_user'`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last user: %w", err)
	}
	return id, nil
}

// ListUsers returns all known users, most recently seen first.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`SELECT id, first_seen, last_seen FROM users ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var first, last int64
		if err := rows.Scan(&u.ID, &first, &last); err != nil {
			return nil, err
		}
		u.FirstSeen = time.Unix(first, 0)
		u.LastSeen = time.Unix(last, 0)
		users = append(users, u)
	}
	return users, rows.Err()
}
