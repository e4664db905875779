package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vpbank/snmp_monitor/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

// UserByName returns the account for a username. The boolean is false when no
// such user exists.
func (s *Store) UserByName(ctx context.Context, username string) (models.User, bool, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, username, pass_hash, pass_salt FROM users WHERE username = ?", username).
		Scan(&u.ID, &u.Username, &u.PassHash, &u.PassSalt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, fmt.Errorf("store: user %s: %w", username, err)
	}
	return u, true, nil
}

// AddUser inserts one account with its precomputed hash and salt.
func (s *Store) AddUser(ctx context.Context, username, passHash, passSalt string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, pass_hash, pass_salt) VALUES (?, ?, ?)",
		username, passHash, passSalt)
	if err != nil {
		return fmt.Errorf("store: add user %s: %w", username, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

// SessionForUser returns the user's session row. The boolean is false when no
// row exists (a revoked session still has a row, with an empty code).
func (s *Store) SessionForUser(ctx context.Context, userID int64) (models.Session, bool, error) {
	var (
		sess    models.Session
		expires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, code, expires_at FROM sessions WHERE user_id = ?", userID).
		Scan(&sess.UserID, &sess.Code, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("store: session for user %d: %w", userID, err)
	}
	if expires.Valid {
		sess.Expires = expires.Time
	}
	return sess, true, nil
}

// SessionCodeInUse reports whether code is currently assigned to any user
// other than userID. Used by the gateway's collision-avoidance loop.
func (s *Store) SessionCodeInUse(ctx context.Context, code string, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE code = ? AND code <> '' AND user_id <> ?", code, userID).
		Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: session code lookup: %w", err)
	}
	return n > 0, nil
}

// ReplaceSession installs a new code and expiry for the user, superseding any
// previously issued code.
func (s *Store) ReplaceSession(ctx context.Context, userID int64, code string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, code, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET code = excluded.code, expires_at = excluded.expires_at`,
		userID, code, expires)
	if err != nil {
		return fmt.Errorf("store: replace session user %d: %w", userID, err)
	}
	return nil
}

// ClearSession revokes the user's session by blanking its code and expiry.
func (s *Store) ClearSession(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET code = '', expires_at = NULL WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("store: clear session user %d: %w", userID, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Audit trail
// ─────────────────────────────────────────────────────────────────────────────

// AddUserLog appends one audit trail row.
func (s *Store) AddUserLog(ctx context.Context, userID int64, kind models.UserLogKind) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_log (user_id, logged_at, kind) VALUES (?, ?, ?)",
		userID, time.Now().UTC(), int(kind))
	if err != nil {
		return fmt.Errorf("store: add user log: %w", err)
	}
	return nil
}

// UserLogCount returns how many audit rows of the given kind exist for a
// user. Exposed for the query surface and tests.
func (s *Store) UserLogCount(ctx context.Context, userID int64, kind models.UserLogKind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_log WHERE user_id = ? AND kind = ?", userID, int(kind)).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: user log count: %w", err)
	}
	return n, nil
}
