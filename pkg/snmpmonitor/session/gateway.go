// Package session implements the session-token gateway that guards access to
// the stored history.
//
// Tokens are opaque 25-character codes bound to a user identity with a
// 30-minute sliding expiry: every successful validation is followed by a
// refresh that issues a fresh code, superseding the previous one, so at most
// one code per user is ever live. Authentication, validation, and revocation
// outcomes are enumerated data values — nothing in this package raises past
// its boundary.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/vpbank/snmp_monitor/models"
)

// sessionTTL is the lifetime granted to a code on issue and on every refresh.
const sessionTTL = 30 * time.Minute

// ─────────────────────────────────────────────────────────────────────────────
// Store — persistence dependency
// ─────────────────────────────────────────────────────────────────────────────

// Store is the subset of the persistence port the gateway consumes.
type Store interface {
	UserByName(ctx context.Context, username string) (models.User, bool, error)
	SessionForUser(ctx context.Context, userID int64) (models.Session, bool, error)
	SessionCodeInUse(ctx context.Context, code string, userID int64) (bool, error)
	ReplaceSession(ctx context.Context, userID int64, code string, expires time.Time) error
	ClearSession(ctx context.Context, userID int64) error
	AddUserLog(ctx context.Context, userID int64, kind models.UserLogKind) error
}

// CodeSource produces one candidate session code. The default draws from
// crypto/rand; tests substitute a deterministic source.
type CodeSource func() (string, error)

// ─────────────────────────────────────────────────────────────────────────────
// Gateway
// ─────────────────────────────────────────────────────────────────────────────

// Gateway issues, validates, refreshes, and revokes session codes.
type Gateway struct {
	store   Store
	logger  *slog.Logger
	newCode CodeSource
	now     func() time.Time
}

// New creates a Gateway with the default random code source.
func New(store Store, logger *slog.Logger) *Gateway {
	return NewWithCodeSource(store, GenerateCode, logger)
}

// NewWithCodeSource creates a Gateway whose codes come from src.
func NewWithCodeSource(store Store, src CodeSource, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Gateway{store: store, logger: logger, newCode: src, now: time.Now}
}

// Authenticate checks username/password against the stored salted digest.
// On a match it issues a new session, records a login-success audit row, and
// returns the fresh code. On a mismatch it records a login-failure audit row
// and returns no session.
func (g *Gateway) Authenticate(ctx context.Context, username, password string) (models.Outcome, string) {
	if username == "" || password == "" {
		return models.OutcomeInvalid, ""
	}

	user, ok, err := g.store.UserByName(ctx, username)
	if err != nil {
		return models.OutcomeDBError, ""
	}
	if !ok {
		return models.OutcomeFailed, ""
	}

	if HashPassword(password, user.PassSalt) != user.PassHash {
		if err := g.store.AddUserLog(ctx, user.ID, models.UserLogLoginFailure); err != nil {
			g.logger.Warn("session: audit write failed", "user", username, "error", err)
		}
		return models.OutcomeFailed, ""
	}

	code, err := g.issue(ctx, user.ID)
	if err != nil {
		return models.OutcomeDBError, ""
	}
	if err := g.store.AddUserLog(ctx, user.ID, models.UserLogLoginSuccess); err != nil {
		g.logger.Warn("session: audit write failed", "user", username, "error", err)
	}
	return models.OutcomeSuccess, code
}

// Validate checks a presented code. Outcomes: invalid when the code length is
// wrong, failed when no matching user/session pair exists, timeout when the
// matching session has expired, dberror, or success.
func (g *Gateway) Validate(ctx context.Context, username, code string) models.Outcome {
	if len(code) != models.SessionCodeLength {
		return models.OutcomeInvalid
	}

	user, ok, err := g.store.UserByName(ctx, username)
	if err != nil {
		return models.OutcomeDBError
	}
	if !ok {
		return models.OutcomeFailed
	}

	sess, ok, err := g.store.SessionForUser(ctx, user.ID)
	if err != nil {
		return models.OutcomeDBError
	}
	if !ok || sess.Code == "" || sess.Code != code {
		return models.OutcomeFailed
	}
	if !g.now().Before(sess.Expires) {
		return models.OutcomeTimeout
	}
	return models.OutcomeSuccess
}

// Refresh issues a new code and expiry for the user, replacing any prior
// session row. The returned code is always a concrete string of the fixed
// session-code length.
func (g *Gateway) Refresh(ctx context.Context, username string) (string, error) {
	user, ok, err := g.store.UserByName(ctx, username)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("session: refresh: unknown user %q", username)
	}
	return g.issue(ctx, user.ID)
}

// Revoke clears the user's session and records a logout audit row. An
// invalid, stale, or mismatched code is reported without side effects.
func (g *Gateway) Revoke(ctx context.Context, username, code string) models.Outcome {
	if out := g.Validate(ctx, username, code); out != models.OutcomeSuccess {
		return out
	}

	user, ok, err := g.store.UserByName(ctx, username)
	if err != nil || !ok {
		return models.OutcomeDBError
	}
	if err := g.store.ClearSession(ctx, user.ID); err != nil {
		return models.OutcomeDBError
	}
	if err := g.store.AddUserLog(ctx, user.ID, models.UserLogLogout); err != nil {
		g.logger.Warn("session: audit write failed", "user", username, "error", err)
	}
	return models.OutcomeSuccess
}

// issue generates a unique code and installs it with a fresh expiry,
// regenerating on the (unlikely) collision with another live session.
func (g *Gateway) issue(ctx context.Context, userID int64) (string, error) {
	for {
		code, err := g.newCode()
		if err != nil {
			return "", err
		}
		inUse, err := g.store.SessionCodeInUse(ctx, code, userID)
		if err != nil {
			return "", err
		}
		if inUse {
			g.logger.Debug("session: code collision, regenerating")
			continue
		}
		if err := g.store.ReplaceSession(ctx, userID, code, g.now().Add(sessionTTL)); err != nil {
			return "", err
		}
		return code, nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hashing & code generation
// ─────────────────────────────────────────────────────────────────────────────

// HashPassword returns the hex SHA-256 digest of password+salt, the stored
// credential form.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// GenerateSalt returns a fresh random salt for a new account.
func GenerateSalt() (string, error) {
	return randomString(50)
}

// GenerateCode returns one random session code of the fixed length.
func GenerateCode() (string, error) {
	return randomString(models.SessionCodeLength)
}

// randomString draws length hex characters from crypto/rand.
func randomString(length int) (string, error) {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: random source: %w", err)
	}
	return hex.EncodeToString(buf)[:length], nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
