package session_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/session"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mock store
// ─────────────────────────────────────────────────────────────────────────────

type mockStore struct {
	users    map[string]models.User
	sessions map[int64]models.Session
	taken    map[string]int64 // code → owning user, for collision checks
	audit    []models.UserLogKind
}

func newMockStore() *mockStore {
	return &mockStore{
		users:    make(map[string]models.User),
		sessions: make(map[int64]models.Session),
		taken:    make(map[string]int64),
	}
}

func (m *mockStore) addUser(id int64, username, password string) {
	salt := "salt-" + username
	m.users[username] = models.User{
		ID:       id,
		Username: username,
		PassHash: session.HashPassword(password, salt),
		PassSalt: salt,
	}
}

func (m *mockStore) UserByName(_ context.Context, username string) (models.User, bool, error) {
	u, ok := m.users[username]
	return u, ok, nil
}

func (m *mockStore) SessionForUser(_ context.Context, userID int64) (models.Session, bool, error) {
	s, ok := m.sessions[userID]
	return s, ok, nil
}

func (m *mockStore) SessionCodeInUse(_ context.Context, code string, userID int64) (bool, error) {
	owner, ok := m.taken[code]
	return ok && owner != userID, nil
}

func (m *mockStore) ReplaceSession(_ context.Context, userID int64, code string, expires time.Time) error {
	m.sessions[userID] = models.Session{UserID: userID, Code: code, Expires: expires}
	m.taken[code] = userID
	return nil
}

func (m *mockStore) ClearSession(_ context.Context, userID int64) error {
	s := m.sessions[userID]
	delete(m.taken, s.Code)
	s.Code = ""
	s.Expires = time.Time{}
	m.sessions[userID] = s
	return nil
}

func (m *mockStore) AddUserLog(_ context.Context, _ int64, kind models.UserLogKind) error {
	m.audit = append(m.audit, kind)
	return nil
}

// seqCodes returns a deterministic code source yielding the given codes in
// order, then repeating the last one.
func seqCodes(codes ...string) session.CodeSource {
	i := 0
	return func() (string, error) {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

func code(c byte) string {
	return strings.Repeat(string(c), models.SessionCodeLength)
}

// ─────────────────────────────────────────────────────────────────────────────
// Authenticate
// ─────────────────────────────────────────────────────────────────────────────

func TestAuthenticateIssuesSession(t *testing.T) {
	st := newMockStore()
	st.addUser(1, "alice", "secret")
	g := session.NewWithCodeSource(st, seqCodes(code('a')), nil)

	out, issued := g.Authenticate(context.Background(), "alice", "secret")
	if out != models.OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", out)
	}
	if issued != code('a') {
		t.Fatalf("code = %q, want %q", issued, code('a'))
	}
	if got := st.sessions[1].Code; got != issued {
		t.Fatalf("stored code = %q, want %q", got, issued)
	}
	if remaining := time.Until(st.sessions[1].Expires); remaining < 29*time.Minute || remaining > 31*time.Minute {
		t.Fatalf("expiry %v from now, want ~30m", remaining)
	}
	if len(st.audit) != 1 || st.audit[0] != models.UserLogLoginSuccess {
		t.Fatalf("audit = %v, want one login-success row", st.audit)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	st := newMockStore()
	st.addUser(1, "alice", "secret")
	g := session.NewWithCodeSource(st, seqCodes(code('a')), nil)
	ctx := context.Background()

	if out, _ := g.Authenticate(ctx, "alice", "wrong"); out != models.OutcomeFailed {
		t.Fatalf("wrong password outcome = %v, want failed", out)
	}
	if len(st.audit) != 1 || st.audit[0] != models.UserLogLoginFailure {
		t.Fatalf("audit = %v, want one login-failure row", st.audit)
	}

	if out, _ := g.Authenticate(ctx, "nobody", "secret"); out != models.OutcomeFailed {
		t.Fatalf("unknown user outcome = %v, want failed", out)
	}
	if out, _ := g.Authenticate(ctx, "", "secret"); out != models.OutcomeInvalid {
		t.Fatalf("empty username outcome = %v, want invalid", out)
	}
	if out, _ := g.Authenticate(ctx, "alice", ""); out != models.OutcomeInvalid {
		t.Fatalf("empty password outcome = %v, want invalid", out)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Validate
// ─────────────────────────────────────────────────────────────────────────────

func TestValidateOutcomes(t *testing.T) {
	st := newMockStore()
	st.addUser(1, "alice", "secret")
	g := session.NewWithCodeSource(st, seqCodes(code('a')), nil)
	ctx := context.Background()

	if _, issued := g.Authenticate(ctx, "alice", "secret"); issued == "" {
		t.Fatal("authenticate did not issue a code")
	}

	if out := g.Validate(ctx, "alice", code('a')); out != models.OutcomeSuccess {
		t.Fatalf("live code outcome = %v, want success", out)
	}
	if out := g.Validate(ctx, "alice", "short"); out != models.OutcomeInvalid {
		t.Fatalf("short code outcome = %v, want invalid", out)
	}
	if out := g.Validate(ctx, "alice", code('z')); out != models.OutcomeFailed {
		t.Fatalf("mismatched code outcome = %v, want failed", out)
	}
	if out := g.Validate(ctx, "nobody", code('a')); out != models.OutcomeFailed {
		t.Fatalf("unknown user outcome = %v, want failed", out)
	}

	// Force the session past its expiry.
	s := st.sessions[1]
	s.Expires = time.Now().Add(-time.Second)
	st.sessions[1] = s
	if out := g.Validate(ctx, "alice", code('a')); out != models.OutcomeTimeout {
		t.Fatalf("expired code outcome = %v, want timeout", out)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Refresh
// ─────────────────────────────────────────────────────────────────────────────

func TestRefreshIssuesConcreteCode(t *testing.T) {
	st := newMockStore()
	st.addUser(1, "alice", "secret")
	g := session.NewWithCodeSource(st, seqCodes(code('a'), code('b')), nil)
	ctx := context.Background()

	if _, issued := g.Authenticate(ctx, "alice", "secret"); issued != code('a') {
		t.Fatalf("authenticate issued %q", issued)
	}

	fresh, err := g.Refresh(ctx, "alice")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(fresh) != models.SessionCodeLength {
		t.Fatalf("refreshed code length = %d, want %d", len(fresh), models.SessionCodeLength)
	}
	if fresh != code('b') {
		t.Fatalf("refreshed code = %q, want the next generated code", fresh)
	}

	// The superseded code no longer validates; the fresh one does.
	if out := g.Validate(ctx, "alice", code('a')); out != models.OutcomeFailed {
		t.Fatalf("superseded code outcome = %v, want failed", out)
	}
	if out := g.Validate(ctx, "alice", fresh); out != models.OutcomeSuccess {
		t.Fatalf("fresh code outcome = %v, want success", out)
	}

	if _, err := g.Refresh(ctx, "nobody"); err == nil {
		t.Fatal("refresh for unknown user should error")
	}
}

func TestIssueRegeneratesOnCollision(t *testing.T) {
	st := newMockStore()
	st.addUser(1, "alice", "secret")
	st.addUser(2, "bob", "hunter2")

	// Both users draw the same first candidate; bob must regenerate.
	g := session.NewWithCodeSource(st, seqCodes(code('a'), code('a'), code('b')), nil)
	ctx := context.Background()

	if _, issued := g.Authenticate(ctx, "alice", "secret"); issued != code('a') {
		t.Fatalf("alice issued %q", issued)
	}
	_, issued := g.Authenticate(ctx, "bob", "hunter2")
	if issued != code('b') {
		t.Fatalf("bob issued %q, want the regenerated code", issued)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Revoke
// ─────────────────────────────────────────────────────────────────────────────

func TestRevokeClearsSession(t *testing.T) {
	st := newMockStore()
	st.addUser(1, "alice", "secret")
	g := session.NewWithCodeSource(st, seqCodes(code('a')), nil)
	ctx := context.Background()

	g.Authenticate(ctx, "alice", "secret")

	if out := g.Revoke(ctx, "alice", code('z')); out != models.OutcomeFailed {
		t.Fatalf("mismatched code outcome = %v, want failed", out)
	}
	if st.sessions[1].Code == "" {
		t.Fatal("failed revoke must not clear the session")
	}

	if out := g.Revoke(ctx, "alice", code('a')); out != models.OutcomeSuccess {
		t.Fatalf("revoke outcome = %v, want success", out)
	}
	if st.sessions[1].Code != "" {
		t.Fatal("session code survives revoke")
	}
	last := st.audit[len(st.audit)-1]
	if last != models.UserLogLogout {
		t.Fatalf("last audit row = %v, want logout", last)
	}

	// The revoked code no longer validates.
	if out := g.Validate(ctx, "alice", code('a')); out != models.OutcomeFailed {
		t.Fatalf("revoked code outcome = %v, want failed", out)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hashing & generation
// ─────────────────────────────────────────────────────────────────────────────

func TestHashPasswordIsSaltedAndStable(t *testing.T) {
	a := session.HashPassword("secret", "salt1")
	if a != session.HashPassword("secret", "salt1") {
		t.Fatal("hash not deterministic")
	}
	if a == session.HashPassword("secret", "salt2") {
		t.Fatal("salt does not influence the hash")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestGenerateCodeLength(t *testing.T) {
	c, err := session.GenerateCode()
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if len(c) != models.SessionCodeLength {
		t.Fatalf("code length = %d, want %d", len(c), models.SessionCodeLength)
	}
}
