// Package store implements the persistence port of the SNMP Monitor over an
// embedded SQLite database.
//
// It owns the relational schema for the whole system — agents and their USM
// profiles, the MIB and trap catalogs, declared interface links, poll history,
// trap history, and the user/session/audit tables — and exposes scoped,
// context-bound operations over a pooled *sql.DB. Every operation acquires a
// connection from the pool for its own unit of work and releases it on every
// exit path; poll runs buffer their samples in memory and flush them in one
// short transaction at commit, so a run becomes visible with all of its
// samples or leaves no trace — and an in-progress run never holds the write
// lock against other agents' runs or the trap receiver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// ─────────────────────────────────────────────────────────────────────────────
// Store
// ─────────────────────────────────────────────────────────────────────────────

// Store is the handle to the relational history. It is safe for concurrent
// use; the underlying pool serialises writes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the database at path and applies the
// schema. The DSN enables WAL and a busy timeout so that the poller, the trap
// receiver, and query clients can share the file.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	agent_id         INTEGER PRIMARY KEY,
	host_address     TEXT    NOT NULL,
	poll_port        INTEGER NOT NULL,
	trap_port        INTEGER NOT NULL,
	hostname         TEXT    NOT NULL,
	icon_id          INTEGER NOT NULL DEFAULT 0,
	pos_x            INTEGER NOT NULL DEFAULT 0,
	pos_y            INTEGER NOT NULL DEFAULT 0,
	packet_threshold INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS security_profiles (
	agent_id       INTEGER PRIMARY KEY REFERENCES agents(agent_id) ON DELETE CASCADE,
	security_name  TEXT NOT NULL,
	security_level TEXT NOT NULL,
	auth_protocol  TEXT NOT NULL DEFAULT '',
	auth_key       TEXT NOT NULL DEFAULT '',
	priv_protocol  TEXT NOT NULL DEFAULT '',
	priv_key       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS mib_group_assignments (
	agent_id  INTEGER NOT NULL REFERENCES agents(agent_id) ON DELETE CASCADE,
	group_oid TEXT    NOT NULL,
	PRIMARY KEY (agent_id, group_oid)
);

CREATE TABLE IF NOT EXISTS mib_objects (
	object_oid TEXT PRIMARY KEY,
	name       TEXT    NOT NULL,
	group_oid  TEXT    NOT NULL,
	ord        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trap_definitions (
	trap_id     INTEGER PRIMARY KEY,
	trap_oid    TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	handling    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS interface_links (
	link_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	origin_agent_id INTEGER NOT NULL,
	origin_mac      TEXT    NOT NULL,
	origin_if_index TEXT    NOT NULL DEFAULT '',
	peer_agent_id   INTEGER NOT NULL,
	peer_mac        TEXT    NOT NULL,
	peer_if_index   TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS poll_runs (
	run_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id   INTEGER  NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS poll_samples (
	run_id     INTEGER NOT NULL REFERENCES poll_runs(run_id) ON DELETE CASCADE,
	object_oid TEXT    NOT NULL,
	row_index  TEXT    NOT NULL,
	value      TEXT    NOT NULL,
	PRIMARY KEY (run_id, object_oid, row_index)
);

CREATE TABLE IF NOT EXISTS trap_events (
	trap_event_id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id      INTEGER  NOT NULL,
	trap_id       INTEGER  NOT NULL,
	received_at   DATETIME NOT NULL,
	detail        TEXT     NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS users (
	user_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	username  TEXT NOT NULL UNIQUE,
	pass_hash TEXT NOT NULL,
	pass_salt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	user_id    INTEGER PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
	code       TEXT     NOT NULL DEFAULT '',
	expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS user_log (
	entry_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id   INTEGER  NOT NULL,
	logged_at DATETIME NOT NULL,
	kind      INTEGER  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_runs_agent    ON poll_runs(agent_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_trap_events_agent  ON trap_events(agent_id, received_at DESC);
CREATE INDEX IF NOT EXISTS idx_mib_objects_group  ON mib_objects(group_oid, ord);
CREATE INDEX IF NOT EXISTS idx_sessions_code      ON sessions(code);
`

// ─────────────────────────────────────────────────────────────────────────────
// Resets
// ─────────────────────────────────────────────────────────────────────────────

// ResetTelemetry clears the agent table family: links, poll history, trap
// history, USM profiles, group assignments, and the agents themselves.
// Identity counters restart at 1.
func (s *Store) ResetTelemetry(ctx context.Context) error {
	return s.resetTables(ctx,
		"interface_links", "poll_samples", "poll_runs", "trap_events",
		"security_profiles", "mib_group_assignments", "agents",
	)
}

// ResetTrapCatalog clears the trap definition catalog.
func (s *Store) ResetTrapCatalog(ctx context.Context) error {
	return s.resetTables(ctx, "trap_definitions")
}

// ResetUsers clears sessions, the audit trail, and the user accounts.
func (s *Store) ResetUsers(ctx context.Context) error {
	return s.resetTables(ctx, "sessions", "user_log", "users")
}

func (s *Store) resetTables(ctx context.Context, tables ...string) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("store: reset %s: %w", t, err)
		}
		// Restart the identity counter for the table family.
		if _, err := s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", t); err != nil {
			return fmt.Errorf("store: reset sequence %s: %w", t, err)
		}
	}
	return nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
