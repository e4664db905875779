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
// Poll runs — buffered recorder
// ─────────────────────────────────────────────────────────────────────────────

// RunRecorder accumulates the samples of one poll run in memory. Commit
// flushes the run, its samples, and its link resolutions in one short write
// transaction, so the run becomes visible atomically and no database lock is
// held while the agent is being walked; Rollback discards the buffer and
// leaves no trace of the attempt. Exactly one of the two must be called.
type RunRecorder struct {
	s       *Store
	agentID int64
	started time.Time

	runID       int64 // assigned at Commit; 0 before
	samples     []sampleRow
	resolutions []linkResolution
}

type sampleRow struct {
	objectOID string
	rowIndex  string
	value     string
}

type linkResolution struct {
	mac      string
	rowIndex string
}

// BeginPollRun opens a poll run for the agent. The run's timestamp is fixed
// now, but nothing touches the database — and therefore nothing can block
// other writers — until Commit.
func (s *Store) BeginPollRun(ctx context.Context, agentID int64) (*RunRecorder, error) {
	return &RunRecorder{s: s, agentID: agentID, started: time.Now().UTC()}, nil
}

// ID returns the run identity assigned at Commit, or 0 for an uncommitted
// run.
func (r *RunRecorder) ID() int64 { return r.runID }

// AddSample appends one normalized sample to the run.
func (r *RunRecorder) AddSample(ctx context.Context, objectOID, rowIndex, value string) error {
	r.samples = append(r.samples, sampleRow{objectOID: objectOID, rowIndex: rowIndex, value: value})
	return nil
}

// ResolveLink records that the polled agent observed mac on interface
// rowIndex, filling the resolved interface index on whichever side of a
// declared link matches. A later poll may overwrite an earlier resolution.
func (r *RunRecorder) ResolveLink(ctx context.Context, mac, rowIndex string) error {
	r.resolutions = append(r.resolutions, linkResolution{mac: mac, rowIndex: rowIndex})
	return nil
}

// Commit flushes the buffered run atomically and makes it visible.
func (r *RunRecorder) Commit() error {
	tx, err := r.s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: commit run for agent %d: %w", r.agentID, err)
	}

	res, err := tx.Exec(
		"INSERT INTO poll_runs (agent_id, created_at) VALUES (?, ?)",
		r.agentID, r.started)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: commit run for agent %d: %w", r.agentID, err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: commit run for agent %d: %w", r.agentID, err)
	}

	for _, smp := range r.samples {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO poll_samples (run_id, object_oid, row_index, value)
			VALUES (?, ?, ?, ?)`, runID, smp.objectOID, smp.rowIndex, smp.value); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: commit run %d sample %s: %w", runID, smp.objectOID, err)
		}
	}

	for _, lr := range r.resolutions {
		if _, err := tx.Exec(`
			UPDATE interface_links SET origin_if_index = ?
			WHERE origin_agent_id = ? AND origin_mac = ?`,
			lr.rowIndex, r.agentID, lr.mac); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: commit run %d link origin: %w", runID, err)
		}
		if _, err := tx.Exec(`
			UPDATE interface_links SET peer_if_index = ?
			WHERE peer_agent_id = ? AND peer_mac = ?`,
			lr.rowIndex, r.agentID, lr.mac); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: commit run %d link peer: %w", runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run for agent %d: %w", r.agentID, err)
	}
	r.runID = runID
	return nil
}

// Rollback discards the buffered run, its samples, and its link resolutions.
func (r *RunRecorder) Rollback() error {
	r.samples = nil
	r.resolutions = nil
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Poll history reads
// ─────────────────────────────────────────────────────────────────────────────

// PollRunIDs returns an agent's run ids, most recent first.
func (s *Store) PollRunIDs(ctx context.Context, agentID int64) ([]int64, error) {
	return s.idQuery(ctx,
		"SELECT run_id FROM poll_runs WHERE agent_id = ? ORDER BY created_at DESC, run_id DESC", agentID)
}

// PollRun returns one run record. The boolean is false when the id is
// unknown.
func (s *Store) PollRun(ctx context.Context, runID int64) (models.PollRun, bool, error) {
	var run models.PollRun
	err := s.db.QueryRowContext(ctx,
		"SELECT run_id, agent_id, created_at FROM poll_runs WHERE run_id = ?", runID).
		Scan(&run.ID, &run.AgentID, &run.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PollRun{}, false, nil
	}
	if err != nil {
		return models.PollRun{}, false, fmt.Errorf("store: poll run %d: %w", runID, err)
	}
	return run, true, nil
}

// RunSamples returns all samples of a run in catalog order (group order, then
// row index), the order the original snapshot views expect.
func (s *Store) RunSamples(ctx context.Context, runID int64) ([]models.PollSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.run_id, p.object_oid, p.row_index, p.value
		FROM poll_samples p
		INNER JOIN mib_objects m ON p.object_oid = m.object_oid
		WHERE p.run_id = ?
		ORDER BY m.ord, p.row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: run samples %d: %w", runID, err)
	}
	defer rows.Close()

	var samples []models.PollSample
	for rows.Next() {
		var smp models.PollSample
		if err := rows.Scan(&smp.RunID, &smp.ObjectOID, &smp.RowIndex, &smp.Value); err != nil {
			return nil, fmt.Errorf("store: run samples %d: %w", runID, err)
		}
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}

// AgentForRun resolves the agent a run belongs to.
func (s *Store) AgentForRun(ctx context.Context, runID int64) (models.Agent, bool, error) {
	run, ok, err := s.PollRun(ctx, runID)
	if err != nil || !ok {
		return models.Agent{}, false, err
	}
	return s.Agent(ctx, run.AgentID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Trap history
// ─────────────────────────────────────────────────────────────────────────────

// AddTrapEvent appends one classified trap notification.
func (s *Store) AddTrapEvent(ctx context.Context, agentID, trapID int64, detail string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO trap_events (agent_id, trap_id, received_at, detail) VALUES (?, ?, ?, ?)",
		agentID, trapID, time.Now().UTC(), detail)
	if err != nil {
		return fmt.Errorf("store: add trap event: %w", err)
	}
	return nil
}

// TrapEventIDs returns an agent's trap event ids, most recent first.
func (s *Store) TrapEventIDs(ctx context.Context, agentID int64) ([]int64, error) {
	return s.idQuery(ctx,
		"SELECT trap_event_id FROM trap_events WHERE agent_id = ? ORDER BY received_at DESC, trap_event_id DESC", agentID)
}

// TrapEventRecord is a trap event joined with its catalog definition, the
// full record the query façade serves.
type TrapEventRecord struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"date"`
	Name        string    `json:"name"`
	Description string    `json:"descs"`
	Handling    string    `json:"how"`
	Detail      string    `json:"other"`
}

// TrapEvent returns one trap event with its definition fields. The boolean is
// false when the id is unknown.
func (s *Store) TrapEvent(ctx context.Context, eventID int64) (TrapEventRecord, bool, error) {
	var rec TrapEventRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT e.trap_event_id, e.received_at, d.name, d.description, d.handling, e.detail
		FROM trap_events e
		INNER JOIN trap_definitions d ON e.trap_id = d.trap_id
		WHERE e.trap_event_id = ?`, eventID).
		Scan(&rec.ID, &rec.Timestamp, &rec.Name, &rec.Description, &rec.Handling, &rec.Detail)
	if errors.Is(err, sql.ErrNoRows) {
		return TrapEventRecord{}, false, nil
	}
	if err != nil {
		return TrapEventRecord{}, false, fmt.Errorf("store: trap event %d: %w", eventID, err)
	}
	return rec, true, nil
}

// AgentForTrapEvent resolves the agent a trap event belongs to.
func (s *Store) AgentForTrapEvent(ctx context.Context, eventID int64) (models.Agent, bool, error) {
	var agentID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT agent_id FROM trap_events WHERE trap_event_id = ?", eventID).Scan(&agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Agent{}, false, nil
	}
	if err != nil {
		return models.Agent{}, false, fmt.Errorf("store: agent for trap event %d: %w", eventID, err)
	}
	return s.Agent(ctx, agentID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) idQuery(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: id query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: id query: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
