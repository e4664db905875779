// Package poller drives the polling side of the collector: on every cycle it
// enumerates the registered agents and, for each one, opens a poll run,
// walks the agent's assigned MIB groups, and commits the run — or rolls the
// whole run back on the first walk error, leaving the history untouched.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/snmp/walk"
)

// ─────────────────────────────────────────────────────────────────────────────
// Dependencies
// ─────────────────────────────────────────────────────────────────────────────

// RunRecorder accumulates one poll run. Commit and Rollback are mutually
// exclusive and terminal.
type RunRecorder interface {
	ID() int64
	AddSample(ctx context.Context, objectOID, rowIndex, value string) error
	ResolveLink(ctx context.Context, mac, rowIndex string) error
	Commit() error
	Rollback() error
}

// Store is the subset of the persistence port the poller consumes.
type Store interface {
	AgentIDs(ctx context.Context) ([]int64, error)
	Agent(ctx context.Context, id int64) (models.Agent, bool, error)
	SecurityProfile(ctx context.Context, agentID int64) (models.SecurityProfile, bool, error)
	MibGroups(ctx context.Context, agentID int64) ([]string, error)
	CatalogForGroups(ctx context.Context, groups []string) ([]models.MibObject, error)
	BeginPollRun(ctx context.Context, agentID int64) (RunRecorder, error)
}

// Walker performs one paginated subtree enumeration. *walk.Walker satisfies
// this; tests inject a stub.
type Walker interface {
	Walk(target walk.Target, root string, catalog *walk.Catalog, emit walk.EmitFunc) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Poller
// ─────────────────────────────────────────────────────────────────────────────

// Poller polls every registered agent once per invocation of PollAll.
// A per-agent in-flight guard skips agents whose previous run has not
// finished, so a slow agent never accumulates overlapping runs.
type Poller struct {
	store  Store
	walker Walker
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[int64]bool
}

// New creates a Poller.
func New(store Store, walker Walker, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Poller{
		store:    store,
		walker:   walker,
		logger:   logger,
		inflight: make(map[int64]bool),
	}
}

// PollAll runs one poll cycle: every registered agent is polled in its own
// goroutine and failures stay isolated to the agent involved. PollAll returns
// when every agent it started has finished; agents skipped by the in-flight
// guard are not waited on.
func (p *Poller) PollAll(ctx context.Context) {
	ids, err := p.store.AgentIDs(ctx)
	if err != nil {
		p.logger.Error("poller: agent enumeration failed", "error", err)
		return
	}
	if len(ids) == 0 {
		p.logger.Warn("poller: no registered agents")
		return
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		if !p.acquire(id) {
			p.logger.Warn("poller: previous run still in flight, skipping", "agent", id)
			continue
		}
		wg.Add(1)
		go func(agentID int64) {
			defer wg.Done()
			defer p.release(agentID)
			if err := p.pollAgent(ctx, agentID); err != nil {
				p.logger.Error("poller: poll failed", "agent", agentID, "error", err)
			}
		}(id)
	}
	wg.Wait()
}

// pollAgent executes the OPEN → WALK… → COMMIT/ROLLBACK cycle for one agent.
func (p *Poller) pollAgent(ctx context.Context, agentID int64) error {
	agent, ok, err := p.store.Agent(ctx, agentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("agent %d not registered", agentID)
	}

	profile, ok, err := p.store.SecurityProfile(ctx, agentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("agent %d has no security profile", agentID)
	}

	groups, err := p.store.MibGroups(ctx, agentID)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		p.logger.Warn("poller: agent has no MIB group assignments", "agent", agentID)
		return nil
	}

	objects, err := p.store.CatalogForGroups(ctx, groups)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return fmt.Errorf("agent %d: no catalog objects for assigned groups", agentID)
	}
	catalog := walk.NewCatalog(objects)

	target := walk.Target{
		Host:     agent.HostAddress,
		Port:     agent.PollPort,
		Security: profile,
	}

	// The recorder buffers everything in memory; no database lock is held
	// while the agent is being walked, and nothing becomes visible until
	// Commit.
	rec, err := p.store.BeginPollRun(ctx, agentID)
	if err != nil {
		return err
	}

	for _, root := range groups {
		err := p.walker.Walk(target, root, catalog, func(s walk.Sample) error {
			if err := rec.AddSample(ctx, s.ObjectOID, s.RowIndex, s.Value); err != nil {
				return err
			}
			if s.ObjectOID == walk.OIDIfPhysAddress {
				return rec.ResolveLink(ctx, s.Value, s.RowIndex)
			}
			return nil
		})
		if err != nil {
			// One bad group voids the whole run; further groups for
			// this agent are not attempted.
			if rbErr := rec.Rollback(); rbErr != nil {
				p.logger.Error("poller: rollback failed", "agent", agentID, "error", rbErr)
			}
			return fmt.Errorf("agent %d group %s: %w", agentID, root, err)
		}
	}

	if err := rec.Commit(); err != nil {
		return fmt.Errorf("agent %d: %w", agentID, err)
	}
	p.logger.Info("poller: run committed", "agent", agentID, "run", rec.ID())
	return nil
}

// acquire marks an agent as in flight; false when it already is.
func (p *Poller) acquire(agentID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[agentID] {
		return false
	}
	p.inflight[agentID] = true
	return true
}

func (p *Poller) release(agentID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, agentID)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
