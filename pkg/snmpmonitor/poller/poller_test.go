package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/poller"
	"github.com/vpbank/snmp_monitor/snmp/walk"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mocks
// ─────────────────────────────────────────────────────────────────────────────

type recordedSample struct {
	objectOID string
	rowIndex  string
	value     string
}

type mockRecorder struct {
	mu        sync.Mutex
	runID     int64
	samples   []recordedSample
	resolved  []recordedSample
	committed bool
	rolledBk  bool
}

func (m *mockRecorder) ID() int64 { return m.runID }

func (m *mockRecorder) AddSample(_ context.Context, objectOID, rowIndex, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, recordedSample{objectOID, rowIndex, value})
	return nil
}

func (m *mockRecorder) ResolveLink(_ context.Context, mac, rowIndex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, recordedSample{walk.OIDIfPhysAddress, rowIndex, mac})
	return nil
}

func (m *mockRecorder) Commit() error   { m.committed = true; return nil }
func (m *mockRecorder) Rollback() error { m.rolledBk = true; return nil }

type mockStore struct {
	agents    map[int64]models.Agent
	groups    map[int64][]string
	objects   []models.MibObject
	recorders map[int64]*mockRecorder

	mu     sync.Mutex
	nextID int64
}

func newMockStore() *mockStore {
	return &mockStore{
		agents:    make(map[int64]models.Agent),
		groups:    make(map[int64][]string),
		recorders: make(map[int64]*mockRecorder),
	}
}

func (m *mockStore) AgentIDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockStore) Agent(_ context.Context, id int64) (models.Agent, bool, error) {
	a, ok := m.agents[id]
	return a, ok, nil
}

func (m *mockStore) SecurityProfile(_ context.Context, agentID int64) (models.SecurityProfile, bool, error) {
	if _, ok := m.agents[agentID]; !ok {
		return models.SecurityProfile{}, false, nil
	}
	return models.SecurityProfile{
		AgentID:       agentID,
		SecurityName:  "monitor",
		SecurityLevel: "authpriv",
		AuthProtocol:  "sha",
		AuthKey:       "authkey123",
		PrivProtocol:  "aes",
		PrivKey:       "privkey123",
	}, true, nil
}

func (m *mockStore) MibGroups(_ context.Context, agentID int64) ([]string, error) {
	return m.groups[agentID], nil
}

func (m *mockStore) CatalogForGroups(context.Context, []string) ([]models.MibObject, error) {
	return m.objects, nil
}

func (m *mockStore) BeginPollRun(_ context.Context, agentID int64) (poller.RunRecorder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec := &mockRecorder{runID: m.nextID}
	m.recorders[agentID] = rec
	return rec, nil
}

// walkFunc adapts a function to poller.Walker.
type walkFunc func(target walk.Target, root string, catalog *walk.Catalog, emit walk.EmitFunc) error

func (f walkFunc) Walk(target walk.Target, root string, catalog *walk.Catalog, emit walk.EmitFunc) error {
	return f(target, root, catalog, emit)
}

func testCatalog() []models.MibObject {
	return []models.MibObject{
		{OID: "1.3.6.1.2.1.1.5", Name: "system_name", GroupOID: "1.3.6.1.2.1.1", Order: 1},
		{OID: walk.OIDIfPhysAddress, Name: "mac_address", GroupOID: "1.3.6.1.2.1.2", Order: 2},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestPollAllCommitsSamplesAndResolvesLinks(t *testing.T) {
	st := newMockStore()
	st.agents[1] = models.Agent{ID: 1, HostAddress: "192.0.2.10", PollPort: 161}
	st.groups[1] = []string{"1.3.6.1.2.1.1", "1.3.6.1.2.1.2"}
	st.objects = testCatalog()

	w := walkFunc(func(_ walk.Target, root string, _ *walk.Catalog, emit walk.EmitFunc) error {
		switch root {
		case "1.3.6.1.2.1.1":
			return emit(walk.Sample{ObjectOID: "1.3.6.1.2.1.1.5", RowIndex: "0", Value: "core-sw-01"})
		case "1.3.6.1.2.1.2":
			return emit(walk.Sample{ObjectOID: walk.OIDIfPhysAddress, RowIndex: "2", Value: "AA-BB-CC-00-11-22"})
		}
		return nil
	})

	p := poller.New(st, w, nil)
	p.PollAll(context.Background())

	rec := st.recorders[1]
	if rec == nil {
		t.Fatal("no run opened for agent 1")
	}
	if !rec.committed {
		t.Fatal("run was not committed")
	}
	if rec.rolledBk {
		t.Fatal("run was rolled back")
	}
	if len(rec.samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(rec.samples))
	}
	if len(rec.resolved) != 1 {
		t.Fatalf("resolved links = %d, want 1", len(rec.resolved))
	}
	if rec.resolved[0].value != "AA-BB-CC-00-11-22" || rec.resolved[0].rowIndex != "2" {
		t.Fatalf("unexpected link resolution: %+v", rec.resolved[0])
	}
}

func TestPollAllRollsBackFailedAgentOnly(t *testing.T) {
	st := newMockStore()
	st.agents[1] = models.Agent{ID: 1, HostAddress: "192.0.2.10", PollPort: 161}
	st.agents[2] = models.Agent{ID: 2, HostAddress: "192.0.2.11", PollPort: 161}
	st.groups[1] = []string{"1.3.6.1.2.1.1", "1.3.6.1.2.1.2"}
	st.groups[2] = []string{"1.3.6.1.2.1.1"}
	st.objects = testCatalog()

	var groupsWalked1 atomic.Int32
	w := walkFunc(func(target walk.Target, root string, _ *walk.Catalog, emit walk.EmitFunc) error {
		if target.Host == "192.0.2.10" {
			groupsWalked1.Add(1)
			return errors.New("request timeout")
		}
		return emit(walk.Sample{ObjectOID: "1.3.6.1.2.1.1.5", RowIndex: "0", Value: "edge-sw-02"})
	})

	p := poller.New(st, w, nil)
	p.PollAll(context.Background())

	if rec := st.recorders[1]; !rec.rolledBk || rec.committed {
		t.Fatalf("agent 1 run: committed=%v rolledBack=%v, want rollback only", rec.committed, rec.rolledBk)
	}
	// The first failure stops the remaining groups for that agent.
	if n := groupsWalked1.Load(); n != 1 {
		t.Fatalf("agent 1 groups walked = %d, want 1", n)
	}
	if rec := st.recorders[2]; !rec.committed || rec.rolledBk {
		t.Fatalf("agent 2 run: committed=%v rolledBack=%v, want commit", rec.committed, rec.rolledBk)
	}
}

func TestPollAllSkipsAgentStillInFlight(t *testing.T) {
	st := newMockStore()
	st.agents[1] = models.Agent{ID: 1, HostAddress: "192.0.2.10", PollPort: 161}
	st.groups[1] = []string{"1.3.6.1.2.1.1"}
	st.objects = testCatalog()

	release := make(chan struct{})
	started := make(chan struct{})
	var walks atomic.Int32
	w := walkFunc(func(_ walk.Target, _ string, _ *walk.Catalog, emit walk.EmitFunc) error {
		if walks.Add(1) == 1 {
			close(started)
			<-release
		}
		return emit(walk.Sample{ObjectOID: "1.3.6.1.2.1.1.5", RowIndex: "0", Value: "core-sw-01"})
	})

	p := poller.New(st, w, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.PollAll(context.Background())
	}()
	<-started

	// The agent is mid-walk; a second cycle must not start another run.
	p.PollAll(context.Background())
	if n := walks.Load(); n != 1 {
		t.Fatalf("walks = %d, want 1 while first run is in flight", n)
	}

	close(release)
	wg.Wait()

	// With the first run finished the agent can be polled again.
	p.PollAll(context.Background())
	if n := walks.Load(); n != 2 {
		t.Fatalf("walks = %d, want 2 after first run completed", n)
	}
}

type countingCycler struct {
	cycles atomic.Int32
}

func (c *countingCycler) PollAll(context.Context) { c.cycles.Add(1) }

func TestSchedulerFiresImmediatelyAndPerInterval(t *testing.T) {
	c := &countingCycler{}
	s := poller.NewScheduler(c, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for c.cycles.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.Stop()

	if n := c.cycles.Load(); n < 3 {
		t.Fatalf("cycles = %d, want at least 3 (immediate fire plus ticks)", n)
	}
}

func TestNewSchedulerDefaultsInterval(t *testing.T) {
	s := poller.NewScheduler(&countingCycler{}, 0, nil)
	_ = s // construction must not panic; the default interval is applied internally
	if poller.DefaultInterval != 60*time.Second {
		t.Fatalf("DefaultInterval = %v, want 60s", poller.DefaultInterval)
	}
}
