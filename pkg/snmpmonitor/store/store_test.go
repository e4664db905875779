package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "monitor.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAgent(id int64) models.Agent {
	return models.Agent{
		ID:          id,
		HostAddress: "10.0.0.1",
		PollPort:    161,
		TrapPort:    162,
		Hostname:    "router-a",
	}
}

func testProfile(id int64) models.SecurityProfile {
	return models.SecurityProfile{
		AgentID:       id,
		SecurityName:  "monitor",
		SecurityLevel: "authPriv",
		AuthProtocol:  "SHA",
		AuthKey:       "authkey123",
		PrivProtocol:  "AES",
		PrivKey:       "privkey123",
	}
}

func mustUpsertAgent(t *testing.T, s *store.Store, agent models.Agent, groups ...string) {
	t.Helper()
	if _, err := s.UpsertAgent(context.Background(), agent, testProfile(agent.ID), groups); err != nil {
		t.Fatalf("UpsertAgent(%d): %v", agent.ID, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Provisioning
// ─────────────────────────────────────────────────────────────────────────────

func TestUpsertAgentRefreshesInPlace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.UpsertAgent(ctx, testAgent(1), testProfile(1), []string{"1.3.6.1.2.1.1"})
	if err != nil {
		t.Fatalf("UpsertAgent: %v", err)
	}
	if !created {
		t.Fatal("first upsert should report created")
	}

	updated := testAgent(1)
	updated.HostAddress = "10.0.0.99"
	created, err = s.UpsertAgent(ctx, updated, testProfile(1), []string{"1.3.6.1.2.1.1"})
	if err != nil {
		t.Fatalf("UpsertAgent (refresh): %v", err)
	}
	if created {
		t.Fatal("second upsert should not report created")
	}

	got, ok, err := s.Agent(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Agent: ok=%v err=%v", ok, err)
	}
	if got.HostAddress != "10.0.0.99" {
		t.Fatalf("host = %q, want refreshed 10.0.0.99", got.HostAddress)
	}

	groups, err := s.MibGroups(ctx, 1)
	if err != nil {
		t.Fatalf("MibGroups: %v", err)
	}
	if len(groups) != 1 || groups[0] != "1.3.6.1.2.1.1" {
		t.Fatalf("groups = %v, want exactly the one assigned at creation", groups)
	}
}

func TestAgentByTrapIdentityRequiresExactlyOneMatch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, s, testAgent(1))

	if _, ok, err := s.AgentByTrapIdentity(ctx, "10.0.0.1", "monitor"); err != nil || !ok {
		t.Fatalf("single match: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.AgentByTrapIdentity(ctx, "10.0.0.1", "other"); ok {
		t.Fatal("wrong security name should not match")
	}

	// A second agent with the same address and security name makes the
	// identity ambiguous; neither may receive the trap.
	mustUpsertAgent(t, s, testAgent(2))
	if _, ok, _ := s.AgentByTrapIdentity(ctx, "10.0.0.1", "monitor"); ok {
		t.Fatal("ambiguous identity should not resolve")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Poll runs
// ─────────────────────────────────────────────────────────────────────────────

func TestPollRunCommitIsAtomic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, s, testAgent(1))
	for _, o := range []models.MibObject{
		{OID: "1.3.6.1.2.1.1.5", Name: "system_name", GroupOID: "1.3.6.1.2.1.1", Order: 2},
		{OID: "1.3.6.1.2.1.1.1", Name: "os", GroupOID: "1.3.6.1.2.1.1", Order: 1},
	} {
		if err := s.UpsertMibObject(ctx, o); err != nil {
			t.Fatalf("UpsertMibObject: %v", err)
		}
	}

	// A rolled-back run leaves no trace.
	rec, err := s.BeginPollRun(ctx, 1)
	if err != nil {
		t.Fatalf("BeginPollRun: %v", err)
	}
	if err := rec.AddSample(ctx, "1.3.6.1.2.1.1.1", "0", "Linux"); err != nil {
		t.Fatalf("AddSample: %v", err)
	}
	if err := rec.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	ids, err := s.PollRunIDs(ctx, 1)
	if err != nil {
		t.Fatalf("PollRunIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("rolled-back run visible: ids = %v", ids)
	}

	// A committed run is visible with its samples in catalog order.
	rec, err = s.BeginPollRun(ctx, 1)
	if err != nil {
		t.Fatalf("BeginPollRun: %v", err)
	}
	if err := rec.AddSample(ctx, "1.3.6.1.2.1.1.5", "0", "core-sw"); err != nil {
		t.Fatalf("AddSample: %v", err)
	}
	if err := rec.AddSample(ctx, "1.3.6.1.2.1.1.1", "0", "IOS"); err != nil {
		t.Fatalf("AddSample: %v", err)
	}
	if err := rec.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ids, err = s.PollRunIDs(ctx, 1)
	if err != nil {
		t.Fatalf("PollRunIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != rec.ID() {
		t.Fatalf("ids = %v, want [%d]", ids, rec.ID())
	}

	samples, err := s.RunSamples(ctx, rec.ID())
	if err != nil {
		t.Fatalf("RunSamples: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	if samples[0].ObjectOID != "1.3.6.1.2.1.1.1" || samples[1].ObjectOID != "1.3.6.1.2.1.1.5" {
		t.Fatalf("samples not in catalog order: %v, %v", samples[0].ObjectOID, samples[1].ObjectOID)
	}

	agent, ok, err := s.AgentForRun(ctx, rec.ID())
	if err != nil || !ok {
		t.Fatalf("AgentForRun: ok=%v err=%v", ok, err)
	}
	if agent.ID != 1 {
		t.Fatalf("agent = %d, want 1", agent.ID)
	}
}

func TestOpenRunDoesNotBlockOtherWriters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a1, a2 := testAgent(1), testAgent(2)
	a2.HostAddress = "10.0.0.2"
	mustUpsertAgent(t, s, a1)
	mustUpsertAgent(t, s, a2)
	if err := s.UpsertTrapDefinition(ctx, models.TrapDefinition{ID: 3, OID: "1.3.6.1.6.3.1.1.5.3", Name: "linkDown"}); err != nil {
		t.Fatalf("UpsertTrapDefinition: %v", err)
	}

	// Agent 1's run stays open, as it would during a long walk against a
	// slow device. Writes for other agents must not wait on it.
	rec1, err := s.BeginPollRun(ctx, 1)
	if err != nil {
		t.Fatalf("BeginPollRun(1): %v", err)
	}
	if err := rec1.AddSample(ctx, "1.3.6.1.2.1.1.5", "0", "core-sw"); err != nil {
		t.Fatalf("AddSample: %v", err)
	}

	start := time.Now()

	rec2, err := s.BeginPollRun(ctx, 2)
	if err != nil {
		t.Fatalf("BeginPollRun(2) with agent 1's run open: %v", err)
	}
	if err := rec2.AddSample(ctx, "1.3.6.1.2.1.1.5", "0", "edge-sw"); err != nil {
		t.Fatalf("AddSample: %v", err)
	}
	if err := rec2.Commit(); err != nil {
		t.Fatalf("Commit(2) with agent 1's run open: %v", err)
	}

	if err := s.AddTrapEvent(ctx, 2, 3, "interface_name : Gi0/1\n"); err != nil {
		t.Fatalf("AddTrapEvent with agent 1's run open: %v", err)
	}

	// The sqlite busy timeout is 5 s; a blocked writer would sit out the
	// whole of it before failing.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("sibling writes took %v, agent 1's open run is blocking them", elapsed)
	}

	if err := rec1.Commit(); err != nil {
		t.Fatalf("Commit(1): %v", err)
	}

	for agent, want := range map[int64]int{1: 1, 2: 1} {
		ids, err := s.PollRunIDs(ctx, agent)
		if err != nil {
			t.Fatalf("PollRunIDs(%d): %v", agent, err)
		}
		if len(ids) != want {
			t.Fatalf("agent %d runs = %v, want %d committed", agent, ids, want)
		}
	}
	traps, err := s.TrapEventIDs(ctx, 2)
	if err != nil {
		t.Fatalf("TrapEventIDs: %v", err)
	}
	if len(traps) != 1 {
		t.Fatalf("trap events = %v, want the event recorded", traps)
	}
}

func TestPollRunIDsMostRecentFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	mustUpsertAgent(t, s, testAgent(1))

	var last int64
	for i := 0; i < 3; i++ {
		rec, err := s.BeginPollRun(ctx, 1)
		if err != nil {
			t.Fatalf("BeginPollRun: %v", err)
		}
		if err := rec.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		last = rec.ID()
	}

	ids, err := s.PollRunIDs(ctx, 1)
	if err != nil {
		t.Fatalf("PollRunIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != last {
		t.Fatalf("ids = %v, want newest run %d first", ids, last)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Links & connections
// ─────────────────────────────────────────────────────────────────────────────

func TestResolveLinkFillsMatchingSide(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a1, a2 := testAgent(1), testAgent(2)
	a2.HostAddress = "10.0.0.2"
	mustUpsertAgent(t, s, a1)
	mustUpsertAgent(t, s, a2)

	if err := s.InsertLink(ctx, models.InterfaceLink{
		OriginAgentID: 1, OriginMAC: "AA-BB-CC-00-00-01",
		PeerAgentID: 2, PeerMAC: "AA-BB-CC-00-00-02",
	}); err != nil {
		t.Fatalf("InsertLink: %v", err)
	}

	// Agent 1 observes its own MAC on interface 3.
	rec, err := s.BeginPollRun(ctx, 1)
	if err != nil {
		t.Fatalf("BeginPollRun: %v", err)
	}
	if err := rec.ResolveLink(ctx, "AA-BB-CC-00-00-01", "3"); err != nil {
		t.Fatalf("ResolveLink: %v", err)
	}
	if err := rec.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Agent 2 observes the peer MAC on interface 7.
	rec, err = s.BeginPollRun(ctx, 2)
	if err != nil {
		t.Fatalf("BeginPollRun: %v", err)
	}
	if err := rec.ResolveLink(ctx, "AA-BB-CC-00-00-02", "7"); err != nil {
		t.Fatalf("ResolveLink: %v", err)
	}
	if err := rec.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	links, err := s.Links(ctx)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1", len(links))
	}
	if links[0].OriginIfIndex != "3" || links[0].PeerIfIndex != "7" {
		t.Fatalf("resolution = (%q, %q), want (3, 7)", links[0].OriginIfIndex, links[0].PeerIfIndex)
	}
}

func TestResolveLinkRollbackLeavesLinkUntouched(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	mustUpsertAgent(t, s, testAgent(1))

	if err := s.InsertLink(ctx, models.InterfaceLink{
		OriginAgentID: 1, OriginMAC: "AA-BB-CC-00-00-01",
		PeerAgentID: 2, PeerMAC: "AA-BB-CC-00-00-02",
	}); err != nil {
		t.Fatalf("InsertLink: %v", err)
	}

	rec, err := s.BeginPollRun(ctx, 1)
	if err != nil {
		t.Fatalf("BeginPollRun: %v", err)
	}
	if err := rec.ResolveLink(ctx, "AA-BB-CC-00-00-01", "3"); err != nil {
		t.Fatalf("ResolveLink: %v", err)
	}
	if err := rec.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	links, err := s.Links(ctx)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if links[0].OriginIfIndex != "" {
		t.Fatalf("origin_if_index = %q after rollback, want unresolved", links[0].OriginIfIndex)
	}
}

func TestConnectionsSuppressesReverseDuplicates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// The same physical pair declared from both agents' perspectives, with
	// the interface indexes already resolved.
	seedLink := func(origin int64, originMAC, originIdx string, peer int64, peerMAC, peerIdx string) {
		t.Helper()
		if err := s.InsertLink(ctx, models.InterfaceLink{
			OriginAgentID: origin, OriginMAC: originMAC,
			PeerAgentID: peer, PeerMAC: peerMAC,
		}); err != nil {
			t.Fatalf("InsertLink: %v", err)
		}
		rec, err := s.BeginPollRun(ctx, origin)
		if err != nil {
			t.Fatalf("BeginPollRun: %v", err)
		}
		if err := rec.ResolveLink(ctx, originMAC, originIdx); err != nil {
			t.Fatalf("ResolveLink: %v", err)
		}
		if err := rec.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		rec, err = s.BeginPollRun(ctx, peer)
		if err != nil {
			t.Fatalf("BeginPollRun: %v", err)
		}
		if err := rec.ResolveLink(ctx, peerMAC, peerIdx); err != nil {
			t.Fatalf("ResolveLink: %v", err)
		}
		if err := rec.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	seedLink(1, "AA-00-00-00-00-01", "3", 2, "AA-00-00-00-00-02", "7")
	seedLink(2, "AA-00-00-00-00-02", "7", 1, "AA-00-00-00-00-01", "3")

	conns, err := s.Connections(ctx)
	if err != nil {
		t.Fatalf("Connections: %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("connections = %d, want reverse duplicate suppressed", len(conns))
	}
	want := models.Connection{OriginAgentID: 1, OriginIfIndex: "3", PeerAgentID: 2, PeerIfIndex: "7"}
	if conns[0] != want {
		t.Fatalf("connection = %+v, want %+v", conns[0], want)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Trap history
// ─────────────────────────────────────────────────────────────────────────────

func TestTrapEventJoinsDefinition(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, s, testAgent(1))
	if err := s.UpsertTrapDefinition(ctx, models.TrapDefinition{
		ID: 3, OID: "1.3.6.1.6.3.1.1.5.3", Name: "linkDown",
		Description: "An interface transitioned down", Handling: "Check the cable",
	}); err != nil {
		t.Fatalf("UpsertTrapDefinition: %v", err)
	}

	if err := s.AddTrapEvent(ctx, 1, 3, "interface_name : Gi0/4\n"); err != nil {
		t.Fatalf("AddTrapEvent: %v", err)
	}

	ids, err := s.TrapEventIDs(ctx, 1)
	if err != nil {
		t.Fatalf("TrapEventIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("ids = %v, want one event", ids)
	}

	rec, ok, err := s.TrapEvent(ctx, ids[0])
	if err != nil || !ok {
		t.Fatalf("TrapEvent: ok=%v err=%v", ok, err)
	}
	if rec.Name != "linkDown" || rec.Handling != "Check the cable" || rec.Detail != "interface_name : Gi0/4\n" {
		t.Fatalf("record = %+v", rec)
	}
	if time.Since(rec.Timestamp) > time.Minute {
		t.Fatalf("timestamp %v not recent", rec.Timestamp)
	}

	agent, ok, err := s.AgentForTrapEvent(ctx, ids[0])
	if err != nil || !ok || agent.ID != 1 {
		t.Fatalf("AgentForTrapEvent: agent=%+v ok=%v err=%v", agent, ok, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Users, sessions, resets
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.AddUser(ctx, "alice", "hash", "salt"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	u, ok, err := s.UserByName(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("UserByName: ok=%v err=%v", ok, err)
	}

	if _, ok, _ := s.SessionForUser(ctx, u.ID); ok {
		t.Fatal("fresh user should have no session row")
	}

	expires := time.Now().Add(30 * time.Minute).UTC()
	if err := s.ReplaceSession(ctx, u.ID, "code-one", expires); err != nil {
		t.Fatalf("ReplaceSession: %v", err)
	}
	sess, ok, err := s.SessionForUser(ctx, u.ID)
	if err != nil || !ok {
		t.Fatalf("SessionForUser: ok=%v err=%v", ok, err)
	}
	if sess.Code != "code-one" {
		t.Fatalf("code = %q, want code-one", sess.Code)
	}

	inUse, err := s.SessionCodeInUse(ctx, "code-one", u.ID)
	if err != nil {
		t.Fatalf("SessionCodeInUse: %v", err)
	}
	if inUse {
		t.Fatal("a user's own code must not count as a collision")
	}

	if err := s.AddUser(ctx, "bob", "hash", "salt"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	bob, _, _ := s.UserByName(ctx, "bob")
	inUse, err = s.SessionCodeInUse(ctx, "code-one", bob.ID)
	if err != nil {
		t.Fatalf("SessionCodeInUse: %v", err)
	}
	if !inUse {
		t.Fatal("another user's active code must count as a collision")
	}

	if err := s.ClearSession(ctx, u.ID); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	sess, ok, err = s.SessionForUser(ctx, u.ID)
	if err != nil || !ok {
		t.Fatalf("SessionForUser after clear: ok=%v err=%v", ok, err)
	}
	if sess.Code != "" {
		t.Fatalf("code = %q after revoke, want empty", sess.Code)
	}
}

func TestResetsClearTableFamilies(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, s, testAgent(1))
	if err := s.AddUser(ctx, "alice", "hash", "salt"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	u, _, _ := s.UserByName(ctx, "alice")
	if err := s.AddUserLog(ctx, u.ID, models.UserLogLoginSuccess); err != nil {
		t.Fatalf("AddUserLog: %v", err)
	}

	if err := s.ResetTelemetry(ctx); err != nil {
		t.Fatalf("ResetTelemetry: %v", err)
	}
	ids, err := s.AgentIDs(ctx)
	if err != nil {
		t.Fatalf("AgentIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("agents survive telemetry reset: %v", ids)
	}
	if _, ok, _ := s.UserByName(ctx, "alice"); !ok {
		t.Fatal("telemetry reset must not touch users")
	}

	if err := s.ResetUsers(ctx); err != nil {
		t.Fatalf("ResetUsers: %v", err)
	}
	if _, ok, _ := s.UserByName(ctx, "alice"); ok {
		t.Fatal("user survives users reset")
	}
	n, err := s.UserLogCount(ctx, u.ID, models.UserLogLoginSuccess)
	if err != nil {
		t.Fatalf("UserLogCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("audit rows survive users reset: %d", n)
	}
}
