package store

import (
	"context"
	"fmt"

	"github.com/vpbank/snmp_monitor/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Provisioning writes
//
// These methods back the seed-data loading path: agent, catalog, and user
// records declared in the configuration are pushed into the store at startup.
// ─────────────────────────────────────────────────────────────────────────────

// UpsertAgent installs or refreshes one agent with its USM profile and MIB
// group assignments. It reports whether the agent was newly created, so the
// caller knows to install the agent's declared links exactly once.
func (s *Store) UpsertAgent(ctx context.Context, agent models.Agent, profile models.SecurityProfile, groups []string) (created bool, err error) {
	_, exists, err := s.Agent(ctx, agent.ID)
	if err != nil {
		return false, err
	}

	if exists {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE agents SET host_address = ?, poll_port = ?, trap_port = ?, hostname = ?,
			       icon_id = ?, pos_x = ?, pos_y = ?, packet_threshold = ?
			WHERE agent_id = ?`,
			agent.HostAddress, agent.PollPort, agent.TrapPort, agent.Hostname,
			agent.IconID, agent.PosX, agent.PosY, agent.PacketThreshold, agent.ID); err != nil {
			return false, fmt.Errorf("store: update agent %d: %w", agent.ID, err)
		}
		if _, err := s.db.ExecContext(ctx, `
			UPDATE security_profiles SET security_name = ?, security_level = ?,
			       auth_protocol = ?, auth_key = ?, priv_protocol = ?, priv_key = ?
			WHERE agent_id = ?`,
			profile.SecurityName, profile.SecurityLevel,
			profile.AuthProtocol, profile.AuthKey, profile.PrivProtocol, profile.PrivKey,
			agent.ID); err != nil {
			return false, fmt.Errorf("store: update profile %d: %w", agent.ID, err)
		}
		return false, nil
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, host_address, poll_port, trap_port, hostname,
		                    icon_id, pos_x, pos_y, packet_threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agent.ID, agent.HostAddress, agent.PollPort, agent.TrapPort, agent.Hostname,
		agent.IconID, agent.PosX, agent.PosY, agent.PacketThreshold); err != nil {
		return false, fmt.Errorf("store: insert agent %d: %w", agent.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO security_profiles (agent_id, security_name, security_level,
		                               auth_protocol, auth_key, priv_protocol, priv_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		agent.ID, profile.SecurityName, profile.SecurityLevel,
		profile.AuthProtocol, profile.AuthKey, profile.PrivProtocol, profile.PrivKey); err != nil {
		return false, fmt.Errorf("store: insert profile %d: %w", agent.ID, err)
	}
	for _, g := range groups {
		if _, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO mib_group_assignments (agent_id, group_oid) VALUES (?, ?)",
			agent.ID, g); err != nil {
			return false, fmt.Errorf("store: assign group %s to agent %d: %w", g, agent.ID, err)
		}
	}
	return true, nil
}

// InsertLink declares one physical link as a MAC pair. Interface indexes
// start unresolved.
func (s *Store) InsertLink(ctx context.Context, link models.InterfaceLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interface_links (origin_agent_id, origin_mac, peer_agent_id, peer_mac)
		VALUES (?, ?, ?, ?)`,
		link.OriginAgentID, link.OriginMAC, link.PeerAgentID, link.PeerMAC)
	if err != nil {
		return fmt.Errorf("store: insert link: %w", err)
	}
	return nil
}

// UpsertTrapDefinition installs or refreshes one trap catalog entry.
func (s *Store) UpsertTrapDefinition(ctx context.Context, d models.TrapDefinition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trap_definitions (trap_id, trap_oid, name, description, handling)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(trap_id) DO UPDATE SET
			trap_oid = excluded.trap_oid, name = excluded.name,
			description = excluded.description, handling = excluded.handling`,
		d.ID, d.OID, d.Name, d.Description, d.Handling)
	if err != nil {
		return fmt.Errorf("store: upsert trap definition %d: %w", d.ID, err)
	}
	return nil
}

// UpsertMibObject installs or refreshes one MIB catalog entry.
func (s *Store) UpsertMibObject(ctx context.Context, o models.MibObject) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mib_objects (object_oid, name, group_oid, ord)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(object_oid) DO UPDATE SET
			name = excluded.name, group_oid = excluded.group_oid, ord = excluded.ord`,
		o.OID, o.Name, o.GroupOID, o.Order)
	if err != nil {
		return fmt.Errorf("store: upsert mib object %s: %w", o.OID, err)
	}
	return nil
}
