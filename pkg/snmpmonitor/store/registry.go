package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vpbank/snmp_monitor/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Agents & credentials
// ─────────────────────────────────────────────────────────────────────────────

// AgentIDs returns the ids of every registered agent.
func (s *Store) AgentIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT agent_id FROM agents ORDER BY agent_id")
	if err != nil {
		return nil, fmt.Errorf("store: agent ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: agent ids: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Agents returns every registered agent record.
func (s *Store) Agents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, host_address, poll_port, trap_port, hostname,
		       icon_id, pos_x, pos_y, packet_threshold
		FROM agents ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("store: agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.HostAddress, &a.PollPort, &a.TrapPort,
			&a.Hostname, &a.IconID, &a.PosX, &a.PosY, &a.PacketThreshold); err != nil {
			return nil, fmt.Errorf("store: agents: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// Agent returns one agent record. The boolean is false when the id is not
// registered.
func (s *Store) Agent(ctx context.Context, id int64) (models.Agent, bool, error) {
	var a models.Agent
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_id, host_address, poll_port, trap_port, hostname,
		       icon_id, pos_x, pos_y, packet_threshold
		FROM agents WHERE agent_id = ?`, id).
		Scan(&a.ID, &a.HostAddress, &a.PollPort, &a.TrapPort, &a.Hostname,
			&a.IconID, &a.PosX, &a.PosY, &a.PacketThreshold)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Agent{}, false, nil
	}
	if err != nil {
		return models.Agent{}, false, fmt.Errorf("store: agent %d: %w", id, err)
	}
	return a, true, nil
}

// AgentByTrapIdentity resolves the agent whose host address and USM security
// name both match. The boolean is false when no agent — or more than one —
// matches; trap events must never be attributed to an ambiguous source.
func (s *Store) AgentByTrapIdentity(ctx context.Context, hostAddress, securityName string) (models.Agent, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.agent_id, a.host_address, a.poll_port, a.trap_port, a.hostname,
		       a.icon_id, a.pos_x, a.pos_y, a.packet_threshold
		FROM agents a
		INNER JOIN security_profiles p ON a.agent_id = p.agent_id
		WHERE a.host_address = ? AND p.security_name = ?`, hostAddress, securityName)
	if err != nil {
		return models.Agent{}, false, fmt.Errorf("store: agent by trap identity: %w", err)
	}
	defer rows.Close()

	var matches []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.HostAddress, &a.PollPort, &a.TrapPort,
			&a.Hostname, &a.IconID, &a.PosX, &a.PosY, &a.PacketThreshold); err != nil {
			return models.Agent{}, false, fmt.Errorf("store: agent by trap identity: %w", err)
		}
		matches = append(matches, a)
	}
	if err := rows.Err(); err != nil {
		return models.Agent{}, false, err
	}
	if len(matches) != 1 {
		return models.Agent{}, false, nil
	}
	return matches[0], true, nil
}

// SecurityProfile returns the USM profile for one agent.
func (s *Store) SecurityProfile(ctx context.Context, agentID int64) (models.SecurityProfile, bool, error) {
	var p models.SecurityProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_id, security_name, security_level,
		       auth_protocol, auth_key, priv_protocol, priv_key
		FROM security_profiles WHERE agent_id = ?`, agentID).
		Scan(&p.AgentID, &p.SecurityName, &p.SecurityLevel,
			&p.AuthProtocol, &p.AuthKey, &p.PrivProtocol, &p.PrivKey)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SecurityProfile{}, false, nil
	}
	if err != nil {
		return models.SecurityProfile{}, false, fmt.Errorf("store: security profile %d: %w", agentID, err)
	}
	return p, true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MIB catalog
// ─────────────────────────────────────────────────────────────────────────────

// MibGroups returns the subtree roots assigned to an agent.
func (s *Store) MibGroups(ctx context.Context, agentID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_oid FROM mib_group_assignments WHERE agent_id = ? ORDER BY group_oid", agentID)
	if err != nil {
		return nil, fmt.Errorf("store: mib groups %d: %w", agentID, err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("store: mib groups %d: %w", agentID, err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CatalogObjects returns the full MIB object catalog in group/order sequence.
func (s *Store) CatalogObjects(ctx context.Context) ([]models.MibObject, error) {
	return s.catalogQuery(ctx,
		"SELECT object_oid, name, group_oid, ord FROM mib_objects ORDER BY group_oid, ord")
}

// CatalogForGroups returns the catalog objects belonging to the given subtree
// roots, in polling order.
func (s *Store) CatalogForGroups(ctx context.Context, groups []string) ([]models.MibObject, error) {
	var all []models.MibObject
	for _, g := range groups {
		objs, err := s.catalogQuery(ctx,
			"SELECT object_oid, name, group_oid, ord FROM mib_objects WHERE group_oid = ? ORDER BY ord", g)
		if err != nil {
			return nil, err
		}
		all = append(all, objs...)
	}
	return all, nil
}

func (s *Store) catalogQuery(ctx context.Context, query string, args ...interface{}) ([]models.MibObject, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: mib catalog: %w", err)
	}
	defer rows.Close()

	var objs []models.MibObject
	for rows.Next() {
		var o models.MibObject
		if err := rows.Scan(&o.OID, &o.Name, &o.GroupOID, &o.Order); err != nil {
			return nil, fmt.Errorf("store: mib catalog: %w", err)
		}
		objs = append(objs, o)
	}
	return objs, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Trap catalog
// ─────────────────────────────────────────────────────────────────────────────

// TrapDefinitionByOID resolves a trap catalog entry by exact trap OID.
func (s *Store) TrapDefinitionByOID(ctx context.Context, oid string) (models.TrapDefinition, bool, error) {
	var d models.TrapDefinition
	err := s.db.QueryRowContext(ctx, `
		SELECT trap_id, trap_oid, name, description, handling
		FROM trap_definitions WHERE trap_oid = ?`, oid).
		Scan(&d.ID, &d.OID, &d.Name, &d.Description, &d.Handling)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TrapDefinition{}, false, nil
	}
	if err != nil {
		return models.TrapDefinition{}, false, fmt.Errorf("store: trap definition %s: %w", oid, err)
	}
	return d, true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Interface links & connection listing
// ─────────────────────────────────────────────────────────────────────────────

// Links returns every declared interface link.
func (s *Store) Links(ctx context.Context) ([]models.InterfaceLink, error) {
	return s.linkQuery(ctx, `
		SELECT link_id, origin_agent_id, origin_mac, origin_if_index,
		       peer_agent_id, peer_mac, peer_if_index
		FROM interface_links ORDER BY link_id`)
}

// LinksForAgent returns the links that declare the agent on either end.
func (s *Store) LinksForAgent(ctx context.Context, agentID int64) ([]models.InterfaceLink, error) {
	return s.linkQuery(ctx, `
		SELECT link_id, origin_agent_id, origin_mac, origin_if_index,
		       peer_agent_id, peer_mac, peer_if_index
		FROM interface_links
		WHERE origin_agent_id = ? OR peer_agent_id = ?
		ORDER BY link_id`, agentID, agentID)
}

func (s *Store) linkQuery(ctx context.Context, query string, args ...interface{}) ([]models.InterfaceLink, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: links: %w", err)
	}
	defer rows.Close()

	var links []models.InterfaceLink
	for rows.Next() {
		var l models.InterfaceLink
		if err := rows.Scan(&l.ID, &l.OriginAgentID, &l.OriginMAC, &l.OriginIfIndex,
			&l.PeerAgentID, &l.PeerMAC, &l.PeerIfIndex); err != nil {
			return nil, fmt.Errorf("store: links: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Connections lists the declared links as undirected connections. A link is
// declared once per physical pair but may be read from either agent's
// perspective, so any entry whose reverse 4-tuple already appeared earlier in
// the listing is suppressed.
func (s *Store) Connections(ctx context.Context) ([]models.Connection, error) {
	links, err := s.linkQuery(ctx, `
		SELECT link_id, origin_agent_id, origin_mac, origin_if_index,
		       peer_agent_id, peer_mac, peer_if_index
		FROM interface_links ORDER BY origin_agent_id, link_id`)
	if err != nil {
		return nil, err
	}

	conns := make([]models.Connection, 0, len(links))
	for _, l := range links {
		c := models.Connection{
			OriginAgentID: l.OriginAgentID,
			OriginIfIndex: l.OriginIfIndex,
			PeerAgentID:   l.PeerAgentID,
			PeerIfIndex:   l.PeerIfIndex,
		}
		if containsReverse(conns, c) {
			continue
		}
		conns = append(conns, c)
	}
	return conns, nil
}

func containsReverse(conns []models.Connection, c models.Connection) bool {
	for _, e := range conns {
		if e.OriginAgentID == c.PeerAgentID && e.OriginIfIndex == c.PeerIfIndex &&
			e.PeerAgentID == c.OriginAgentID && e.PeerIfIndex == c.OriginIfIndex {
			return true
		}
	}
	return false
}
