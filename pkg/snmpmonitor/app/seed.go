package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/config"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/session"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/store"
)

// seed pushes the declarative parts of the configuration into the store:
// the MIB catalog, the trap catalog, agents with their links, and user
// accounts. Seeding is idempotent — catalog rows upsert, agents refresh in
// place, links install only when their origin agent is first created, and
// existing users keep their credentials.
func seed(ctx context.Context, st *store.Store, cfg *config.Config, logger *slog.Logger) error {
	for _, o := range config.BuiltinMibObjects() {
		if err := st.UpsertMibObject(ctx, o); err != nil {
			return err
		}
	}

	for _, d := range config.BuiltinTrapDefinitions() {
		if err := st.UpsertTrapDefinition(ctx, d); err != nil {
			return err
		}
	}
	for _, t := range cfg.Traps {
		if err := st.UpsertTrapDefinition(ctx, models.TrapDefinition{
			ID:          t.ID,
			OID:         t.OID,
			Name:        t.Name,
			Description: t.Description,
			Handling:    t.Handling,
		}); err != nil {
			return err
		}
	}

	if err := seedAgents(ctx, st, cfg, logger); err != nil {
		return err
	}
	return seedUsers(ctx, st, cfg, logger)
}

func seedAgents(ctx context.Context, st *store.Store, cfg *config.Config, logger *slog.Logger) error {
	for _, a := range cfg.Agents {
		agent := models.Agent{
			ID:              a.ID,
			HostAddress:     a.Host,
			PollPort:        a.PollPort,
			TrapPort:        a.TrapPort,
			Hostname:        a.Hostname,
			IconID:          a.Icon,
			PosX:            a.PosX,
			PosY:            a.PosY,
			PacketThreshold: a.PacketThreshold,
		}
		profile := models.SecurityProfile{
			AgentID:       a.ID,
			SecurityName:  a.Security.Name,
			SecurityLevel: a.Security.Level,
			AuthProtocol:  a.Security.AuthProtocol,
			AuthKey:       a.Security.AuthKey,
			PrivProtocol:  a.Security.PrivProtocol,
			PrivKey:       a.Security.PrivKey,
		}

		created, err := st.UpsertAgent(ctx, agent, profile, a.MibGroups)
		if err != nil {
			return err
		}
		if !created {
			logger.Debug("app: agent refreshed", "agent_id", a.ID)
			continue
		}

		for _, l := range a.Links {
			if err := st.InsertLink(ctx, models.InterfaceLink{
				OriginAgentID: a.ID,
				OriginMAC:     l.OriginMAC,
				PeerAgentID:   l.PeerAgent,
				PeerMAC:       l.PeerMAC,
			}); err != nil {
				return err
			}
		}
		logger.Info("app: agent installed", "agent_id", a.ID, "host", a.Host, "links", len(a.Links))
	}
	return nil
}

func seedUsers(ctx context.Context, st *store.Store, cfg *config.Config, logger *slog.Logger) error {
	for _, u := range cfg.Users {
		_, exists, err := st.UserByName(ctx, u.Username)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		salt, err := session.GenerateSalt()
		if err != nil {
			return fmt.Errorf("generate salt for %s: %w", u.Username, err)
		}
		if err := st.AddUser(ctx, u.Username, session.HashPassword(u.Password, salt), salt); err != nil {
			return err
		}
		logger.Info("app: user installed", "username", u.Username)
	}
	return nil
}
