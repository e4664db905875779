// Package config provides YAML configuration loading for the SNMP Monitor.
//
// One file describes the whole process: the query server address, the
// database location, the poll interval, and the seed registry (agents with
// their USM identities, MIB group assignments, and declared links, plus
// operator accounts and trap catalog extensions). Load parses, validates,
// and resolves defaults; errors from individual entries are accumulated and
// returned together so that operators see all problems at once.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vpbank/snmp_monitor/models"
)

// Hard-coded fallbacks applied during resolution.
const (
	defaultServerAddr   = "0.0.0.0:8100"
	defaultDatabasePath = "snmp_monitor.db"
	defaultPollSeconds  = 60
	defaultPollPort     = 161
	defaultTrapPort     = 162
)

// defaultMibGroups are the subtree roots assigned when an agent names none.
func defaultMibGroups() []string {
	return []string{"1.3.6.1.2.1.1", "1.3.6.1.2.1.2", "1.3.6.1.2.1.4"}
}

// Load reads and validates the configuration file at path.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := resolve(&cfg, logger); err != nil {
		return nil, err
	}

	logger.Info("config: loaded",
		"path", path,
		"agents", len(cfg.Agents),
		"users", len(cfg.Users),
		"extra_traps", len(cfg.Traps),
	)
	return &cfg, nil
}

// resolve applies defaults and validates every entry, accumulating errors.
func resolve(cfg *Config, logger *slog.Logger) error {
	var errs []string

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultServerAddr
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = defaultDatabasePath
	}
	if cfg.Poll.IntervalSeconds <= 0 {
		cfg.Poll.IntervalSeconds = defaultPollSeconds
	}

	seenAgents := make(map[int64]bool)
	for i := range cfg.Agents {
		a := &cfg.Agents[i]
		switch {
		case a.ID <= 0:
			errs = append(errs, fmt.Sprintf("agent %d: id must be a positive integer", i))
		case seenAgents[a.ID]:
			errs = append(errs, fmt.Sprintf("agent %d: duplicate id %d", i, a.ID))
		default:
			seenAgents[a.ID] = true
		}
		if a.Host == "" {
			errs = append(errs, fmt.Sprintf("agent %d: host is required", i))
		}
		if a.Security.Name == "" {
			errs = append(errs, fmt.Sprintf("agent %d: security.name is required", i))
		}
		if a.PollPort == 0 {
			a.PollPort = defaultPollPort
		}
		if a.TrapPort == 0 {
			a.TrapPort = defaultTrapPort
		}
		if a.Security.Level == "" {
			a.Security.Level = "authpriv"
		}
		if len(a.MibGroups) == 0 {
			a.MibGroups = defaultMibGroups()
		}
		for j, l := range a.Links {
			if l.OriginMAC == "" || l.PeerMAC == "" {
				errs = append(errs, fmt.Sprintf("agent %d link %d: both hardware addresses are required", i, j))
			}
			if l.PeerAgent <= 0 {
				errs = append(errs, fmt.Sprintf("agent %d link %d: peer_agent is required", i, j))
			}
		}
	}

	seenUsers := make(map[string]bool)
	for i, u := range cfg.Users {
		if u.Username == "" || u.Password == "" {
			errs = append(errs, fmt.Sprintf("user %d: username and password are required", i))
			continue
		}
		if seenUsers[u.Username] {
			errs = append(errs, fmt.Sprintf("user %d: duplicate username %q", i, u.Username))
		}
		seenUsers[u.Username] = true
	}

	for i, t := range cfg.Traps {
		if t.ID == models.TrapIDUncategorized {
			errs = append(errs, fmt.Sprintf("trap %d: id %d is reserved", i, models.TrapIDUncategorized))
		}
		if t.ID <= 0 || t.OID == "" {
			errs = append(errs, fmt.Sprintf("trap %d: id and oid are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %d error(s):\n  %s", len(errs), strings.Join(errs, "\n  "))
	}
	if len(cfg.Agents) == 0 {
		logger.Warn("config: no agents configured")
	}
	return nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
