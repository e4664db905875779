package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// YAML schema
// ─────────────────────────────────────────────────────────────────────────────

// Config is the fully-resolved configuration for one monitor process.
// Optional fields that are zero-valued in the YAML are filled with hard-coded
// fallbacks during resolution.
type Config struct {
	// Server configures the query protocol front end.
	Server ServerConfig `yaml:"server"`

	// Database configures the relational history store.
	Database DatabaseConfig `yaml:"database"`

	// Poll configures the polling scheduler.
	Poll PollConfig `yaml:"poll"`

	// Agents is the monitored device registry seeded into the store.
	Agents []AgentEntry `yaml:"agents"`

	// Users is the operator account list seeded into the store.
	Users []UserEntry `yaml:"users"`

	// Traps extends the built-in trap catalog.
	Traps []TrapEntry `yaml:"traps"`
}

// ServerConfig configures the query socket server.
type ServerConfig struct {
	// Addr is the TCP address to bind to (default "0.0.0.0:8100").
	Addr string `yaml:"addr"`
}

// DatabaseConfig configures the history store.
type DatabaseConfig struct {
	// Path is the SQLite database file (default "snmp_monitor.db").
	Path string `yaml:"path"`
}

// PollConfig configures the polling scheduler.
type PollConfig struct {
	// IntervalSeconds is the poll period (default 60).
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Interval returns the poll period as a duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// AgentEntry is one monitored device with its USM identity, assigned MIB
// groups, and declared physical links.
type AgentEntry struct {
	// ID is the stable agent id (required, unique, nonzero).
	ID int64 `yaml:"id"`

	// Host is the management address (required).
	Host string `yaml:"host"`

	// PollPort is the UDP port for requests (default 161).
	PollPort int `yaml:"poll_port"`

	// TrapPort is the UDP port notifications arrive on (default 162).
	TrapPort int `yaml:"trap_port"`

	// Hostname is the display name.
	Hostname string `yaml:"hostname"`

	// Icon selects the display icon.
	Icon int `yaml:"icon"`

	// PosX/PosY place the device on the topology display.
	PosX int `yaml:"pos_x"`
	PosY int `yaml:"pos_y"`

	// PacketThreshold is the traffic alarm ceiling.
	PacketThreshold int64 `yaml:"packet_threshold"`

	// Security is the SNMPv3 USM identity (security name required).
	Security SecurityEntry `yaml:"security"`

	// MibGroups lists the subtree roots polled for this agent. Defaults to
	// the system, interfaces, and ip groups.
	MibGroups []string `yaml:"mib_groups"`

	// Links declares this agent's physical connections as MAC pairs.
	Links []LinkEntry `yaml:"links"`
}

// SecurityEntry is one USM credential set.
type SecurityEntry struct {
	// Name is the SNMPv3 security name.
	Name string `yaml:"name"`

	// Level is one of: noauthnopriv, authnopriv, authpriv (default authpriv).
	Level string `yaml:"level"`

	// AuthProtocol is one of: none, md5, sha.
	AuthProtocol string `yaml:"auth_protocol"`

	// AuthKey is the passphrase for the chosen auth protocol.
	AuthKey string `yaml:"auth_key"`

	// PrivProtocol is one of: none, des, aes.
	PrivProtocol string `yaml:"priv_protocol"`

	// PrivKey is the passphrase for the chosen privacy protocol.
	PrivKey string `yaml:"priv_key"`
}

// LinkEntry declares one physical connection from the owning agent's
// perspective. The interface indexes resolve later from polled MACs.
type LinkEntry struct {
	// OriginMAC is the owning agent's interface hardware address.
	OriginMAC string `yaml:"origin_mac"`

	// PeerAgent is the agent id on the far end.
	PeerAgent int64 `yaml:"peer_agent"`

	// PeerMAC is the far end's interface hardware address.
	PeerMAC string `yaml:"peer_mac"`
}

// UserEntry is one operator account.
type UserEntry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TrapEntry is one trap catalog row.
type TrapEntry struct {
	ID          int64  `yaml:"id"`
	OID         string `yaml:"oid"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Handling    string `yaml:"handling"`
}
