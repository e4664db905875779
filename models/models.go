// Package models defines the core data structures shared across all layers of
// the SNMP Monitor. These types represent the canonical in-memory form of the
// relational history; every other package depends on this package and nothing
// here depends on any other internal package.
package models

import "time"

// Agent is one monitored network device. HostAddress plus the per-port USM
// credentials in its SecurityProfile identify the device on the wire.
type Agent struct {
	ID              int64
	HostAddress     string
	PollPort        int
	TrapPort        int
	Hostname        string
	IconID          int
	PosX            int
	PosY            int
	PacketThreshold int64
}

// SecurityProfile is the SNMPv3 USM identity for one agent (1:1).
type SecurityProfile struct {
	AgentID       int64
	SecurityName  string
	SecurityLevel string // "noAuthNoPriv", "authNoPriv", "authPriv"
	AuthProtocol  string // "", "md5", "sha"
	AuthKey       string
	PrivProtocol  string // "", "des", "aes"
	PrivKey       string
}

// MibObject is one row of the static MIB object catalog. GroupOID names the
// subtree root the object is polled under; Order fixes the display and
// snapshot ordering within the group.
type MibObject struct {
	OID      string
	Name     string
	GroupOID string
	Order    int
}

// TrapDefinition is one row of the static trap catalog. ID 999 is reserved
// for uncategorized traps whose OID matches no definition.
type TrapDefinition struct {
	ID          int64
	OID         string
	Name        string
	Description string
	Handling    string
}

// InterfaceLink is a physical link declared at provisioning time as a pair of
// MAC addresses. The interface indexes start out empty and are filled in
// lazily as polls observe the declared MACs on either end.
type InterfaceLink struct {
	ID            int64
	OriginAgentID int64
	OriginMAC     string
	OriginIfIndex string // "" until resolved
	PeerAgentID   int64
	PeerMAC       string
	PeerIfIndex   string // "" until resolved
}

// Connection is one deduplicated entry of the connection listing: an
// undirected link reported from the origin agent's perspective.
type Connection struct {
	OriginAgentID int64  `json:"orig_agentid"`
	OriginIfIndex string `json:"orig_interfaceid"`
	PeerAgentID   int64  `json:"con_agentid"`
	PeerIfIndex   string `json:"con_interfaceid"`
}

// PollRun is one data-collection attempt for one agent. A run either commits
// with all its samples or leaves no trace at all.
type PollRun struct {
	ID        int64
	AgentID   int64
	Timestamp time.Time
}

// PollSample is one normalized value collected during a poll run. The
// (RunID, ObjectOID, RowIndex) triple is its identity.
type PollSample struct {
	RunID     int64
	ObjectOID string
	RowIndex  string
	Value     string
}

// TrapEvent is one received and classified notification.
type TrapEvent struct {
	ID        int64
	AgentID   int64
	TrapID    int64
	Timestamp time.Time
	Detail    string
}

// User is one operator account. PassHash is the hex SHA-256 digest of
// password+salt.
type User struct {
	ID       int64
	Username string
	PassHash string
	PassSalt string
}

// Session is the (at most one) live session row for a user. An empty Code
// means the session has been revoked.
type Session struct {
	UserID  int64
	Code    string
	Expires time.Time
}
