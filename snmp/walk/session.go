// Package walk implements the MIB subtree walker and value normalizer.
// It converts an agent's transport address and USM credentials into a live
// gosnmp session, enumerates a subtree in pages of 20 bindings, and resolves
// every binding against the registered MIB object catalog, producing
// normalized samples ready for persistence.
package walk

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/snmp_monitor/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Target — one agent endpoint
// ─────────────────────────────────────────────────────────────────────────────

// Target identifies the agent endpoint a walk runs against.
type Target struct {
	Host     string
	Port     int
	Security models.SecurityProfile
}

// ─────────────────────────────────────────────────────────────────────────────
// Session factory — Target → *gosnmp.GoSNMP
// ─────────────────────────────────────────────────────────────────────────────

const (
	// requestTimeout is the per-request protocol timeout.
	requestTimeout = 5 * time.Second

	// requestRetries is the number of retries after a timed-out request.
	requestRetries = 1

	// pageSize is the number of bindings requested per GetBulk page.
	pageSize = 20
)

// Session wraps a connected gosnmp session so that callers can close it
// without reaching into the underlying UDP connection.
type Session struct {
	g *gosnmp.GoSNMP
}

// NewSession creates and connects an SNMPv3 session for the given target.
// The caller is responsible for calling Close when the session is no longer
// needed.
func NewSession(t Target) (*Session, error) {
	g := &gosnmp.GoSNMP{
		Target:             t.Host,
		Port:               uint16(t.Port),
		Timeout:            requestTimeout,
		Retries:            requestRetries,
		MaxRepetitions:     pageSize,
		Version:            gosnmp.Version3,
		SecurityModel:      gosnmp.UserSecurityModel,
		MsgFlags:           MsgFlags(t.Security),
		SecurityParameters: UsmParams(t.Security),
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("walk: connect %s:%d: %w", t.Host, t.Port, err)
	}
	return &Session{g: g}, nil
}

// BulkWalk enumerates the subtree rooted at root, invoking fn for every
// binding. Pagination is driven by the session's MaxRepetitions.
func (s *Session) BulkWalk(root string, fn gosnmp.WalkFunc) error {
	return s.g.BulkWalk(root, fn)
}

// Close releases the session's UDP socket.
func (s *Session) Close() error {
	if s.g.Conn != nil {
		return s.g.Conn.Close()
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// USM helpers
// ─────────────────────────────────────────────────────────────────────────────

// MsgFlags derives the SNMPv3 message flags from the profile's security level.
func MsgFlags(sec models.SecurityProfile) gosnmp.SnmpV3MsgFlags {
	switch strings.ToLower(sec.SecurityLevel) {
	case "authpriv":
		return gosnmp.AuthPriv
	case "authnopriv":
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

// UsmParams converts a SecurityProfile into gosnmp USM security parameters.
func UsmParams(sec models.SecurityProfile) *gosnmp.UsmSecurityParameters {
	return &gosnmp.UsmSecurityParameters{
		UserName:                 sec.SecurityName,
		AuthenticationProtocol:   mapAuthProto(sec.AuthProtocol),
		AuthenticationPassphrase: sec.AuthKey,
		PrivacyProtocol:          mapPrivProto(sec.PrivProtocol),
		PrivacyPassphrase:        sec.PrivKey,
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	default:
		return gosnmp.NoPriv
	}
}
