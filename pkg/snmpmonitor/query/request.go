package query

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/vpbank/snmp_monitor/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Request — closed set of wire operations
// ─────────────────────────────────────────────────────────────────────────────

// Request is one parsed wire operation. The set of implementations is closed:
// the façade's Dispatch switch handles every variant, so adding an operation
// is a compile-time-checked change in both places.
type Request interface {
	// Func returns the wire name of the operation.
	Func() string

	isRequest()
}

// Credentials carries the username/session pair every authenticated
// operation presents.
type Credentials struct {
	Username string
	Session  string
}

type (
	// LoginRequest opens a session from a username/password pair.
	LoginRequest struct {
		Username string
		Password string
	}

	// AgentsRequest lists the registered agent ids.
	AgentsRequest struct{ Credentials }

	// ConnectionsRequest lists the deduplicated interface connections.
	ConnectionsRequest struct{ Credentials }

	// AgentLatestRequest fetches one agent's record plus its poll and trap
	// history id lists.
	AgentLatestRequest struct {
		Credentials
		AgentID int64
	}

	// LogRequest fetches one poll run's normalized snapshot.
	LogRequest struct {
		Credentials
		LogID int64
	}

	// InterfaceRequest fetches one interface's full record for a poll run.
	InterfaceRequest struct {
		Credentials
		LogID       int64
		InterfaceID int64
	}

	// TrapLogRequest fetches one trap event's full record.
	TrapLogRequest struct {
		Credentials
		TrapLogID int64
	}

	// LogoutRequest revokes the presented session.
	LogoutRequest struct{ Credentials }
)

func (LoginRequest) Func() string       { return "login" }
func (AgentsRequest) Func() string      { return "getagents" }
func (ConnectionsRequest) Func() string { return "get_connections" }
func (AgentLatestRequest) Func() string { return "getagent_latest" }
func (LogRequest) Func() string         { return "get_log" }
func (InterfaceRequest) Func() string   { return "get_interface" }
func (TrapLogRequest) Func() string     { return "get_traplog" }
func (LogoutRequest) Func() string      { return "logout" }

func (LoginRequest) isRequest()       {}
func (AgentsRequest) isRequest()      {}
func (ConnectionsRequest) isRequest() {}
func (AgentLatestRequest) isRequest() {}
func (LogRequest) isRequest()         {}
func (InterfaceRequest) isRequest()   {}
func (TrapLogRequest) isRequest()     {}
func (LogoutRequest) isRequest()      {}

// ─────────────────────────────────────────────────────────────────────────────
// Wire parsing
// ─────────────────────────────────────────────────────────────────────────────

// wireID is an id field that accepts both bare numbers and quoted numeric
// strings. Absent, null, or malformed ids decode to zero, which the façade
// rejects as invalid.
type wireID int64

func (i *wireID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*i = 0
		return nil
	}
	*i = wireID(v)
	return nil
}

// wireRequest is the superset of fields any operation may carry.
type wireRequest struct {
	Func        string `json:"func"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Session     string `json:"session"`
	AgentID     wireID `json:"agentid"`
	LogID       wireID `json:"logid"`
	InterfaceID wireID `json:"interface_id"`
	TrapLogID   wireID `json:"traplogid"`
}

// ParseRequest decodes one wire frame into a typed Request. The outcome is
// OutcomeNoJSON when the frame is not valid JSON, OutcomeBadRequest when the
// func field is missing or names no known operation, and OutcomeSuccess
// otherwise.
func ParseRequest(frame []byte) (Request, models.Outcome) {
	var w wireRequest
	if err := json.Unmarshal(frame, &w); err != nil {
		return nil, models.OutcomeNoJSON
	}

	creds := Credentials{Username: w.Username, Session: w.Session}
	switch w.Func {
	case "login":
		return LoginRequest{Username: w.Username, Password: w.Password}, models.OutcomeSuccess
	case "getagents":
		return AgentsRequest{creds}, models.OutcomeSuccess
	case "get_connections":
		return ConnectionsRequest{creds}, models.OutcomeSuccess
	case "getagent_latest":
		return AgentLatestRequest{Credentials: creds, AgentID: int64(w.AgentID)}, models.OutcomeSuccess
	case "get_log":
		return LogRequest{Credentials: creds, LogID: int64(w.LogID)}, models.OutcomeSuccess
	case "get_interface":
		return InterfaceRequest{Credentials: creds, LogID: int64(w.LogID), InterfaceID: int64(w.InterfaceID)}, models.OutcomeSuccess
	case "get_traplog":
		return TrapLogRequest{Credentials: creds, TrapLogID: int64(w.TrapLogID)}, models.OutcomeSuccess
	case "logout":
		return LogoutRequest{creds}, models.OutcomeSuccess
	default:
		return nil, models.OutcomeBadRequest
	}
}
