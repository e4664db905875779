// Package query is the read-only façade the socket protocol serves. Every
// accessor validates and refreshes the caller's session, reads the relational
// history, and reports a tagged outcome instead of raising: persistence
// failures degrade to dberror, missing rows to nodata or notfound.
package query

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/store"
)

// Catalog objects the snapshot and interface accessors project.
const (
	oidSysDescr    = "1.3.6.1.2.1.1.1"
	oidSysName     = "1.3.6.1.2.1.1.5"
	oidSysLocation = "1.3.6.1.2.1.1.6"

	oidIfIndex       = "1.3.6.1.2.1.2.2.1.1"
	oidIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	oidIfMTU         = "1.3.6.1.2.1.2.2.1.4"
	oidIfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	oidIfPhysAddress = "1.3.6.1.2.1.2.2.1.6"
	oidIfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	oidIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	oidIfInOctets    = "1.3.6.1.2.1.2.2.1.10"
	oidIfInDiscards  = "1.3.6.1.2.1.2.2.1.13"
	oidIfInErrors    = "1.3.6.1.2.1.2.2.1.14"
	oidIfOutOctets   = "1.3.6.1.2.1.2.2.1.16"
	oidIfOutDiscards = "1.3.6.1.2.1.2.2.1.19"
	oidIfOutErrors   = "1.3.6.1.2.1.2.2.1.20"

	oidIPAdEntAddr      = "1.3.6.1.2.1.4.20.1.1"
	oidIPAdEntIfIndex   = "1.3.6.1.2.1.4.20.1.2"
	oidIPAdEntNetMask   = "1.3.6.1.2.1.4.20.1.3"
	oidIPAdEntBcastAddr = "1.3.6.1.2.1.4.20.1.4"
	oidIPRouteDest      = "1.3.6.1.2.1.4.21.1.1"
	oidIPRouteIfIndex   = "1.3.6.1.2.1.4.21.1.2"
)

// wireTimeFormat renders timestamps in the history responses.
const wireTimeFormat = "2006-01-02 15:04:05"

// ─────────────────────────────────────────────────────────────────────────────
// Dependencies
// ─────────────────────────────────────────────────────────────────────────────

// Store is the subset of the persistence layer the façade reads.
type Store interface {
	AgentIDs(ctx context.Context) ([]int64, error)
	Agent(ctx context.Context, id int64) (models.Agent, bool, error)
	Connections(ctx context.Context) ([]models.Connection, error)
	PollRunIDs(ctx context.Context, agentID int64) ([]int64, error)
	PollRun(ctx context.Context, runID int64) (models.PollRun, bool, error)
	RunSamples(ctx context.Context, runID int64) ([]models.PollSample, error)
	AgentForRun(ctx context.Context, runID int64) (models.Agent, bool, error)
	TrapEventIDs(ctx context.Context, agentID int64) ([]int64, error)
	TrapEvent(ctx context.Context, eventID int64) (store.TrapEventRecord, bool, error)
	AgentForTrapEvent(ctx context.Context, eventID int64) (models.Agent, bool, error)
}

// Gateway is the session gateway surface the façade gates every call with.
type Gateway interface {
	Authenticate(ctx context.Context, username, password string) (models.Outcome, string)
	Validate(ctx context.Context, username, code string) models.Outcome
	Refresh(ctx context.Context, username string) (string, error)
	Revoke(ctx context.Context, username, code string) models.Outcome
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire response shapes
// ─────────────────────────────────────────────────────────────────────────────

// AgentInfo is the wire projection of an agent record. The threshould key is
// kept as the clients already expect it.
type AgentInfo struct {
	AgentID     int64  `json:"agentid"`
	HostAddress string `json:"hostaddress"`
	PollPort    int    `json:"getport"`
	TrapPort    int    `json:"trapport"`
	Hostname    string `json:"hostname"`
	PosX        int    `json:"posx"`
	PosY        int    `json:"posy"`
	Threshold   int64  `json:"threshould"`
	IconID      int    `json:"iconid"`
}

// LogSnapshot is the normalized view of one poll run.
type LogSnapshot struct {
	ID             int64  `json:"id"`
	Date           string `json:"date"`
	OS             string `json:"os"`
	SystemName     string `json:"system_name"`
	SystemLocation string `json:"system_location"`
	Interfaces     []int  `json:"interfaces"`
}

// InterfaceRecord is the full normalized record of one interface within one
// poll run.
type InterfaceRecord struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	MTU               string   `json:"mtu"`
	Bandwidth         string   `json:"bandwidth"`
	MACAddress        string   `json:"mac_address"`
	AdminStatus       int      `json:"admin_status"`
	OperateStatus     int      `json:"operate_status"`
	InPackets         string   `json:"in_packets"`
	InPacketsDestruct string   `json:"in_packets_destruct"`
	InPacketsError    string   `json:"in_packets_error"`
	OutPackets        string   `json:"out_packets"`
	OutPacketsDestr   string   `json:"out_packets_destruct"`
	OutPacketsError   string   `json:"out_packets_error"`
	IPAddress         string   `json:"ip_address"`
	SubnetMask        string   `json:"subnet_mask"`
	BroadcastAddress  string   `json:"broadcast_address"`
	DefaultRoutes     []string `json:"default_route"`
}

type (
	// LoginResponse answers a login request.
	LoginResponse struct {
		Func    string         `json:"func"`
		Result  models.Outcome `json:"result"`
		Session string         `json:"session"`
	}

	// AgentsResponse answers a getagents request.
	AgentsResponse struct {
		Func    string         `json:"func"`
		Result  models.Outcome `json:"result"`
		Session string         `json:"session"`
		Agents  []int64        `json:"agents"`
	}

	// ConnectionsResponse answers a get_connections request.
	ConnectionsResponse struct {
		Func        string              `json:"func"`
		Result      models.Outcome      `json:"result"`
		Session     string              `json:"session"`
		Connections []models.Connection `json:"connections"`
	}

	// AgentLatestResponse answers a getagent_latest request. The latest ids
	// are zero when the agent has no history of that kind.
	AgentLatestResponse struct {
		Func       string         `json:"func"`
		Result     models.Outcome `json:"result"`
		Session    string         `json:"session"`
		AgentInfo  *AgentInfo     `json:"agent_info"`
		LatestData int64          `json:"latest_data"`
		LatestTrap int64          `json:"latest_trap"`
		LogList    []int64        `json:"log_list"`
		TrapList   []int64        `json:"trap_list"`
	}

	// LogResponse answers a get_log request.
	LogResponse struct {
		Func      string         `json:"func"`
		Result    models.Outcome `json:"result"`
		Session   string         `json:"session"`
		AgentInfo *AgentInfo     `json:"agent_info"`
		Data      *LogSnapshot   `json:"data"`
	}

	// InterfaceResponse answers a get_interface request.
	InterfaceResponse struct {
		Func    string           `json:"func"`
		Result  models.Outcome   `json:"result"`
		Session string           `json:"session"`
		Data    *InterfaceRecord `json:"data"`
	}

	// TrapLogResponse answers a get_traplog request.
	TrapLogResponse struct {
		Func      string                 `json:"func"`
		Result    models.Outcome         `json:"result"`
		Session   string                 `json:"session"`
		AgentInfo *AgentInfo             `json:"agent_info"`
		Data      *store.TrapEventRecord `json:"data"`
	}

	// LogoutResponse answers a logout request.
	LogoutResponse struct {
		Func   string         `json:"func"`
		Result models.Outcome `json:"result"`
	}
)

// ErrorResponse is the generic shape for frames that never reached an
// operation (unknown func, unparsable frame).
type ErrorResponse struct {
	Func   string         `json:"func"`
	Result models.Outcome `json:"result"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Facade
// ─────────────────────────────────────────────────────────────────────────────

// Facade serves the read-only history accessors behind session validation.
type Facade struct {
	store   Store
	gateway Gateway
	logger  *slog.Logger
}

// New creates a Facade.
func New(st Store, gw Gateway, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Facade{store: st, gateway: gw, logger: logger}
}

// Dispatch routes one parsed request to its operation. The switch is
// exhaustive over the closed Request set.
func (f *Facade) Dispatch(ctx context.Context, req Request) any {
	switch r := req.(type) {
	case LoginRequest:
		return f.Login(ctx, r)
	case AgentsRequest:
		return f.Agents(ctx, r)
	case ConnectionsRequest:
		return f.Connections(ctx, r)
	case AgentLatestRequest:
		return f.AgentLatest(ctx, r)
	case LogRequest:
		return f.Log(ctx, r)
	case InterfaceRequest:
		return f.Interface(ctx, r)
	case TrapLogRequest:
		return f.TrapLog(ctx, r)
	case LogoutRequest:
		return f.Logout(ctx, r)
	default:
		// Unreachable while Request stays closed.
		return ErrorResponse{Func: req.Func(), Result: models.OutcomeBadRequest}
	}
}

// Login authenticates and issues a session code.
func (f *Facade) Login(ctx context.Context, req LoginRequest) LoginResponse {
	out, code := f.gateway.Authenticate(ctx, req.Username, req.Password)
	return LoginResponse{Func: req.Func(), Result: out, Session: code}
}

// Agents lists the registered agent ids.
func (f *Facade) Agents(ctx context.Context, req AgentsRequest) AgentsResponse {
	res := AgentsResponse{Func: req.Func(), Agents: []int64{}}

	out, code := f.authorize(ctx, req.Credentials)
	res.Result, res.Session = out, code
	if out != models.OutcomeSuccess {
		return res
	}

	ids, err := f.store.AgentIDs(ctx)
	if err != nil {
		f.logger.Error("query: agent listing failed", "error", err)
		res.Result = models.OutcomeDBError
		return res
	}
	if len(ids) == 0 {
		res.Result = models.OutcomeNoAgents
		return res
	}
	res.Agents = ids
	return res
}

// Connections lists the deduplicated interface connections.
func (f *Facade) Connections(ctx context.Context, req ConnectionsRequest) ConnectionsResponse {
	res := ConnectionsResponse{Func: req.Func(), Connections: []models.Connection{}}

	out, code := f.authorize(ctx, req.Credentials)
	res.Result, res.Session = out, code
	if out != models.OutcomeSuccess {
		return res
	}

	ids, err := f.store.AgentIDs(ctx)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}
	if len(ids) == 0 {
		res.Result = models.OutcomeNoAgents
		return res
	}

	conns, err := f.store.Connections(ctx)
	if err != nil {
		f.logger.Error("query: connection listing failed", "error", err)
		res.Result = models.OutcomeDBError
		return res
	}
	res.Connections = conns
	return res
}

// AgentLatest fetches one agent's record plus its history id lists, newest
// first, with the latest ids pulled out separately.
func (f *Facade) AgentLatest(ctx context.Context, req AgentLatestRequest) AgentLatestResponse {
	res := AgentLatestResponse{Func: req.Func(), LogList: []int64{}, TrapList: []int64{}}

	out, code := f.authorize(ctx, req.Credentials)
	res.Session = code
	if req.AgentID == 0 {
		out = models.OutcomeInvalid
	}
	res.Result = out
	if out != models.OutcomeSuccess {
		return res
	}

	agent, ok, err := f.store.Agent(ctx, req.AgentID)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}
	if !ok {
		res.Result = models.OutcomeNoAgent
		return res
	}
	res.AgentInfo = agentInfo(agent)

	runs, err := f.store.PollRunIDs(ctx, req.AgentID)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}
	if len(runs) > 0 {
		res.LogList = runs
		res.LatestData = runs[0]
	}

	traps, err := f.store.TrapEventIDs(ctx, req.AgentID)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}
	if len(traps) > 0 {
		res.TrapList = traps
		res.LatestTrap = traps[0]
	}
	return res
}

// Log fetches one poll run's normalized snapshot.
func (f *Facade) Log(ctx context.Context, req LogRequest) LogResponse {
	res := LogResponse{Func: req.Func()}

	out, code := f.authorize(ctx, req.Credentials)
	res.Session = code
	if req.LogID == 0 {
		out = models.OutcomeInvalid
	}
	res.Result = out
	if out != models.OutcomeSuccess {
		return res
	}

	agent, ok, err := f.store.AgentForRun(ctx, req.LogID)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}
	if !ok {
		res.Result = models.OutcomeNoData
		return res
	}
	res.AgentInfo = agentInfo(agent)

	run, ok, err := f.store.PollRun(ctx, req.LogID)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}
	if !ok {
		res.Result = models.OutcomeNoData
		return res
	}

	samples, err := f.store.RunSamples(ctx, req.LogID)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}

	snap := &LogSnapshot{
		ID:         req.LogID,
		Date:       run.Timestamp.Format(wireTimeFormat),
		Interfaces: []int{},
	}
	for _, s := range samples {
		switch s.ObjectOID {
		case oidSysDescr:
			snap.OS = s.Value
		case oidSysName:
			snap.SystemName = s.Value
		case oidSysLocation:
			snap.SystemLocation = s.Value
		case oidIfIndex:
			if n, err := strconv.Atoi(s.Value); err == nil {
				snap.Interfaces = append(snap.Interfaces, n)
			}
		}
	}
	res.Data = snap
	return res
}

// Interface fetches one interface's full record for a poll run. The IP
// address, mask, and broadcast fields join through the address table's
// interface-index column; default routes join through the route table's.
func (f *Facade) Interface(ctx context.Context, req InterfaceRequest) InterfaceResponse {
	res := InterfaceResponse{Func: req.Func()}

	out, code := f.authorize(ctx, req.Credentials)
	res.Session = code
	if req.LogID == 0 || req.InterfaceID == 0 {
		out = models.OutcomeInvalid
	}
	res.Result = out
	if out != models.OutcomeSuccess {
		return res
	}

	samples, err := f.store.RunSamples(ctx, req.LogID)
	if err != nil {
		f.logger.Error("query: run samples failed", "run", req.LogID, "error", err)
		res.Result = models.OutcomeDBError
		return res
	}

	rec := buildInterfaceRecord(samples, req.InterfaceID)
	res.Data = rec
	if rec.ID == 0 {
		// Unknown run or interface: the payload stays an empty record
		// rather than a JSON null.
		res.Result = models.OutcomeNoData
	}
	return res
}

// ipEntry accumulates one row of the address table before the index join.
type ipEntry struct {
	address   string
	mask      string
	broadcast string
}

func buildInterfaceRecord(samples []models.PollSample, ifIndex int64) *InterfaceRecord {
	rec := &InterfaceRecord{DefaultRoutes: []string{}}
	want := strconv.FormatInt(ifIndex, 10)

	ipRows := make(map[string]*ipEntry)
	routeRows := make(map[string]string)

	for _, s := range samples {
		switch s.ObjectOID {
		case oidIfIndex:
			if s.RowIndex == want {
				if n, err := strconv.ParseInt(s.Value, 10, 64); err == nil {
					rec.ID = n
				}
			}
		case oidIfDescr:
			if s.RowIndex == want {
				rec.Name = s.Value
			}
		case oidIfMTU:
			if s.RowIndex == want {
				rec.MTU = s.Value
			}
		case oidIfSpeed:
			if s.RowIndex == want {
				rec.Bandwidth = s.Value
			}
		case oidIfPhysAddress:
			if s.RowIndex == want {
				rec.MACAddress = s.Value
			}
		case oidIfAdminStatus:
			if s.RowIndex == want {
				rec.AdminStatus, _ = strconv.Atoi(s.Value)
			}
		case oidIfOperStatus:
			if s.RowIndex == want {
				rec.OperateStatus, _ = strconv.Atoi(s.Value)
			}
		case oidIfInOctets:
			if s.RowIndex == want {
				rec.InPackets = s.Value
			}
		case oidIfInDiscards:
			if s.RowIndex == want {
				rec.InPacketsDestruct = s.Value
			}
		case oidIfInErrors:
			if s.RowIndex == want {
				rec.InPacketsError = s.Value
			}
		case oidIfOutOctets:
			if s.RowIndex == want {
				rec.OutPackets = s.Value
			}
		case oidIfOutDiscards:
			if s.RowIndex == want {
				rec.OutPacketsDestr = s.Value
			}
		case oidIfOutErrors:
			if s.RowIndex == want {
				rec.OutPacketsError = s.Value
			}
		case oidIPAdEntAddr:
			ipRows[s.RowIndex] = &ipEntry{address: s.Value}
		case oidIPAdEntNetMask:
			if e := ipRows[s.RowIndex]; e != nil {
				e.mask = s.Value
			}
		case oidIPAdEntBcastAddr:
			if e := ipRows[s.RowIndex]; e != nil {
				e.broadcast = s.Value
			}
		case oidIPRouteDest:
			if _, seen := routeRows[s.RowIndex]; !seen {
				routeRows[s.RowIndex] = s.Value
			}
		}
	}

	// Second pass: resolve the address and route tables onto the requested
	// interface through their index columns.
	for _, s := range samples {
		switch s.ObjectOID {
		case oidIPAdEntIfIndex:
			if s.Value != want {
				continue
			}
			if e := ipRows[s.RowIndex]; e != nil {
				rec.IPAddress = e.address
				rec.SubnetMask = e.mask
				rec.BroadcastAddress = e.broadcast
			}
		case oidIPRouteIfIndex:
			if s.Value != want {
				continue
			}
			if dest, ok := routeRows[s.RowIndex]; ok {
				rec.DefaultRoutes = append(rec.DefaultRoutes, dest)
			}
		}
	}
	return rec
}

// TrapLog fetches one trap event's full record.
func (f *Facade) TrapLog(ctx context.Context, req TrapLogRequest) TrapLogResponse {
	res := TrapLogResponse{Func: req.Func()}

	out, code := f.authorize(ctx, req.Credentials)
	res.Session = code
	if req.TrapLogID == 0 {
		out = models.OutcomeInvalid
	}
	res.Result = out
	if out != models.OutcomeSuccess {
		return res
	}

	agent, ok, err := f.store.AgentForTrapEvent(ctx, req.TrapLogID)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}
	if !ok {
		res.Result = models.OutcomeNotFound
		return res
	}
	res.AgentInfo = agentInfo(agent)

	rec, ok, err := f.store.TrapEvent(ctx, req.TrapLogID)
	if err != nil {
		res.Result = models.OutcomeDBError
		return res
	}
	if !ok {
		res.Result = models.OutcomeNoData
		return res
	}
	res.Data = &rec
	return res
}

// Logout revokes the presented session.
func (f *Facade) Logout(ctx context.Context, req LogoutRequest) LogoutResponse {
	out := f.gateway.Revoke(ctx, req.Username, req.Session)
	return LogoutResponse{Func: req.Func(), Result: out}
}

// authorize validates the presented session and, on success, refreshes it.
// The returned code is the caller's new session code.
func (f *Facade) authorize(ctx context.Context, creds Credentials) (models.Outcome, string) {
	if out := f.gateway.Validate(ctx, creds.Username, creds.Session); out != models.OutcomeSuccess {
		return out, ""
	}
	code, err := f.gateway.Refresh(ctx, creds.Username)
	if err != nil {
		f.logger.Error("query: session refresh failed", "user", creds.Username, "error", err)
		return models.OutcomeDBError, ""
	}
	return models.OutcomeSuccess, code
}

func agentInfo(a models.Agent) *AgentInfo {
	return &AgentInfo{
		AgentID:     a.ID,
		HostAddress: a.HostAddress,
		PollPort:    a.PollPort,
		TrapPort:    a.TrapPort,
		Hostname:    a.Hostname,
		PosX:        a.PosX,
		PosY:        a.PosY,
		Threshold:   a.PacketThreshold,
		IconID:      a.IconID,
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
