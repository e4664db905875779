// Package trapreceiver implements the asynchronous notification path of the
// monitor. It is a completely separate input from the poller: the poller
// actively requests data on a schedule, while the receiver passively listens
// on every distinct notification port the registered agents use.
//
// Pipeline position:
//
// UDP trap ports  →  [Registry]  →  classify  →  store (trap_events)
//
//	        │
//	(parallel with polling path)
//
// Each distinct port gets one gosnmp TrapListener carrying the USM
// credentials of every agent registered on that port; an incoming
// notification is attributed to an agent by its source address plus the
// authenticated security name, and persisted only when exactly one agent
// matches.
package trapreceiver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/snmp/walk"
)

// closeTimeout bounds the graceful shutdown of each UDP listener.
const closeTimeout = 3 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Store — persistence port
// ─────────────────────────────────────────────────────────────────────────────

// Store is the subset of the persistence layer the receiver consumes.
type Store interface {
	Agents(ctx context.Context) ([]models.Agent, error)
	SecurityProfile(ctx context.Context, agentID int64) (models.SecurityProfile, bool, error)
	AgentByTrapIdentity(ctx context.Context, hostAddress, securityName string) (models.Agent, bool, error)
	CatalogObjects(ctx context.Context) ([]models.MibObject, error)
	TrapDefinitionByOID(ctx context.Context, oid string) (models.TrapDefinition, bool, error)
	AddTrapEvent(ctx context.Context, agentID, trapID int64, detail string) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

// portListener pairs one UDP listener with its lifecycle channel.
type portListener struct {
	port int
	tl   *gosnmp.TrapListener
	done chan struct{}
}

// Registry owns the full set of trap listeners. It is built once at startup
// from the agent registry: one listener per distinct notification port, each
// loaded with the USM identities of every agent on that port.
type Registry struct {
	store   Store
	logger  *slog.Logger
	catalog *walk.Catalog

	mu        sync.Mutex
	running   bool
	listeners []*portListener
}

// New creates a Registry. Call Start to bind the listeners.
func New(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Registry{
		store:  store,
		logger: logger,
	}
}

// Start binds one UDP listener per distinct trap port among the registered
// agents. It returns once every listener is ready, or the first bind error.
// Agents without a security profile are logged and excluded from their
// port's identity table.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("trapreceiver: already running")
	}
	r.running = true
	r.mu.Unlock()

	objects, err := r.store.CatalogObjects(ctx)
	if err != nil {
		return fmt.Errorf("trapreceiver: load catalog: %w", err)
	}
	r.catalog = walk.NewCatalog(objects)

	agents, err := r.store.Agents(ctx)
	if err != nil {
		return fmt.Errorf("trapreceiver: load agents: %w", err)
	}

	byPort := make(map[int][]models.Agent)
	for _, a := range agents {
		if a.TrapPort <= 0 {
			continue
		}
		byPort[a.TrapPort] = append(byPort[a.TrapPort], a)
	}
	if len(byPort) == 0 {
		r.logger.Warn("trapreceiver: no agents with a trap port, nothing to listen on")
		return nil
	}

	for port, portAgents := range byPort {
		pl, err := r.startPort(ctx, port, portAgents)
		if err != nil {
			r.Stop()
			return err
		}
		r.mu.Lock()
		r.listeners = append(r.listeners, pl)
		r.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// startPort binds one listener carrying the USM identities of every agent
// registered on the port.
func (r *Registry) startPort(ctx context.Context, port int, agents []models.Agent) (*portListener, error) {
	table := gosnmp.NewSnmpV3SecurityParametersTable(gosnmp.NewLogger(slogAdapter{r.logger}))
	for _, a := range agents {
		profile, ok, err := r.store.SecurityProfile(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("trapreceiver: security profile for agent %d: %w", a.ID, err)
		}
		if !ok {
			r.logger.Warn("trapreceiver: agent has no security profile, excluded", "agent", a.ID, "port", port)
			continue
		}
		if err := table.Add(profile.SecurityName, walk.UsmParams(profile)); err != nil {
			return nil, fmt.Errorf("trapreceiver: register identity %q: %w", profile.SecurityName, err)
		}
	}

	tl := gosnmp.NewTrapListener()
	tl.Params = &gosnmp.GoSNMP{
		Version:                     gosnmp.Version3,
		SecurityModel:               gosnmp.UserSecurityModel,
		MsgFlags:                    gosnmp.AuthPriv,
		TrapSecurityParametersTable: table,
		Logger:                      gosnmp.NewLogger(slogAdapter{r.logger}),
	}
	tl.CloseTimeout = closeTimeout
	tl.OnNewTrap = r.handleTrap

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	pl := &portListener{port: port, tl: tl, done: make(chan struct{})}

	errCh := make(chan error, 1)
	go func() {
		defer close(pl.done)
		errCh <- tl.Listen(addr)
	}()

	select {
	case <-tl.Listening():
		r.logger.Info("trapreceiver: listening", "addr", addr, "identities", len(agents))
	case err := <-errCh:
		return nil, fmt.Errorf("trapreceiver: listen %s: %w", addr, err)
	case <-ctx.Done():
		tl.Close()
		return nil, ctx.Err()
	}
	return pl, nil
}

// Stop shuts down every listener. Safe to call multiple times.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false

	for _, pl := range r.listeners {
		pl.tl.Close()
		<-pl.done
	}
	r.listeners = nil
	r.logger.Info("trapreceiver: stopped")
}

// handleTrap runs in the gosnmp listener goroutine. It attributes the packet
// to an agent, classifies the payload, and persists the event. Any failure
// drops the packet with a log line; a notification that cannot be attributed
// to exactly one agent is never recorded.
func (r *Registry) handleTrap(pkt *gosnmp.SnmpPacket, addr *net.UDPAddr) {
	ctx := context.Background()

	usm, ok := pkt.SecurityParameters.(*gosnmp.UsmSecurityParameters)
	if !ok {
		r.logger.Warn("trapreceiver: packet without USM parameters dropped", "remote", addr)
		return
	}
	host := addr.IP.String()

	agent, ok, err := r.store.AgentByTrapIdentity(ctx, host, usm.UserName)
	if err != nil {
		r.logger.Error("trapreceiver: agent attribution failed", "remote", addr, "error", err)
		return
	}
	if !ok {
		r.logger.Warn("trapreceiver: no unique agent for trap identity, dropped",
			"host", host, "security_name", usm.UserName)
		return
	}

	cls, err := Classify(pkt.Variables, r.catalog, func(oid string) (models.TrapDefinition, bool, error) {
		return r.store.TrapDefinitionByOID(ctx, oid)
	}, r.logger)
	if err != nil {
		r.logger.Error("trapreceiver: classification failed", "agent", agent.ID, "error", err)
		return
	}

	if err := r.store.AddTrapEvent(ctx, agent.ID, cls.TrapID, cls.Detail); err != nil {
		r.logger.Error("trapreceiver: persist failed", "agent", agent.ID, "error", err)
		return
	}
	r.logger.Info("trapreceiver: event recorded",
		"agent", agent.ID, "trap_id", cls.TrapID, "trap_oid", cls.TrapOID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }

// slogAdapter bridges slog.Logger to gosnmp's Printf-style Logger interface.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Print(v ...interface{}) {
	a.l.Debug(fmt.Sprint(v...))
}

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.l.Debug(fmt.Sprintf(format, v...))
}
