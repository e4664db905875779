// Package app wires the SNMP Monitor components together and manages their
// lifecycle.
//
// Poll path:
//
//	Scheduler → Poller → Walker → store (poll_runs / poll_samples / links)
//
// Trap path (parallel):
//
//	trap Registry → classify → store (trap_events)
//
// Query path (parallel):
//
//	socket Server → Facade → Gateway + store (read-only)
//
// The three paths share only the store; none locks another.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/config"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/poller"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/query"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/server"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/session"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/store"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/trapreceiver"
	"github.com/vpbank/snmp_monitor/snmp/walk"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Reset families selectable at startup.
const (
	ResetNone      = ""
	ResetTelemetry = "telemetry" // poll runs, samples, trap events
	ResetTraps     = "traps"     // trap catalog (rebuilt from config)
	ResetUsers     = "users"     // accounts, sessions, audit log
	ResetAll       = "all"
)

// Config holds the top-level settings for the monitor application.
type Config struct {
	// ConfigPath is the YAML configuration file.
	ConfigPath string

	// Reset names a table family to clear before seeding (see the Reset
	// constants). Identity counters restart at 1.
	Reset string
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates the monitor. Create one with New, start it with Start, and
// stop it with Stop (or cancel the context).
type App struct {
	cfg    Config
	logger *slog.Logger

	loaded *config.Config

	st      *store.Store
	walker  *walk.Walker
	pol     *poller.Poller
	sched   *poller.Scheduler
	traps   *trapreceiver.Registry
	gateway *session.Gateway
	facade  *query.Facade
	srv     *server.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything — call Start for that.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &App{cfg: cfg, logger: logger}
}

// Start loads configuration, opens and seeds the store, and launches the
// poll, trap, and query paths. The caller must eventually call Stop (or
// cancel the passed-in context's parent) to release resources.
func (a *App) Start(ctx context.Context) error {
	// ── 1. Load configuration ───────────────────────────────────────────
	loaded, err := config.Load(a.cfg.ConfigPath, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.loaded = loaded

	// ── 2. Open the store, apply resets, seed ───────────────────────────
	st, err := store.Open(loaded.Database.Path, a.logger)
	if err != nil {
		return fmt.Errorf("app: open store: %w", err)
	}
	a.st = st

	if err := a.applyReset(ctx); err != nil {
		return err
	}
	if err := seed(ctx, st, loaded, a.logger); err != nil {
		return fmt.Errorf("app: seed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// ── 3. Trap path ─────────────────────────────────────────────────────
	a.traps = trapreceiver.New(st, a.logger)
	if err := a.traps.Start(runCtx); err != nil {
		// Non-fatal: polling and queries still work without traps.
		a.logger.Error("app: trap receiver failed to start — continuing without traps", "error", err)
		a.traps = nil
	}

	// ── 4. Query path ────────────────────────────────────────────────────
	a.gateway = session.New(st, a.logger)
	a.facade = query.New(st, a.gateway, a.logger)
	a.srv = server.New(server.Config{Addr: loaded.Server.Addr}, a.facade, a.logger)
	if err := a.srv.Start(runCtx); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	// ── 5. Poll path ─────────────────────────────────────────────────────
	a.walker = walk.New(a.logger)
	a.pol = poller.New(pollStore{st}, a.walker, a.logger)
	a.sched = poller.NewScheduler(a.pol, loaded.Poll.Interval(), a.logger)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sched.Start(runCtx)
	}()

	a.logger.Info("app: running",
		"agents", len(loaded.Agents),
		"poll_interval", loaded.Poll.Interval(),
		"server_addr", loaded.Server.Addr,
	)
	return nil
}

// Stop performs a graceful shutdown: scheduler first so no new runs start,
// then the listeners, then the store.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	a.wg.Wait()

	if a.traps != nil {
		a.traps.Stop()
	}
	if a.srv != nil {
		a.srv.Stop()
	}
	if a.st != nil {
		if err := a.st.Close(); err != nil {
			a.logger.Error("app: store close error", "error", err)
		}
	}

	a.logger.Info("app: shutdown complete")
}

// ServerAddr returns the bound query server address, or "" before Start.
func (a *App) ServerAddr() string {
	if a.srv == nil {
		return ""
	}
	return a.srv.Addr()
}

func (a *App) applyReset(ctx context.Context) error {
	switch a.cfg.Reset {
	case ResetNone:
		return nil
	case ResetTelemetry:
		return a.st.ResetTelemetry(ctx)
	case ResetTraps:
		return a.st.ResetTrapCatalog(ctx)
	case ResetUsers:
		return a.st.ResetUsers(ctx)
	case ResetAll:
		if err := a.st.ResetTelemetry(ctx); err != nil {
			return err
		}
		if err := a.st.ResetTrapCatalog(ctx); err != nil {
			return err
		}
		return a.st.ResetUsers(ctx)
	default:
		return fmt.Errorf("app: unknown reset family %q", a.cfg.Reset)
	}
}

// pollStore adapts *store.Store to the poller's narrower port: BeginPollRun
// returns the recorder as an interface value.
type pollStore struct {
	*store.Store
}

func (p pollStore) BeginPollRun(ctx context.Context, agentID int64) (poller.RunRecorder, error) {
	return p.Store.BeginPollRun(ctx, agentID)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
