// Package server is the socket front end of the query protocol: a TCP
// listener serving newline-delimited JSON frames, one request/response pair
// per line. Frames reassemble across partial reads and multiple frames in
// one segment all parse — the framing is explicit, not read-boundary based.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/query"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config controls the Server behaviour.
type Config struct {
	// Addr is the TCP address to bind to (default "0.0.0.0:8100").
	Addr string

	// IdleTimeout closes a client connection that stays silent between
	// frames (default 5 s).
	IdleTimeout time.Duration

	// MaxFrameSize bounds one request line (default 64 KiB).
	MaxFrameSize int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Addr == "" {
		out.Addr = "0.0.0.0:8100"
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = 5 * time.Second
	}
	if out.MaxFrameSize <= 0 {
		out.MaxFrameSize = 64 * 1024
	}
	return out
}

// Dispatcher handles one parsed request. *query.Facade satisfies this.
type Dispatcher interface {
	Dispatch(ctx context.Context, req query.Request) any
}

// ─────────────────────────────────────────────────────────────────────────────
// Server
// ─────────────────────────────────────────────────────────────────────────────

// Server accepts query protocol clients and serves frames until stopped.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	running  bool
	listener net.Listener

	wg sync.WaitGroup
}

// New creates a Server with the given configuration.
func New(cfg Config, d Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Server{cfg: cfg.withDefaults(), dispatcher: d, logger: logger}
}

// Start binds the listener and serves clients until ctx is cancelled or Stop
// is called. It returns once the listener is bound; serving continues in the
// background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server: already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.logger.Info("server: listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and waits for in-flight connections to finish.
// Safe to call multiple times.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
	s.logger.Info("server: stopped")
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("server: accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn reads frames until the client disconnects, the idle timeout
// fires, or the server stops. A malformed frame produces an error response
// and leaves the connection open.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.logger.Info("server: client connected", "remote", remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.cfg.MaxFrameSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Info("server: client closed", "remote", remote, "reason", err)
			}
			return
		}
		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}

		res := s.handleFrame(ctx, frame)
		if err := s.writeFrame(conn, res); err != nil {
			s.logger.Warn("server: write failed", "remote", remote, "error", err)
			return
		}
	}
}

// handleFrame parses and dispatches one frame, mapping parse failures to
// their protocol outcomes.
func (s *Server) handleFrame(ctx context.Context, frame []byte) any {
	req, out := query.ParseRequest(frame)
	switch out {
	case models.OutcomeNoJSON:
		return query.ErrorResponse{Func: "undefined", Result: models.OutcomeNoJSON}
	case models.OutcomeBadRequest:
		return query.ErrorResponse{Func: "undefined", Result: models.OutcomeBadRequest}
	}
	return s.dispatcher.Dispatch(ctx, req)
}

func (s *Server) writeFrame(conn net.Conn, res any) error {
	buf, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("server: marshal response: %w", err)
	}
	buf = append(buf, '\n')
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
		return err
	}
	_, err = conn.Write(buf)
	return err
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
