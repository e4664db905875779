package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/query"
	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/server"
)

// echoDispatcher answers every request with success and its wire func name.
type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, req query.Request) any {
	return query.ErrorResponse{Func: req.Func(), Result: models.OutcomeSuccess}
}

func startServer(t *testing.T, idle time.Duration) *server.Server {
	t.Helper()
	s := server.New(server.Config{Addr: "127.0.0.1:0", IdleTimeout: idle}, echoDispatcher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func dial(t *testing.T, s *server.Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, r *bufio.Reader) map[string]any {
	t.Helper()
	line, err := r.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var res map[string]any
	if err := json.Unmarshal(line, &res); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	return res
}

func TestServerRoundTrip(t *testing.T) {
	s := startServer(t, time.Second)
	conn := dial(t, s)
	r := bufio.NewReader(conn)

	if _, err := conn.Write([]byte(`{"func":"getagents","username":"alice","session":"s"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	res := readFrame(t, r)
	if res["func"] != "getagents" || res["result"] != "success" {
		t.Fatalf("response = %v", res)
	}
}

func TestServerMalformedFrameKeepsConnectionOpen(t *testing.T) {
	s := startServer(t, time.Second)
	conn := dial(t, s)
	r := bufio.NewReader(conn)

	if _, err := conn.Write([]byte("not json at all\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if res := readFrame(t, r); res["result"] != "nojson" {
		t.Fatalf("response = %v", res)
	}

	if _, err := conn.Write([]byte(`{"nofunc":true}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if res := readFrame(t, r); res["result"] != "badrequest" {
		t.Fatalf("response = %v", res)
	}

	// The connection survived both bad frames.
	if _, err := conn.Write([]byte(`{"func":"logout"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if res := readFrame(t, r); res["func"] != "logout" {
		t.Fatalf("response = %v", res)
	}
}

func TestServerReassemblesPartialAndCoalescedFrames(t *testing.T) {
	s := startServer(t, time.Second)
	conn := dial(t, s)
	r := bufio.NewReader(conn)

	// One frame split across two writes.
	if _, err := conn.Write([]byte(`{"func":"geta`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := conn.Write([]byte(`gents"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if res := readFrame(t, r); res["func"] != "getagents" {
		t.Fatalf("split frame response = %v", res)
	}

	// Two frames in one segment.
	if _, err := conn.Write([]byte(`{"func":"getagents"}` + "\n" + `{"func":"logout"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if res := readFrame(t, r); res["func"] != "getagents" {
		t.Fatalf("first coalesced response = %v", res)
	}
	if res := readFrame(t, r); res["func"] != "logout" {
		t.Fatalf("second coalesced response = %v", res)
	}
}

func TestServerIdleTimeoutClosesConnection(t *testing.T) {
	s := startServer(t, 100*time.Millisecond)
	conn := dial(t, s)

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected the server to close an idle connection")
	}
}
